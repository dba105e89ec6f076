package nce

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/simflux/simflux/internal/shared/config"
)

// RetryPolicy is the shared retry envelope for provider calls: exponential
// backoff with jitter between attempts, a hard attempt cap, and support for
// server-dictated delays (Retry-After) via backoff.RetryAfterError.
type RetryPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRetryPolicy builds a policy from configuration, falling back to five
// attempts when unset.
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	attempts := uint(5)
	if cfg.MaxAttempts > 0 {
		attempts = uint(cfg.MaxAttempts)
	}
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   cfg.BaseDelay(),
		MaxDelay:    cfg.MaxDelay(),
	}
}

// Do runs op until it succeeds, returns a permanent error, or the attempt
// cap is reached. Wrap non-retryable failures in backoff.Permanent inside op.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.BaseDelay
	expBackoff.MaxInterval = p.MaxDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(p.MaxAttempts))
	return err
}
