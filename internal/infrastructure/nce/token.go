// Package nce implements the HTTP client for the upstream SIM management
// API: OAuth2 token handling, rate limiting, retry with backoff, and
// cursor-based pagination over the inventory and usage endpoints.
package nce

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/simflux/simflux/internal/shared/config"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/logger"
)

// expiryMargin is subtracted from the advertised token lifetime so a token
// is refreshed before it can expire mid-request.
const expiryMargin = 60 * time.Second

// TokenManager caches a client-credentials access token and refreshes it
// on demand. Concurrent callers finding an expired token share a single
// refresh via singleflight; everyone else reads the cached token.
type TokenManager struct {
	conf       *clientcredentials.Config
	mu         sync.RWMutex
	token      *oauth2.Token
	fetchGroup singleflight.Group
	logger     logger.Interface
}

// NewTokenManager creates a TokenManager for the configured credentials.
func NewTokenManager(cfg config.ProviderConfig, log logger.Interface) *TokenManager {
	return &TokenManager{
		conf: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.ResolvedTokenURL(),
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		logger: log,
	}
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or within the expiry margin.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.usable(m.token) {
		tok := m.token.AccessToken
		m.mu.RUnlock()
		return tok, nil
	}
	m.mu.RUnlock()

	result, err, _ := m.fetchGroup.Do("token", func() (any, error) {
		// Another caller may have refreshed while we waited for the flight.
		m.mu.RLock()
		if m.usable(m.token) {
			tok := m.token.AccessToken
			m.mu.RUnlock()
			return tok, nil
		}
		m.mu.RUnlock()

		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
// Called when the API rejects a request with 401 despite a locally valid
// token (e.g. server-side revocation).
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

func (m *TokenManager) usable(tok *oauth2.Token) bool {
	return tok != nil && tok.AccessToken != "" &&
		(tok.Expiry.IsZero() || time.Now().Before(tok.Expiry.Add(-expiryMargin)))
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	tok, err := m.conf.Token(ctx)
	if err != nil {
		return "", classifyTokenError(err)
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	m.logger.Debugw("access token refreshed", "expires_at", tok.Expiry)
	return tok.AccessToken, nil
}

// classifyTokenError separates credential rejections (not retryable, needs
// operator attention) from transient token endpoint failures.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := 0
		if retrieveErr.Response != nil {
			code = retrieveErr.Response.StatusCode
		}
		switch code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.NewAuthError("provider rejected credentials", err)
		default:
			return apperrors.NewTransientError("token endpoint unavailable", err)
		}
	}
	return apperrors.NewTransientError("token fetch failed", err)
}
