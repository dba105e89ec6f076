package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/shared/biztime"
	"github.com/simflux/simflux/internal/shared/config"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/logger"
)

// CommandExecutor executes user-initiated provider commands with idempotency
// key replay. Every command resolves to a definite outcome: success, failure,
// or partial success when the provider accepted the command but the local
// state write failed afterwards.
//
// A provider-side failure returns an error WITHOUT recording the key, so the
// caller may safely retry with the same key.
type CommandExecutor struct {
	provider   ProviderAPI
	reconciler *Reconciler
	idems      sim.IdempotencyRepository
	ttl        time.Duration
	logger     logger.Interface
}

func NewCommandExecutor(
	provider ProviderAPI,
	reconciler *Reconciler,
	idems sim.IdempotencyRepository,
	syncCfg config.SyncConfig,
	log logger.Interface,
) *CommandExecutor {
	return &CommandExecutor{
		provider:   provider,
		reconciler: reconciler,
		idems:      idems,
		ttl:        syncCfg.IdempotencyTTL(),
		logger:     log,
	}
}

// TopUpQuota adds volume to a SIM's quota at the provider and refreshes the
// local snapshot. The returned outcome carries the resulting quota so a
// replayed submission sees identical data.
func (e *CommandExecutor) TopUpQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType, volume uint64, key string) (sim.CommandOutcome, error) {
	if volume == 0 {
		return sim.CommandOutcome{}, apperrors.NewValidationError("top-up volume must be positive")
	}
	if !quotaType.IsValid() {
		return sim.CommandOutcome{}, apperrors.NewValidationError(fmt.Sprintf("invalid quota type: %s", quotaType))
	}

	return e.run(ctx, sim.CommandTopUpQuota, iccid, key, func(ctx context.Context) (sim.CommandOutcome, error) {
		if err := e.provider.TopUpQuota(ctx, iccid, quotaType, volume); err != nil {
			return sim.CommandOutcome{}, err
		}

		quota, err := e.refreshQuota(ctx, iccid, quotaType, volume)
		if err != nil {
			e.logger.Warnw("top-up accepted but local quota refresh failed",
				"iccid", iccid,
				"quota_type", quotaType,
				"error", err,
			)
			return sim.CommandOutcome{
				Status:  sim.OutcomePartialSuccess,
				Message: "top-up accepted by provider; local quota refresh pending next sync",
			}, nil
		}

		snap := quota.Snapshot()
		return sim.CommandOutcome{
			Status:  sim.OutcomeSuccess,
			Message: "top-up applied",
			Quota:   &snap,
		}, nil
	})
}

// refreshQuota pulls the authoritative quota after a top-up; when that fetch
// fails the local snapshot is bumped optimistically so reads stay roughly
// right until the next quota sync.
func (e *CommandExecutor) refreshQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType, volume uint64) (*sim.Quota, error) {
	total, used, err := e.provider.GetQuota(ctx, iccid, quotaType)
	if err == nil {
		return e.reconciler.ReconcileQuota(ctx, iccid, quotaType, total, used)
	}
	return e.reconciler.ApplyTopUp(ctx, iccid, quotaType, volume)
}

// SendSMS delivers an MT-SMS to the SIM through the provider. There is no
// local state to reconcile; delivery status arrives with the next usage sync.
func (e *CommandExecutor) SendSMS(ctx context.Context, iccid, payload, key string) (sim.CommandOutcome, error) {
	if payload == "" {
		return sim.CommandOutcome{}, apperrors.NewValidationError("sms payload is required")
	}

	return e.run(ctx, sim.CommandSendSMS, iccid, key, func(ctx context.Context) (sim.CommandOutcome, error) {
		if err := e.provider.SendSMS(ctx, iccid, payload); err != nil {
			return sim.CommandOutcome{}, err
		}
		return sim.CommandOutcome{
			Status:  sim.OutcomeSuccess,
			Message: "sms accepted by provider",
		}, nil
	})
}

// Activate enables the SIM at the provider and mirrors the status locally.
func (e *CommandExecutor) Activate(ctx context.Context, iccid, key string) (sim.CommandOutcome, error) {
	return e.setStatus(ctx, sim.CommandActivate, iccid, key, valueobjects.StatusActive)
}

// Deactivate disables the SIM at the provider and mirrors the status locally.
func (e *CommandExecutor) Deactivate(ctx context.Context, iccid, key string) (sim.CommandOutcome, error) {
	return e.setStatus(ctx, sim.CommandDeactivate, iccid, key, valueobjects.StatusInactive)
}

func (e *CommandExecutor) setStatus(ctx context.Context, commandType sim.CommandType, iccid, key string, target valueobjects.SimStatus) (sim.CommandOutcome, error) {
	return e.run(ctx, commandType, iccid, key, func(ctx context.Context) (sim.CommandOutcome, error) {
		if err := e.provider.SetStatus(ctx, iccid, target); err != nil {
			return sim.CommandOutcome{}, err
		}

		if err := e.reconciler.ApplyStatus(ctx, iccid, target); err != nil {
			e.logger.Warnw("status change accepted but local update failed",
				"iccid", iccid,
				"target", target,
				"error", err,
			)
			return sim.CommandOutcome{
				Status:  sim.OutcomePartialSuccess,
				Message: fmt.Sprintf("status change to %s accepted by provider; local state catches up on next sync", target),
			}, nil
		}

		return sim.CommandOutcome{
			Status:  sim.OutcomeSuccess,
			Message: fmt.Sprintf("sim is now %s", target),
		}, nil
	})
}

// ResetConnectivity forces the SIM to re-attach to the network. Purely
// provider-side; nothing local changes.
func (e *CommandExecutor) ResetConnectivity(ctx context.Context, iccid, key string) (sim.CommandOutcome, error) {
	return e.run(ctx, sim.CommandResetConnectivity, iccid, key, func(ctx context.Context) (sim.CommandOutcome, error) {
		if err := e.provider.ResetConnectivity(ctx, iccid); err != nil {
			return sim.CommandOutcome{}, err
		}
		return sim.CommandOutcome{
			Status:  sim.OutcomeSuccess,
			Message: "connectivity reset triggered",
		}, nil
	})
}

// run wraps a command with idempotency replay. Keys are scoped per
// (command type, iccid), so the same client key on different commands or
// SIMs never collides.
func (e *CommandExecutor) run(ctx context.Context, commandType sim.CommandType, iccid, key string, exec func(ctx context.Context) (sim.CommandOutcome, error)) (sim.CommandOutcome, error) {
	if iccid == "" {
		return sim.CommandOutcome{}, apperrors.NewValidationError("iccid is required")
	}
	if key == "" {
		return sim.CommandOutcome{}, apperrors.NewValidationError("idempotency key is required")
	}

	existing, err := e.idems.Find(ctx, commandType, iccid, key)
	if err != nil && !errors.Is(err, sim.ErrIdempotencyNotFound) {
		return sim.CommandOutcome{}, apperrors.NewInternalError("failed to look up idempotency key", err)
	}
	if existing != nil {
		if !existing.Expired(biztime.NowUTC()) {
			e.logger.Infow("replaying recorded command outcome",
				"command", commandType,
				"iccid", iccid,
				"key", key,
				"status", existing.Status,
			)
			return existing.Outcome(), nil
		}
		// The replay window has passed but the daily cleanup has not purged
		// the row yet; drop it so the fresh outcome can be recorded.
		if err := e.idems.Delete(ctx, commandType, iccid, key); err != nil {
			e.logger.Warnw("failed to drop expired idempotency record",
				"command", commandType,
				"iccid", iccid,
				"key", key,
				"error", err,
			)
		}
	}

	outcome, err := exec(ctx)
	if err != nil {
		// The provider rejected or never received the command; nothing is
		// recorded so a retry with the same key executes again.
		return sim.CommandOutcome{}, err
	}

	rec, err := sim.NewIdempotencyRecord(commandType, iccid, key, outcome, e.ttl)
	if err != nil {
		return outcome, apperrors.NewInternalError("failed to build idempotency record", err)
	}
	if err := e.idems.Save(ctx, rec); err != nil {
		// The command itself succeeded; losing the replay record only costs
		// a duplicate execution if the caller retries.
		e.logger.Errorw("failed to record command outcome",
			"command", commandType,
			"iccid", iccid,
			"key", key,
			"error", err,
		)
	}
	return outcome, nil
}
