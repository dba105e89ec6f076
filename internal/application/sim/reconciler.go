package sim

import (
	"context"
	"errors"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/cache"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/lock"
	"github.com/simflux/simflux/internal/shared/logger"
)

// Reconciler is the single write path into local SIM state. Sync jobs and
// the command executor both go through it, so writes to one SIM are
// serialized on a per-ICCID mutex and cache invalidation cannot be skipped.
type Reconciler struct {
	sims       sim.Repository
	usage      sim.UsageRepository
	quotas     sim.QuotaRepository
	simCache   cache.SimCache
	quotaCache cache.QuotaCache
	locks      *lock.KeyedMutex
	logger     logger.Interface
}

// NewReconciler creates the reconciler over the given stores and caches.
func NewReconciler(
	sims sim.Repository,
	usage sim.UsageRepository,
	quotas sim.QuotaRepository,
	simCache cache.SimCache,
	quotaCache cache.QuotaCache,
	log logger.Interface,
) *Reconciler {
	return &Reconciler{
		sims:       sims,
		usage:      usage,
		quotas:     quotas,
		simCache:   simCache,
		quotaCache: quotaCache,
		locks:      lock.NewKeyedMutex(),
		logger:     log,
	}
}

// ReconcileSim upserts the local row for a remote SIM snapshot and returns
// whether anything changed. Unchanged snapshots still bump last_synced_at
// but do not touch the cache.
func (r *Reconciler) ReconcileSim(ctx context.Context, remote sim.RemoteSim) (bool, error) {
	r.locks.Lock(remote.ICCID)
	defer r.locks.Unlock(remote.ICCID)

	existing, err := r.sims.FindByICCID(ctx, remote.ICCID)
	if err != nil && !errors.Is(err, sim.ErrSimNotFound) {
		return false, apperrors.NewReconciliationError("failed to load sim for reconcile", err)
	}

	if existing == nil {
		created, err := sim.NewSimFromRemote(remote)
		if err != nil {
			return false, apperrors.NewReconciliationError("invalid remote sim snapshot", err)
		}
		if err := r.sims.Save(ctx, created); err != nil {
			return false, apperrors.NewReconciliationError("failed to create sim", err)
		}
		r.invalidateSim(ctx, remote.ICCID)
		r.logger.Infow("discovered new sim", "iccid", remote.ICCID, "status", remote.Status)
		return true, nil
	}

	changed, err := existing.ApplyRemote(remote)
	if err != nil {
		return false, apperrors.NewReconciliationError("failed to apply remote sim snapshot", err)
	}
	if err := r.sims.Save(ctx, existing); err != nil {
		return false, apperrors.NewReconciliationError("failed to save sim", err)
	}
	if changed {
		r.invalidateSim(ctx, remote.ICCID)
	}
	return changed, nil
}

// AppendUsage appends provider usage records for one ICCID. Duplicates
// (same iccid, timestamp, direction) are skipped by the store, so re-synced
// windows never double-count.
func (r *Reconciler) AppendUsage(ctx context.Context, iccid string, records []sim.UsageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	r.locks.Lock(iccid)
	defer r.locks.Unlock(iccid)

	inserted, skipped, err := r.usage.Append(ctx, records)
	if err != nil {
		return 0, apperrors.NewReconciliationError("failed to append usage records", err)
	}
	if skipped > 0 {
		r.logger.Debugw("usage window overlapped existing records",
			"iccid", iccid,
			"inserted", inserted,
			"skipped", skipped,
		)
	}
	return inserted, nil
}

// ReconcileQuota overwrites the local quota snapshot with the provider's
// values. Anomalous values (used decreased, used above total) are applied
// after clamping and logged as warnings rather than rejected: counters
// legitimately reset at billing-cycle boundaries.
func (r *Reconciler) ReconcileQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType, total, used uint64) (*sim.Quota, error) {
	r.locks.Lock(iccid)
	defer r.locks.Unlock(iccid)

	quota, err := r.quotas.Find(ctx, iccid, quotaType)
	if err != nil && !errors.Is(err, sim.ErrQuotaNotFound) {
		return nil, apperrors.NewReconciliationError("failed to load quota for reconcile", err)
	}

	if quota == nil {
		quota, err = sim.NewQuota(iccid, quotaType, total, used)
		if err != nil {
			return nil, apperrors.NewReconciliationError("invalid remote quota values", err)
		}
		if used > total {
			r.logQuotaAnomaly(iccid, quotaType, sim.AnomalyUsedOverTotal, total, used)
		}
	} else {
		if anomaly := quota.ApplyRemote(total, used); anomaly != sim.AnomalyNone {
			r.logQuotaAnomaly(iccid, quotaType, anomaly, total, used)
		}
	}

	if err := r.quotas.Save(ctx, quota); err != nil {
		return nil, apperrors.NewReconciliationError("failed to save quota", err)
	}
	r.invalidateQuota(ctx, iccid, quotaType)
	return quota, nil
}

// ApplyStatus persists a command-driven status change after the provider
// accepted it.
func (r *Reconciler) ApplyStatus(ctx context.Context, iccid string, target valueobjects.SimStatus) error {
	r.locks.Lock(iccid)
	defer r.locks.Unlock(iccid)

	existing, err := r.sims.FindByICCID(ctx, iccid)
	if err != nil {
		return apperrors.NewReconciliationError("failed to load sim for status change", err)
	}
	if err := existing.SetStatus(target); err != nil {
		return apperrors.NewReconciliationError("status transition rejected", err)
	}
	if err := r.sims.Save(ctx, existing); err != nil {
		return apperrors.NewReconciliationError("failed to save sim status", err)
	}
	r.invalidateSim(ctx, iccid)
	return nil
}

// ApplyTopUp optimistically raises the local quota total after the provider
// accepted a top-up, ahead of the next authoritative quota sync.
func (r *Reconciler) ApplyTopUp(ctx context.Context, iccid string, quotaType valueobjects.QuotaType, volume uint64) (*sim.Quota, error) {
	r.locks.Lock(iccid)
	defer r.locks.Unlock(iccid)

	quota, err := r.quotas.Find(ctx, iccid, quotaType)
	if err != nil {
		return nil, apperrors.NewReconciliationError("failed to load quota for top-up", err)
	}
	quota.ApplyTopUp(volume)
	if err := r.quotas.Save(ctx, quota); err != nil {
		return nil, apperrors.NewReconciliationError("failed to save quota top-up", err)
	}
	r.invalidateQuota(ctx, iccid, quotaType)
	return quota, nil
}

// Cache invalidation failures are logged, never propagated: the cache is
// TTL-bounded, so a missed invalidation heals itself.
func (r *Reconciler) invalidateSim(ctx context.Context, iccid string) {
	if err := r.simCache.Invalidate(ctx, iccid); err != nil {
		r.logger.Warnw("sim cache invalidation failed", "iccid", iccid, "error", err)
	}
}

func (r *Reconciler) invalidateQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType) {
	if err := r.quotaCache.Invalidate(ctx, iccid, quotaType.String()); err != nil {
		r.logger.Warnw("quota cache invalidation failed", "iccid", iccid, "quota_type", quotaType, "error", err)
	}
}

func (r *Reconciler) logQuotaAnomaly(iccid string, quotaType valueobjects.QuotaType, anomaly sim.QuotaAnomaly, total, used uint64) {
	r.logger.Warnw("quota anomaly reported by provider",
		"iccid", iccid,
		"quota_type", quotaType,
		"anomaly", string(anomaly),
		"total", total,
		"used", used,
	)
}
