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
	"github.com/simflux/simflux/internal/shared/db"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/logger"
)

// minSampleForThreshold keeps small runs from aborting on a single failure:
// the error-rate threshold only applies once this many items were attempted.
const minSampleForThreshold = 5

// thresholdExceeded reports whether a run accumulated too many per-item
// failures to be trusted to continue.
func thresholdExceeded(failed, attempted int, threshold float64) bool {
	if attempted < minSampleForThreshold || threshold <= 0 {
		return false
	}
	return float64(failed)/float64(attempted) > threshold
}

// cursorFor loads the job's bookkeeping row, creating it on first run.
func cursorFor(ctx context.Context, cursors sim.SyncCursorRepository, jobName string) (*sim.SyncCursor, error) {
	cursor, err := cursors.Find(ctx, jobName)
	if err != nil {
		if errors.Is(err, sim.ErrCursorNotFound) {
			return sim.NewSyncCursor(jobName), nil
		}
		return nil, err
	}
	return cursor, nil
}

// finishRun persists the cursor outcome of a run. Cursor persistence
// failures are logged but do not override the run's own result.
func finishRun(ctx context.Context, cursors sim.SyncCursorRepository, cursor *sim.SyncCursor, log logger.Interface) {
	if err := cursors.Save(ctx, cursor); err != nil {
		log.Errorw("failed to persist sync cursor", "job", cursor.JobName, "error", err)
	}
}

// InventorySyncJob reconciles the full provider SIM inventory into the
// local store and flags SIMs the provider stopped reporting.
type InventorySyncJob struct {
	provider   ProviderAPI
	reconciler *Reconciler
	sims       sim.Repository
	cursors    sim.SyncCursorRepository
	tx         *db.TransactionManager
	syncCfg    config.SyncConfig
	logger     logger.Interface
}

func NewInventorySyncJob(
	provider ProviderAPI,
	reconciler *Reconciler,
	sims sim.Repository,
	cursors sim.SyncCursorRepository,
	tx *db.TransactionManager,
	syncCfg config.SyncConfig,
	log logger.Interface,
) *InventorySyncJob {
	return &InventorySyncJob{
		provider:   provider,
		reconciler: reconciler,
		sims:       sims,
		cursors:    cursors,
		tx:         tx,
		syncCfg:    syncCfg,
		logger:     log,
	}
}

func (j *InventorySyncJob) Name() string { return sim.JobInventorySync }

// Execute walks the inventory listing page by page. A run resuming from a
// saved page cursor only covers part of the inventory, so absence marking
// is reserved for runs that started from the beginning.
func (j *InventorySyncJob) Execute(ctx context.Context) (int, error) {
	cursor, err := cursorFor(ctx, j.cursors, j.Name())
	if err != nil {
		return 0, err
	}
	if !cursor.Due(biztime.NowUTC()) {
		j.logger.Debugw("inventory sync backing off", "next_run_at", cursor.NextRunAt)
		return 0, nil
	}

	fullListing := cursor.PageCursor == ""
	pager := NewSimPager(j.provider)
	pager.SetCursor(cursor.PageCursor)
	var (
		processed int
		failed    int
		seen      []string
	)

	for !pager.Done() {
		sims, err := pager.Next(ctx)
		if err != nil {
			cursor.RecordFailure(err, pager.Cursor(), j.syncCfg.InventoryInterval())
			finishRun(ctx, j.cursors, cursor, j.logger)
			return processed, fmt.Errorf("inventory listing failed: %w", err)
		}

		for _, remote := range sims {
			processed++
			if _, err := j.reconciler.ReconcileSim(ctx, remote); err != nil {
				failed++
				j.logger.Errorw("sim reconcile failed", "iccid", remote.ICCID, "error", err)
			}
			// The provider reported the SIM either way; a reconcile failure
			// must not read as absence from the inventory.
			seen = append(seen, remote.ICCID)
		}

		if thresholdExceeded(failed, processed, j.syncCfg.ErrorThreshold) {
			err := fmt.Errorf("inventory sync aborted: %d of %d sims failed", failed, processed)
			cursor.RecordFailure(err, pager.Cursor(), j.syncCfg.InventoryInterval())
			finishRun(ctx, j.cursors, cursor, j.logger)
			return processed, err
		}
	}

	// Absence marking and the cursor reset commit together: a half-applied
	// pair would double-count missed syncs on the next run.
	cursor.RecordSuccess()
	err = j.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if fullListing {
			missed, err := j.sims.MarkMissedExcept(ctx, seen)
			if err != nil {
				return fmt.Errorf("failed to mark missed sims: %w", err)
			}
			if missed > 0 {
				j.logger.Warnw("sims missing from provider inventory", "count", missed)
			}
		}
		return j.cursors.Save(ctx, cursor)
	})
	if err != nil {
		cursor.RecordFailure(err, "", j.syncCfg.InventoryInterval())
		finishRun(ctx, j.cursors, cursor, j.logger)
		return processed, err
	}
	return processed, nil
}

// UsageSyncJob fetches new usage records for every known SIM. Each SIM's
// fetch window starts at its newest stored record, so overlapping fetches
// only cost skipped duplicates.
type UsageSyncJob struct {
	provider   ProviderAPI
	reconciler *Reconciler
	sims       sim.Repository
	usage      sim.UsageRepository
	cursors    sim.SyncCursorRepository
	syncCfg    config.SyncConfig
	logger     logger.Interface
}

func NewUsageSyncJob(
	provider ProviderAPI,
	reconciler *Reconciler,
	sims sim.Repository,
	usage sim.UsageRepository,
	cursors sim.SyncCursorRepository,
	syncCfg config.SyncConfig,
	log logger.Interface,
) *UsageSyncJob {
	return &UsageSyncJob{
		provider:   provider,
		reconciler: reconciler,
		sims:       sims,
		usage:      usage,
		cursors:    cursors,
		syncCfg:    syncCfg,
		logger:     log,
	}
}

func (j *UsageSyncJob) Name() string { return sim.JobUsageSync }

func (j *UsageSyncJob) Execute(ctx context.Context) (int, error) {
	cursor, err := cursorFor(ctx, j.cursors, j.Name())
	if err != nil {
		return 0, err
	}
	now := biztime.NowUTC()
	if !cursor.Due(now) {
		j.logger.Debugw("usage sync backing off", "next_run_at", cursor.NextRunAt)
		return 0, nil
	}

	iccids, err := j.sims.ListICCIDs(ctx)
	if err != nil {
		cursor.RecordFailure(err, "", j.syncCfg.UsageInterval())
		finishRun(ctx, j.cursors, cursor, j.logger)
		return 0, fmt.Errorf("failed to list iccids for usage sync: %w", err)
	}

	var inserted, failed int
	for _, iccid := range iccids {
		n, err := j.syncOne(ctx, iccid, now)
		if err != nil {
			failed++
			j.logger.Errorw("usage sync failed for sim", "iccid", iccid, "error", err)
		}
		inserted += n
	}

	if thresholdExceeded(failed, len(iccids), j.syncCfg.ErrorThreshold) {
		err := fmt.Errorf("usage sync degraded: %d of %d sims failed", failed, len(iccids))
		cursor.RecordFailure(err, "", j.syncCfg.UsageInterval())
		finishRun(ctx, j.cursors, cursor, j.logger)
		return inserted, err
	}

	cursor.RecordSuccess()
	finishRun(ctx, j.cursors, cursor, j.logger)
	return inserted, nil
}

func (j *UsageSyncJob) syncOne(ctx context.Context, iccid string, now time.Time) (int, error) {
	latest, err := j.usage.LatestTimestamp(ctx, iccid)
	if err != nil {
		return 0, err
	}

	from := latest
	if from.IsZero() {
		from = now.Add(-j.syncCfg.UsageLookback())
	}

	pager := NewUsagePager(j.provider, iccid, from, now)
	var inserted int
	for !pager.Done() {
		records, err := pager.Next(ctx)
		if err != nil {
			return inserted, err
		}
		n, err := j.reconciler.AppendUsage(ctx, iccid, records)
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

// QuotaCheckJob refreshes the data and SMS quota snapshots of every known
// SIM from the provider.
type QuotaCheckJob struct {
	provider   ProviderAPI
	reconciler *Reconciler
	sims       sim.Repository
	cursors    sim.SyncCursorRepository
	syncCfg    config.SyncConfig
	logger     logger.Interface
}

func NewQuotaCheckJob(
	provider ProviderAPI,
	reconciler *Reconciler,
	sims sim.Repository,
	cursors sim.SyncCursorRepository,
	syncCfg config.SyncConfig,
	log logger.Interface,
) *QuotaCheckJob {
	return &QuotaCheckJob{
		provider:   provider,
		reconciler: reconciler,
		sims:       sims,
		cursors:    cursors,
		syncCfg:    syncCfg,
		logger:     log,
	}
}

func (j *QuotaCheckJob) Name() string { return sim.JobQuotaCheck }

func (j *QuotaCheckJob) Execute(ctx context.Context) (int, error) {
	cursor, err := cursorFor(ctx, j.cursors, j.Name())
	if err != nil {
		return 0, err
	}
	if !cursor.Due(biztime.NowUTC()) {
		j.logger.Debugw("quota check backing off", "next_run_at", cursor.NextRunAt)
		return 0, nil
	}

	iccids, err := j.sims.ListICCIDs(ctx)
	if err != nil {
		cursor.RecordFailure(err, "", j.syncCfg.QuotaInterval())
		finishRun(ctx, j.cursors, cursor, j.logger)
		return 0, fmt.Errorf("failed to list iccids for quota check: %w", err)
	}

	var refreshed, failed, attempted int
	for _, iccid := range iccids {
		for _, quotaType := range []valueobjects.QuotaType{valueobjects.QuotaTypeData, valueobjects.QuotaTypeSMS} {
			attempted++
			total, used, err := j.provider.GetQuota(ctx, iccid, quotaType)
			if err != nil {
				// SIMs without a quota of this type are a normal condition,
				// not a sync failure.
				if apperrors.IsClientError(err) {
					j.logger.Debugw("no quota of this type for sim", "iccid", iccid, "quota_type", quotaType)
					continue
				}
				failed++
				j.logger.Errorw("quota fetch failed", "iccid", iccid, "quota_type", quotaType, "error", err)
				continue
			}
			if _, err := j.reconciler.ReconcileQuota(ctx, iccid, quotaType, total, used); err != nil {
				failed++
				j.logger.Errorw("quota reconcile failed", "iccid", iccid, "quota_type", quotaType, "error", err)
				continue
			}
			refreshed++
		}
	}

	if thresholdExceeded(failed, attempted, j.syncCfg.ErrorThreshold) {
		err := fmt.Errorf("quota check degraded: %d of %d fetches failed", failed, attempted)
		cursor.RecordFailure(err, "", j.syncCfg.QuotaInterval())
		finishRun(ctx, j.cursors, cursor, j.logger)
		return refreshed, err
	}

	cursor.RecordSuccess()
	finishRun(ctx, j.cursors, cursor, j.logger)
	return refreshed, nil
}

// CleanupJob is the daily maintenance pass: it drops expired idempotency
// records and soft-deactivates SIMs absent from too many consecutive
// inventory listings.
type CleanupJob struct {
	sims    sim.Repository
	idems   sim.IdempotencyRepository
	cursors sim.SyncCursorRepository
	syncCfg config.SyncConfig
	logger  logger.Interface
}

func NewCleanupJob(
	sims sim.Repository,
	idems sim.IdempotencyRepository,
	cursors sim.SyncCursorRepository,
	syncCfg config.SyncConfig,
	log logger.Interface,
) *CleanupJob {
	return &CleanupJob{
		sims:    sims,
		idems:   idems,
		cursors: cursors,
		syncCfg: syncCfg,
		logger:  log,
	}
}

func (j *CleanupJob) Name() string { return sim.JobCleanup }

func (j *CleanupJob) Execute(ctx context.Context) (int, error) {
	cursor, err := cursorFor(ctx, j.cursors, j.Name())
	if err != nil {
		return 0, err
	}

	now := biztime.NowUTC()
	expired, err := j.idems.DeleteExpired(ctx, now)
	if err != nil {
		cursor.RecordFailure(err, "", 24*time.Hour)
		finishRun(ctx, j.cursors, cursor, j.logger)
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}

	deactivated, err := j.sims.DeactivateMissed(ctx, j.syncCfg.MissedSyncsToRetire)
	if err != nil {
		cursor.RecordFailure(err, "", 24*time.Hour)
		finishRun(ctx, j.cursors, cursor, j.logger)
		return int(expired), fmt.Errorf("failed to deactivate missed sims: %w", err)
	}

	if expired > 0 || deactivated > 0 {
		j.logger.Infow("cleanup pass completed",
			"expired_idempotency_records", expired,
			"deactivated_sims", deactivated,
		)
	}

	cursor.RecordSuccess()
	finishRun(ctx, j.cursors, cursor, j.logger)
	return int(expired + deactivated), nil
}
