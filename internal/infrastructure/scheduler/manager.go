// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/simflux/simflux/internal/shared/biztime"
	"github.com/simflux/simflux/internal/shared/config"
	"github.com/simflux/simflux/internal/shared/logger"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items
// processed. Jobs are expected to handle their own due-time backoff and
// resume bookkeeping; the scheduler only provides the cadence.
type BatchJob interface {
	Name() string
	Execute(ctx context.Context) (int, error)
}

// SchedulerManager manages all sync jobs on a single gocron scheduler.
// Every job runs in singleton mode: a tick that fires while the previous
// run of the same job is still active is rescheduled, so no job ever
// overlaps itself.
type SchedulerManager struct {
	scheduler  gocron.Scheduler
	jobTimeout time.Duration
	logger     logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
func NewSchedulerManager(syncCfg config.SyncConfig, log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler:  scheduler,
		jobTimeout: syncCfg.JobTimeout(),
		logger:     log,
	}, nil
}

// RegisterSyncJob registers a periodic sync job with the given interval.
// The first run fires immediately so a fresh deployment converges without
// waiting a full interval.
func (m *SchedulerManager) RegisterSyncJob(job BatchJob, interval time.Duration) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.jobTimeout)
			defer cancel()
			m.runJob(ctx, job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("sync"),
		gocron.WithName(job.Name()),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered sync job", "job", job.Name(), "interval", interval)
	return nil
}

// RegisterCleanupJob registers the daily maintenance job on a cron
// expression evaluated in the business timezone.
func (m *SchedulerManager) RegisterCleanupJob(job BatchJob, cronExpr string) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.jobTimeout)
			defer cancel()
			m.runJob(ctx, job)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("maintenance"),
		gocron.WithName(job.Name()),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered cleanup job", "job", job.Name(), "cron", cronExpr)
	return nil
}

func (m *SchedulerManager) runJob(ctx context.Context, job BatchJob) {
	startTime := biztime.NowUTC()

	count, err := job.Execute(ctx)
	if err != nil {
		// Context cancellation during shutdown is not worth an error entry.
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("sync job failed",
			"job", job.Name(),
			"processed", count,
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if count > 0 {
		m.logger.Infow("sync job completed",
			"job", job.Name(),
			"processed", count,
			"duration", time.Since(startTime),
		)
	} else {
		m.logger.Debugw("sync job completed with nothing to do",
			"job", job.Name(),
			"duration", time.Since(startTime),
		)
	}
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
