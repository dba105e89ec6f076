package sim

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/simflux/simflux/internal/domain/sim"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/goroutine"
	"github.com/simflux/simflux/internal/shared/logger"
)

// Job is a runnable sync job. All four scheduled jobs implement it.
type Job interface {
	Name() string
	Execute(ctx context.Context) (int, error)
}

// SyncTrigger runs sync jobs on demand, outside their schedule. A trigger
// is rejected while the same job is already running, mirroring the
// scheduler's singleton guarantee.
type SyncTrigger struct {
	jobs     map[string]Job
	inflight map[string]*atomic.Bool
	timeout  time.Duration
	logger   logger.Interface
}

// NewSyncTrigger registers the given jobs for manual triggering.
func NewSyncTrigger(timeout time.Duration, log logger.Interface, jobs ...Job) *SyncTrigger {
	t := &SyncTrigger{
		jobs:     make(map[string]Job, len(jobs)),
		inflight: make(map[string]*atomic.Bool, len(jobs)),
		timeout:  timeout,
		logger:   log,
	}
	for _, job := range jobs {
		t.jobs[job.Name()] = job
		t.inflight[job.Name()] = &atomic.Bool{}
	}
	return t
}

// Trigger starts jobName asynchronously and returns immediately. It fails
// fast when the job name is unknown or a triggered run of the same job is
// still in flight.
func (t *SyncTrigger) Trigger(ctx context.Context, jobName string) error {
	job, ok := t.jobs[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", sim.ErrUnknownJob, jobName)
	}

	guard := t.inflight[jobName]
	if !guard.CompareAndSwap(false, true) {
		return apperrors.NewConflictError(fmt.Sprintf("sync job %s is already running", jobName))
	}

	t.logger.Infow("manual sync triggered", "job", jobName)
	goroutine.SafeGo(t.logger, "manual-"+jobName, func() {
		defer guard.Store(false)

		runCtx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		count, err := job.Execute(runCtx)
		if err != nil {
			t.logger.Errorw("manual sync failed", "job", jobName, "processed", count, "error", err)
			return
		}
		t.logger.Infow("manual sync completed", "job", jobName, "processed", count)
	})
	return nil
}

// Known returns the job names available for triggering.
func (t *SyncTrigger) Known() []string {
	names := make([]string, 0, len(t.jobs))
	for name := range t.jobs {
		names = append(names, name)
	}
	return names
}
