package sim

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflux/simflux/internal/domain/sim"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
)

// blockingJob runs until released, so tests can observe in-flight state.
type blockingJob struct {
	name    string
	release chan struct{}
	runs    atomic.Int32
}

func (j *blockingJob) Name() string { return j.name }

func (j *blockingJob) Execute(ctx context.Context) (int, error) {
	j.runs.Add(1)
	select {
	case <-j.release:
	case <-ctx.Done():
	}
	return 0, nil
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	trigger := NewSyncTrigger(time.Minute, nopLogger())
	err := trigger.Trigger(context.Background(), "no_such_job")
	assert.ErrorIs(t, err, sim.ErrUnknownJob)
}

func TestTriggerRejectsWhileJobInFlight(t *testing.T) {
	job := &blockingJob{name: sim.JobInventorySync, release: make(chan struct{})}
	trigger := NewSyncTrigger(time.Minute, nopLogger(), job)
	ctx := context.Background()

	require.NoError(t, trigger.Trigger(ctx, sim.JobInventorySync))

	require.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	err := trigger.Trigger(ctx, sim.JobInventorySync)
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeConflict, appErr.Type)

	close(job.release)
	require.Eventually(t, func() bool {
		return trigger.Trigger(ctx, sim.JobInventorySync) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestTriggerKnownJobs(t *testing.T) {
	a := &blockingJob{name: sim.JobUsageSync, release: make(chan struct{})}
	b := &blockingJob{name: sim.JobQuotaCheck, release: make(chan struct{})}
	close(a.release)
	close(b.release)

	trigger := NewSyncTrigger(time.Minute, nopLogger(), a, b)
	assert.ElementsMatch(t, []string{sim.JobUsageSync, sim.JobQuotaCheck}, trigger.Known())
}
