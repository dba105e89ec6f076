package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/infrastructure/cache"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
)

func TestReconcileSimCreatesThenDetectsChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	remote := sim.RemoteSim{
		ICCID:    "8988228066612345678",
		IMSI:     "901405800012345",
		Status:   valueobjects.StatusActive,
		Operator: "Deutsche Telekom",
	}

	changed, err := env.reconciler.ReconcileSim(ctx, remote)
	require.NoError(t, err)
	assert.True(t, changed, "first sight of a sim is a change")

	stored, err := env.sims.FindByICCID(ctx, remote.ICCID)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StatusActive, stored.Status())

	// The identical snapshot is a no-op.
	changed, err = env.reconciler.ReconcileSim(ctx, remote)
	require.NoError(t, err)
	assert.False(t, changed)

	remote.Status = valueobjects.StatusSuspended
	changed, err = env.reconciler.ReconcileSim(ctx, remote)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err = env.sims.FindByICCID(ctx, remote.ICCID)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StatusSuspended, stored.Status())
}

func TestReconcileSimInvalidatesCacheOnlyWhenChanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	remote := sim.RemoteSim{ICCID: "8988228066612345678", Status: valueobjects.StatusActive}

	_, err := env.reconciler.ReconcileSim(ctx, remote)
	require.NoError(t, err)

	require.NoError(t, env.simCache.Set(ctx, &cache.CachedSim{
		ICCID:        remote.ICCID,
		Status:       "active",
		LastSyncedAt: time.Now().UTC(),
	}))

	// Unchanged snapshot leaves the cache entry alone.
	_, err = env.reconciler.ReconcileSim(ctx, remote)
	require.NoError(t, err)
	cached, err := env.simCache.Get(ctx, remote.ICCID)
	require.NoError(t, err)
	assert.NotNil(t, cached)

	// A real change drops it.
	remote.Status = valueobjects.StatusInactive
	_, err = env.reconciler.ReconcileSim(ctx, remote)
	require.NoError(t, err)
	cached, err = env.simCache.Get(ctx, remote.ICCID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestAppendUsageSkipsOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	iccid := "8988228066612345678"

	first := []sim.UsageRecord{
		{ICCID: iccid, Timestamp: base, Direction: valueobjects.DirectionRx, Bytes: 100},
		{ICCID: iccid, Timestamp: base.Add(time.Hour), Direction: valueobjects.DirectionRx, Bytes: 200},
	}
	inserted, err := env.reconciler.AppendUsage(ctx, iccid, first)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// A re-fetched window overlapping the first only adds the new record.
	second := append(first, sim.UsageRecord{
		ICCID: iccid, Timestamp: base.Add(2 * time.Hour), Direction: valueobjects.DirectionRx, Bytes: 300,
	})
	inserted, err = env.reconciler.AppendUsage(ctx, iccid, second)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestReconcileQuotaClampsAnomalies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iccid := "8988228066612345678"

	// used above total is clamped, never stored negative-remaining.
	quota, err := env.reconciler.ReconcileQuota(ctx, iccid, valueobjects.QuotaTypeData, 100, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), quota.Used())
	assert.Zero(t, quota.Remaining())

	// A used counter decrease (billing cycle reset) is applied as-is.
	quota, err = env.reconciler.ReconcileQuota(ctx, iccid, valueobjects.QuotaTypeData, 500, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), quota.Used())
	assert.Equal(t, uint64(480), quota.Remaining())
}

func TestApplyStatusRejectsInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iccid := "8988228066612345678"
	env.seedSim(t, iccid, valueobjects.StatusInactive)

	// inactive sims may only be re-activated, not suspended.
	err := env.reconciler.ApplyStatus(ctx, iccid, valueobjects.StatusSuspended)
	require.Error(t, err)
	assert.True(t, apperrors.IsReconciliationError(err))

	require.NoError(t, env.reconciler.ApplyStatus(ctx, iccid, valueobjects.StatusActive))
	stored, err := env.sims.FindByICCID(ctx, iccid)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StatusActive, stored.Status())
}

func TestApplyTopUpRaisesTotalOptimistically(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iccid := "8988228066612345678"
	env.seedQuota(t, iccid, valueobjects.QuotaTypeData, 1000, 400)

	quota, err := env.reconciler.ApplyTopUp(ctx, iccid, valueobjects.QuotaTypeData, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), quota.Total())
	assert.Equal(t, uint64(400), quota.Used())
}
