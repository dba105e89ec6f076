package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
)

func newQueryService(env *testEnv) *QueryService {
	return NewQueryService(env.sims, env.usage, env.quotas, env.simCache, env.quotaCache, nopLogger())
}

func TestGetSimPopulatesCacheOnMiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iccid := "8988228066612345678"
	env.seedSim(t, iccid, valueobjects.StatusActive)
	require.NoError(t, env.simCache.Invalidate(ctx, iccid))

	svc := newQueryService(env)
	dto, err := svc.GetSim(ctx, iccid)
	require.NoError(t, err)
	assert.Equal(t, iccid, dto.ICCID)
	assert.Equal(t, "active", dto.Status)
	assert.Equal(t, "Deutsche Telekom", dto.Operator)

	cached, err := env.simCache.Get(ctx, iccid)
	require.NoError(t, err)
	require.NotNil(t, cached, "read-through populates the cache")
	assert.Equal(t, iccid, cached.ICCID)
}

func TestGetSimNegativeCachesUnknownICCID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newQueryService(env)

	_, err := svc.GetSim(ctx, "8988228066699999999")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))

	// The miss left a null marker so the next lookup skips the database.
	cached, err := env.simCache.Get(ctx, "8988228066699999999")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.NotFound)

	_, err = svc.GetSim(ctx, "8988228066699999999")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestListSims(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSim(t, "8988228066600000001", valueobjects.StatusActive)
	env.seedSim(t, "8988228066600000002", valueobjects.StatusInactive)
	env.seedSim(t, "8988228066600000003", valueobjects.StatusActive)

	svc := newQueryService(env)

	result, err := svc.ListSims(ctx, sim.ListFilter{Status: valueobjects.StatusActive}, sim.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	assert.Len(t, result.Sims, 2)

	result, err = svc.ListSims(ctx, sim.ListFilter{}, sim.Page{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	assert.Len(t, result.Sims, 1)

	_, err = svc.ListSims(ctx, sim.ListFilter{Status: valueobjects.SimStatus("broken")}, sim.Page{})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGetUsageWindowDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iccid := "8988228066612345678"
	env.seedSim(t, iccid, valueobjects.StatusActive)

	now := time.Now().UTC().Truncate(time.Second)
	_, err := env.reconciler.AppendUsage(ctx, iccid, []sim.UsageRecord{
		{ICCID: iccid, Timestamp: now.Add(-time.Hour), Direction: valueobjects.DirectionRx, Bytes: 100},
		{ICCID: iccid, Timestamp: now.Add(-48 * time.Hour), Direction: valueobjects.DirectionRx, Bytes: 200},
	})
	require.NoError(t, err)

	svc := newQueryService(env)

	// Default window is the last 24 hours.
	records, err := svc.GetUsage(ctx, iccid, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(100), records[0].Bytes)

	records, err = svc.GetUsage(ctx, iccid, now.Add(-72*time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = svc.GetUsage(ctx, iccid, now, now.Add(-time.Hour))
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGetQuotaReadThrough(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iccid := "8988228066612345678"
	env.seedQuota(t, iccid, valueobjects.QuotaTypeData, 1000, 400)

	svc := newQueryService(env)

	snap, err := svc.GetQuota(ctx, iccid, valueobjects.QuotaTypeData)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), snap.Total)
	assert.Equal(t, uint64(600), snap.Remaining)

	cached, err := env.quotaCache.Get(ctx, iccid, "data")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, uint64(400), cached.Used)

	// Cached path returns the same snapshot.
	snap, err = svc.GetQuota(ctx, iccid, valueobjects.QuotaTypeData)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), snap.Remaining)

	_, err = svc.GetQuota(ctx, iccid, valueobjects.QuotaTypeSMS)
	assert.True(t, apperrors.IsNotFoundError(err))

	_, err = svc.GetQuota(ctx, iccid, valueobjects.QuotaType("voice"))
	assert.True(t, apperrors.IsValidationError(err))
}
