package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaCacheRoundTrip(t *testing.T) {
	client, _ := newTestCacheClient(t)
	c := NewRedisQuotaCache(client, cacheConfig(), nopLogger())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &CachedQuota{
		ICCID:     "8988228066612345678",
		QuotaType: "data",
		Total:     5_000_000_000,
		Used:      100_000,
		UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}))

	cached, err := c.Get(ctx, "8988228066612345678", "data")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, uint64(5_000_000_000), cached.Total)
	assert.Equal(t, uint64(100_000), cached.Used)
	assert.Equal(t, uint64(4_999_900_000), cached.Remaining())

	// Quota types are cached independently.
	miss, err := c.Get(ctx, "8988228066612345678", "sms")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestQuotaCacheRemainingFloorsAtZero(t *testing.T) {
	q := &CachedQuota{Total: 100, Used: 250}
	assert.Zero(t, q.Remaining())
}

func TestQuotaCacheInvalidate(t *testing.T) {
	client, _ := newTestCacheClient(t)
	c := NewRedisQuotaCache(client, cacheConfig(), nopLogger())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &CachedQuota{ICCID: "8988228066612345678", QuotaType: "data", Total: 100}))
	require.NoError(t, c.Invalidate(ctx, "8988228066612345678", "data"))

	cached, err := c.Get(ctx, "8988228066612345678", "data")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestQuotaCacheNullMarker(t *testing.T) {
	client, _ := newTestCacheClient(t)
	c := NewRedisQuotaCache(client, cacheConfig(), nopLogger())
	ctx := context.Background()

	require.NoError(t, c.SetNullMarker(ctx, "8988228066600000000", "data"))

	cached, err := c.Get(ctx, "8988228066600000000", "data")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.NotFound)
}
