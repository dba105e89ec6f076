package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflux/simflux/internal/shared/config"
	"github.com/simflux/simflux/internal/shared/logger"
)

func newTestCacheClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func nopLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.DiscardHandler))
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{TTLSeconds: 60, JitterSeconds: 20, NullTTLSeconds: 120}
}

func TestSimCacheMissReturnsNil(t *testing.T) {
	client, _ := newTestCacheClient(t)
	c := NewRedisSimCache(client, cacheConfig(), nopLogger())

	cached, err := c.Get(context.Background(), "8988228066612345678")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestSimCacheRoundTrip(t *testing.T) {
	client, mr := newTestCacheClient(t)
	c := NewRedisSimCache(client, cacheConfig(), nopLogger())
	ctx := context.Background()

	activated := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, c.Set(ctx, &CachedSim{
		ICCID:        "8988228066612345678",
		IMSI:         "901405123456789",
		MSISDN:       "882360001234567",
		Status:       "active",
		IPAddress:    "10.64.1.17",
		Operator:     "1NCE",
		ActivatedAt:  &activated,
		Label:        "tracker-042",
		LastSyncedAt: activated.Add(time.Hour),
	}))

	cached, err := c.Get(ctx, "8988228066612345678")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "active", cached.Status)
	assert.Equal(t, "1NCE", cached.Operator)
	require.NotNil(t, cached.ActivatedAt)
	assert.True(t, cached.ActivatedAt.Equal(activated))
	assert.True(t, cached.LastSyncedAt.Equal(activated.Add(time.Hour)))
	assert.False(t, cached.NotFound)

	// TTL must fall inside [base, base+jitter).
	ttl := mr.TTL("sim:info:8988228066612345678")
	assert.GreaterOrEqual(t, ttl, 60*time.Second)
	assert.Less(t, ttl, 80*time.Second)
}

func TestSimCacheInvalidate(t *testing.T) {
	client, _ := newTestCacheClient(t)
	c := NewRedisSimCache(client, cacheConfig(), nopLogger())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &CachedSim{ICCID: "8988228066612345678", Status: "active"}))
	require.NoError(t, c.Invalidate(ctx, "8988228066612345678"))

	cached, err := c.Get(ctx, "8988228066612345678")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestSimCacheNullMarker(t *testing.T) {
	client, mr := newTestCacheClient(t)
	c := NewRedisSimCache(client, cacheConfig(), nopLogger())
	ctx := context.Background()

	require.NoError(t, c.SetNullMarker(ctx, "8988228066600000000"))

	cached, err := c.Get(ctx, "8988228066600000000")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.NotFound)

	// The marker is short-lived; a later Set must clear it.
	mr.FastForward(121 * time.Second)
	cached, err = c.Get(ctx, "8988228066600000000")
	require.NoError(t, err)
	assert.Nil(t, cached)

	require.NoError(t, c.SetNullMarker(ctx, "8988228066612345678"))
	require.NoError(t, c.Set(ctx, &CachedSim{ICCID: "8988228066612345678", Status: "active"}))
	cached, err = c.Get(ctx, "8988228066612345678")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.False(t, cached.NotFound)
}
