package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simflux/simflux/internal/shared/config"
	"github.com/simflux/simflux/internal/shared/logger"
)

// CachedQuota is the cached read model of a quota snapshot. Remaining is
// not cached; it is derived from total and used on read.
type CachedQuota struct {
	ICCID     string
	QuotaType string
	Total     uint64
	Used      uint64
	UpdatedAt time.Time
	NotFound  bool // null marker: quota confirmed absent in DB
}

// Remaining derives total - used, floored at zero.
func (q *CachedQuota) Remaining() uint64 {
	if q.Used >= q.Total {
		return 0
	}
	return q.Total - q.Used
}

// QuotaCache defines the caching interface for quota reads
type QuotaCache interface {
	Get(ctx context.Context, iccid, quotaType string) (*CachedQuota, error)
	Set(ctx context.Context, q *CachedQuota) error
	Invalidate(ctx context.Context, iccid, quotaType string) error
	SetNullMarker(ctx context.Context, iccid, quotaType string) error
}

const (
	quotaKeyPrefix = "sim:quota:"

	fieldQuotaTotal     = "total"
	fieldQuotaUsed      = "used"
	fieldQuotaUpdatedAt = "updated_at"
)

// RedisQuotaCache implements QuotaCache using Redis hashes
type RedisQuotaCache struct {
	client  *redis.Client
	ttl     time.Duration
	jitter  time.Duration
	nullTTL time.Duration
	logger  logger.Interface
}

// NewRedisQuotaCache creates a new Redis-based quota cache
func NewRedisQuotaCache(client *redis.Client, cfg config.CacheConfig, log logger.Interface) *RedisQuotaCache {
	return &RedisQuotaCache{
		client:  client,
		ttl:     cfg.TTL(),
		jitter:  cfg.Jitter(),
		nullTTL: cfg.NullTTL(),
		logger:  log,
	}
}

func (c *RedisQuotaCache) key(iccid, quotaType string) string {
	return fmt.Sprintf("%s%s:%s", quotaKeyPrefix, iccid, quotaType)
}

// Get retrieves a cached quota. A nil result with nil error is a cache miss.
func (c *RedisQuotaCache) Get(ctx context.Context, iccid, quotaType string) (*CachedQuota, error) {
	result, err := c.client.HGetAll(ctx, c.key(iccid, quotaType)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get quota from cache: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	if result[fieldNullMarker] == "1" {
		return &CachedQuota{ICCID: iccid, QuotaType: quotaType, NotFound: true}, nil
	}

	cached := &CachedQuota{ICCID: iccid, QuotaType: quotaType}
	cached.Total, _ = strconv.ParseUint(result[fieldQuotaTotal], 10, 64)
	cached.Used, _ = strconv.ParseUint(result[fieldQuotaUsed], 10, 64)
	if v, ok := result[fieldQuotaUpdatedAt]; ok {
		unix, _ := strconv.ParseInt(v, 10, 64)
		cached.UpdatedAt = time.Unix(unix, 0).UTC()
	}
	return cached, nil
}

// Set stores a quota read model in the cache
func (c *RedisQuotaCache) Set(ctx context.Context, q *CachedQuota) error {
	key := c.key(q.ICCID, q.QuotaType)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		fieldQuotaTotal:     q.Total,
		fieldQuotaUsed:      q.Used,
		fieldQuotaUpdatedAt: q.UpdatedAt.Unix(),
	})
	pipe.Expire(ctx, key, c.ttlWithJitter())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set quota in cache: %w", err)
	}
	return nil
}

// Invalidate removes a quota from the cache
func (c *RedisQuotaCache) Invalidate(ctx context.Context, iccid, quotaType string) error {
	if err := c.client.Del(ctx, c.key(iccid, quotaType)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate quota cache: %w", err)
	}
	c.logger.Debugw("quota cache invalidated", "iccid", iccid, "quota_type", quotaType)
	return nil
}

// SetNullMarker stores a short-lived not-found marker for the quota
func (c *RedisQuotaCache) SetNullMarker(ctx context.Context, iccid, quotaType string) error {
	key := c.key(iccid, quotaType)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fieldNullMarker, "1")
	pipe.Expire(ctx, key, c.nullTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set quota null marker: %w", err)
	}
	return nil
}

func (c *RedisQuotaCache) ttlWithJitter() time.Duration {
	if c.jitter <= 0 {
		return c.ttl
	}
	return c.ttl + time.Duration(rand.Int64N(int64(c.jitter)))
}
