// Package cache contains the redis read-through caches in front of the
// SIM store. Caches are invalidated on writes, never updated in place;
// TTLs carry jitter to avoid stampedes and misses are negative-cached with
// short-lived null markers.
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

// CachedSim is the cached read model of a SIM.
type CachedSim struct {
	ICCID        string
	IMSI         string
	MSISDN       string
	Status       string
	IPAddress    string
	Operator     string
	ActivatedAt  *time.Time
	Label        string
	LastSyncedAt time.Time
	NotFound     bool // null marker: SIM confirmed absent in DB
}

// SimCache defines the caching interface for SIM reads
type SimCache interface {
	Get(ctx context.Context, iccid string) (*CachedSim, error)
	Set(ctx context.Context, s *CachedSim) error
	Invalidate(ctx context.Context, iccid string) error
	// SetNullMarker caches a short-lived marker for an ICCID confirmed
	// absent, preventing repeated DB lookups (cache penetration protection).
	SetNullMarker(ctx context.Context, iccid string) error
}

const (
	simKeyPrefix = "sim:info:"

	fieldICCID        = "iccid"
	fieldIMSI         = "imsi"
	fieldMSISDN       = "msisdn"
	fieldStatus       = "status"
	fieldIPAddress    = "ip_address"
	fieldOperator     = "operator"
	fieldActivatedAt  = "activated_at"
	fieldLabel        = "label"
	fieldLastSyncedAt = "last_synced_at"
	fieldNullMarker   = "_null"
)

// RedisSimCache implements SimCache using Redis hashes
type RedisSimCache struct {
	client  *redis.Client
	ttl     time.Duration
	jitter  time.Duration
	nullTTL time.Duration
	logger  logger.Interface
}

// NewRedisSimCache creates a new Redis-based SIM cache
func NewRedisSimCache(client *redis.Client, cfg config.CacheConfig, log logger.Interface) *RedisSimCache {
	return &RedisSimCache{
		client:  client,
		ttl:     cfg.TTL(),
		jitter:  cfg.Jitter(),
		nullTTL: cfg.NullTTL(),
		logger:  log,
	}
}

func (c *RedisSimCache) key(iccid string) string {
	return simKeyPrefix + iccid
}

// Get retrieves a cached SIM. A nil result with nil error is a cache miss.
func (c *RedisSimCache) Get(ctx context.Context, iccid string) (*CachedSim, error) {
	result, err := c.client.HGetAll(ctx, c.key(iccid)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sim from cache: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	if result[fieldNullMarker] == "1" {
		return &CachedSim{ICCID: iccid, NotFound: true}, nil
	}

	cached := &CachedSim{
		ICCID:     result[fieldICCID],
		IMSI:      result[fieldIMSI],
		MSISDN:    result[fieldMSISDN],
		Status:    result[fieldStatus],
		IPAddress: result[fieldIPAddress],
		Operator:  result[fieldOperator],
		Label:     result[fieldLabel],
	}
	if v, ok := result[fieldActivatedAt]; ok && v != "" {
		unix, _ := strconv.ParseInt(v, 10, 64)
		activated := time.Unix(unix, 0).UTC()
		cached.ActivatedAt = &activated
	}
	if v, ok := result[fieldLastSyncedAt]; ok {
		unix, _ := strconv.ParseInt(v, 10, 64)
		cached.LastSyncedAt = time.Unix(unix, 0).UTC()
	}
	return cached, nil
}

// Set stores a SIM read model in the cache
func (c *RedisSimCache) Set(ctx context.Context, s *CachedSim) error {
	fields := map[string]interface{}{
		fieldICCID:        s.ICCID,
		fieldIMSI:         s.IMSI,
		fieldMSISDN:       s.MSISDN,
		fieldStatus:       s.Status,
		fieldIPAddress:    s.IPAddress,
		fieldOperator:     s.Operator,
		fieldLabel:        s.Label,
		fieldLastSyncedAt: s.LastSyncedAt.Unix(),
	}
	if s.ActivatedAt != nil {
		fields[fieldActivatedAt] = s.ActivatedAt.Unix()
	}

	key := c.key(s.ICCID)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key) // drop a stale null marker if present
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, c.ttlWithJitter())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set sim in cache: %w", err)
	}
	return nil
}

// Invalidate removes a SIM from the cache. Called after any write that
// changed the row; the next read repopulates from the DB.
func (c *RedisSimCache) Invalidate(ctx context.Context, iccid string) error {
	if err := c.client.Del(ctx, c.key(iccid)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate sim cache: %w", err)
	}
	c.logger.Debugw("sim cache invalidated", "iccid", iccid)
	return nil
}

// SetNullMarker stores a short-lived not-found marker for the ICCID
func (c *RedisSimCache) SetNullMarker(ctx context.Context, iccid string) error {
	key := c.key(iccid)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fieldNullMarker, "1")
	pipe.Expire(ctx, key, c.nullTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set sim null marker: %w", err)
	}
	return nil
}

// ttlWithJitter randomizes the TTL so hot keys do not expire together.
func (c *RedisSimCache) ttlWithJitter() time.Duration {
	if c.jitter <= 0 {
		return c.ttl
	}
	return c.ttl + time.Duration(rand.Int64N(int64(c.jitter)))
}
