package config

import (
	"fmt"
	"time"
)

// ProviderConfig holds credentials and endpoints for the external SIM
// management API. TokenURL defaults to BaseURL + "/oauth/token" when empty.
type ProviderConfig struct {
	ClientID       string  `mapstructure:"client_id"`
	ClientSecret   string  `mapstructure:"client_secret"`
	BaseURL        string  `mapstructure:"base_url"`
	TokenURL       string  `mapstructure:"token_url"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
	Burst          int     `mapstructure:"burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	PageSize       int     `mapstructure:"page_size"`
}

func (p *ProviderConfig) ResolvedTokenURL() string {
	if p.TokenURL != "" {
		return p.TokenURL
	}
	return p.BaseURL + "/oauth/token"
}

func (p *ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RetryConfig parameterizes the shared backoff policy used for every
// provider call.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

func (r *RetryConfig) BaseDelay() time.Duration {
	if r.BaseDelayMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

func (r *RetryConfig) MaxDelay() time.Duration {
	if r.MaxDelayMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// SyncConfig drives the scheduler cadences. Interval values are minutes to
// keep the yaml surface flat.
type SyncConfig struct {
	InventoryIntervalMin int     `mapstructure:"inventory_interval"`
	UsageIntervalMin     int     `mapstructure:"usage_interval"`
	QuotaIntervalMin     int     `mapstructure:"quota_interval"`
	CleanupCron          string  `mapstructure:"cleanup_cron"`
	ErrorThreshold       float64 `mapstructure:"error_threshold"`
	JobTimeoutMin        int     `mapstructure:"job_timeout_min"`
	MissedSyncsToRetire  int     `mapstructure:"missed_syncs_to_retire"`
	UsageLookbackHours   int     `mapstructure:"usage_lookback_hours"`
	IdempotencyTTLHours  int     `mapstructure:"idempotency_ttl_hours"`
}

// SyncConfig is carried by value through the jobs, so its accessors take
// value receivers.
func (s SyncConfig) InventoryInterval() time.Duration {
	return minutesOr(s.InventoryIntervalMin, 15*time.Minute)
}

func (s SyncConfig) UsageInterval() time.Duration {
	return minutesOr(s.UsageIntervalMin, 60*time.Minute)
}

func (s SyncConfig) QuotaInterval() time.Duration {
	return minutesOr(s.QuotaIntervalMin, 30*time.Minute)
}

func (s SyncConfig) JobTimeout() time.Duration {
	return minutesOr(s.JobTimeoutMin, 10*time.Minute)
}

func (s SyncConfig) UsageLookback() time.Duration {
	if s.UsageLookbackHours <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(s.UsageLookbackHours) * time.Hour
}

func (s SyncConfig) IdempotencyTTL() time.Duration {
	if s.IdempotencyTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.IdempotencyTTLHours) * time.Hour
}

func minutesOr(m int, fallback time.Duration) time.Duration {
	if m <= 0 {
		return fallback
	}
	return time.Duration(m) * time.Minute
}

type CacheConfig struct {
	TTLSeconds     int `mapstructure:"ttl_seconds"`
	JitterSeconds  int `mapstructure:"jitter_seconds"`
	NullTTLSeconds int `mapstructure:"null_ttl_seconds"`
}

func (c *CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c *CacheConfig) Jitter() time.Duration {
	if c.JitterSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.JitterSeconds) * time.Second
}

func (c *CacheConfig) NullTTL() time.Duration {
	if c.NullTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.NullTTLSeconds) * time.Second
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	Debug      bool   `mapstructure:"debug"`
}
