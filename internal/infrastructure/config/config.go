package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/simflux/simflux/internal/shared/config"
)

type Config struct {
	Provider sharedConfig.ProviderConfig `mapstructure:"provider"`
	Retry    sharedConfig.RetryConfig    `mapstructure:"retry"`
	Sync     sharedConfig.SyncConfig     `mapstructure:"sync"`
	Cache    sharedConfig.CacheConfig    `mapstructure:"cache"`
	Database sharedConfig.DatabaseConfig `mapstructure:"database"`
	Redis    sharedConfig.RedisConfig    `mapstructure:"redis"`
	Logger   sharedConfig.LoggerConfig   `mapstructure:"logger"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// Environment variables use the SIMFLUX_ prefix with underscores for
// nesting, e.g. SIMFLUX_PROVIDER_CLIENT_SECRET.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("SIMFLUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Credentials usually arrive via environment in deployments, so a
		// missing file is fine; any other read error is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Provider.ClientID == "" || config.Provider.ClientSecret == "" {
		return nil, fmt.Errorf("provider.client_id and provider.client_secret are required")
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// Provider defaults
	viper.SetDefault("provider.base_url", "https://api.1nce.com/management-api")
	viper.SetDefault("provider.token_url", "")
	viper.SetDefault("provider.requests_per_sec", 10)
	viper.SetDefault("provider.burst", 20)
	viper.SetDefault("provider.timeout_seconds", 30)
	viper.SetDefault("provider.page_size", 100)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", 5)
	viper.SetDefault("retry.base_delay_ms", 500)
	viper.SetDefault("retry.max_delay_ms", 30000)

	// Sync defaults
	viper.SetDefault("sync.inventory_interval", 15)
	viper.SetDefault("sync.usage_interval", 60)
	viper.SetDefault("sync.quota_interval", 30)
	viper.SetDefault("sync.cleanup_cron", "0 3 * * *")
	viper.SetDefault("sync.error_threshold", 0.1)
	viper.SetDefault("sync.job_timeout_min", 10)
	viper.SetDefault("sync.missed_syncs_to_retire", 3)
	viper.SetDefault("sync.usage_lookback_hours", 2)
	viper.SetDefault("sync.idempotency_ttl_hours", 24)

	// Cache defaults
	viper.SetDefault("cache.ttl_seconds", 60)
	viper.SetDefault("cache.jitter_seconds", 20)
	viper.SetDefault("cache.null_ttl_seconds", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "simflux_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")
}
