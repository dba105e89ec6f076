package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func syncDefaults() SyncConfig { return SyncConfig{} }

func TestSyncConfigDurations(t *testing.T) {
	// Accessors must be callable on a returned value, not just a variable.
	assert.Equal(t, 15*time.Minute, syncDefaults().InventoryInterval())
	assert.Equal(t, 60*time.Minute, syncDefaults().UsageInterval())
	assert.Equal(t, 30*time.Minute, syncDefaults().QuotaInterval())
	assert.Equal(t, 10*time.Minute, syncDefaults().JobTimeout())
	assert.Equal(t, 2*time.Hour, syncDefaults().UsageLookback())
	assert.Equal(t, 24*time.Hour, syncDefaults().IdempotencyTTL())

	cfg := SyncConfig{
		InventoryIntervalMin: 5,
		UsageIntervalMin:     30,
		QuotaIntervalMin:     10,
		JobTimeoutMin:        2,
		UsageLookbackHours:   6,
		IdempotencyTTLHours:  48,
	}
	assert.Equal(t, 5*time.Minute, cfg.InventoryInterval())
	assert.Equal(t, 30*time.Minute, cfg.UsageInterval())
	assert.Equal(t, 10*time.Minute, cfg.QuotaInterval())
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout())
	assert.Equal(t, 6*time.Hour, cfg.UsageLookback())
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyTTL())
}

func TestProviderConfigResolvedTokenURL(t *testing.T) {
	p := ProviderConfig{BaseURL: "https://api.example.com/management-api"}
	assert.Equal(t, "https://api.example.com/management-api/oauth/token", p.ResolvedTokenURL())

	p.TokenURL = "https://auth.example.com/token"
	assert.Equal(t, "https://auth.example.com/token", p.ResolvedTokenURL())
}
