package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, CacheBackendRedis, cfg.CacheBackend)
	assert.Equal(t, int64(500), cfg.LocalCacheSize)
	assert.Equal(t, 5*time.Minute, cfg.LocalCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.WarmupTTL)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, "357", cfg.DefaultCountryCode)
	assert.Equal(t, "X-Signature", cfg.SignatureHeader)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "badger")
	t.Setenv("COST_ALERT_THRESHOLD", "1.25")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CacheBackendBadger, cfg.CacheBackend)
	assert.InDelta(t, 1.25, cfg.CostThreshold, 1e-9)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateLocalCacheSize(t *testing.T) {
	cfg := &Config{CacheBackend: CacheBackendNone, LocalCacheSize: 0, SearchRPS: 1}
	assert.Error(t, cfg.Validate())

	cfg.LocalCacheSize = 10
	assert.NoError(t, cfg.Validate())
}
