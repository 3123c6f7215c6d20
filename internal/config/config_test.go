package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.RateLimit.Auth.Limit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Auth.Window)
	assert.Equal(t, time.Hour, cfg.RateLimit.Upload.Window)
	assert.False(t, cfg.CSRF.SecureCookie)
}

func TestLoad_TierOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("RATE_LIMIT_AUTH_MAX", "3")
	t.Setenv("RATE_LIMIT_AUTH_WINDOW", "90s")
	t.Setenv("RATE_LIMIT_GENERAL_WINDOW", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TierConfig{Limit: 3, Window: 90 * time.Second}, cfg.RateLimit.Auth)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.General.Window)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("RATE_LIMIT_PAYMENT_MAX", "0")
	_, err := Load()
	assert.ErrorContains(t, err, "RATE_LIMIT_PAYMENT")
}

func TestValidate_Production(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "AUTH_JWT_SECRET")

	t.Setenv("AUTH_JWT_SECRET", "prod-jwt")
	_, err = Load()
	assert.ErrorContains(t, err, "CSRF_SECRET")

	t.Setenv("CSRF_SECRET", "prod-csrf")
	_, err = Load()
	assert.ErrorContains(t, err, "PAYMENTS_WEBHOOK_SECRET")

	t.Setenv("PAYMENTS_WEBHOOK_SECRET", "whsec")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.CSRF.SecureCookie)
}

func TestValidate_CacheBackend(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CACHE_BACKEND", "Memcached")
	_, err := Load()
	assert.ErrorContains(t, err, "CACHE_BACKEND")
}
