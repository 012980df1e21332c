package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "DATABASE_URL", "REDIS_ADDR", "REDIS_DB",
		"TENANT_ID", "SESSION_SECRET", "CART_TTL_HOURS", "ADVISORY_WINDOW_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "apotek-demo", cfg.TenantID)
	assert.Equal(t, 4*time.Hour, cfg.CartTTL)
	assert.Equal(t, 30*time.Second, cfg.AdvisoryWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CART_TTL_HOURS", "12")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 12*time.Hour, cfg.CartTTL)
}

func TestLoadIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, 0, cfg.RedisDB)
}
