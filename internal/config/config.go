// Package config reads process configuration from the environment. A .env
// file is loaded when present so local runs match deployed ones.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string

	// DatabaseURL empty means the in-memory ledger (demo mode).
	DatabaseURL string

	// RedisAddr empty means in-process session storage.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TenantID scopes demo-mode seeding; real deployments carry the tenant in
	// the session token.
	TenantID string

	SessionSecret string

	CartTTL        time.Duration
	AdvisoryWindow time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		TenantID:       getEnv("TENANT_ID", "apotek-demo"),
		SessionSecret:  getEnv("SESSION_SECRET", ""),
		CartTTL:        time.Duration(getEnvInt("CART_TTL_HOURS", 4)) * time.Hour,
		AdvisoryWindow: time.Duration(getEnvInt("ADVISORY_WINDOW_SECONDS", 30)) * time.Second,
	}
}

func getEnv(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
