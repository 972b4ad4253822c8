// Package config loads process-level configuration from the environment.
//
// Runtime-tunable values (broadcast interval, membership policy) live in the
// app_settings collection instead — see internal/settings. Environment
// variables cover only what must be known before the database is up.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	// Redis (Asynq worker)
	RedisAddr string

	// Realtime check-in
	BroadcastInterval time.Duration
	AutocloseAfter    time.Duration
}

// Load reads a .env file if present and builds the Config from env vars.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:               getEnv("ENV", "development"),
		RedisAddr:         parseRedisAddr(getEnv("REDIS_ADDR", getEnv("REDIS_URL", "localhost:6379"))),
		BroadcastInterval: time.Duration(getEnvAsInt("CHECKIN_BROADCAST_SECONDS", 30)) * time.Second,
		AutocloseAfter:    time.Duration(getEnvAsInt("SESSION_AUTOCLOSE_HOURS", 12)) * time.Hour,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// parseRedisAddr normalises redis://host:port, host:port, or bare host into
// the host:port form Asynq expects.
func parseRedisAddr(raw string) string {
	addr := strings.TrimPrefix(raw, "redis://")
	addr = strings.TrimPrefix(addr, "rediss://")
	addr = strings.TrimSuffix(addr, "/")
	if !strings.Contains(addr, ":") {
		addr += ":6379"
	}
	return addr
}
