package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("CHECKIN_BROADCAST_SECONDS", "")
	t.Setenv("SESSION_AUTOCLOSE_HOURS", "")

	cfg := Load()
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want localhost:6379", cfg.RedisAddr)
	}
	if cfg.BroadcastInterval != 30*time.Second {
		t.Errorf("BroadcastInterval = %v, want 30s", cfg.BroadcastInterval)
	}
	if cfg.AutocloseAfter != 12*time.Hour {
		t.Errorf("AutocloseAfter = %v, want 12h", cfg.AutocloseAfter)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_ADDR", "redis://cache.internal:6380")
	t.Setenv("CHECKIN_BROADCAST_SECONDS", "10")
	t.Setenv("SESSION_AUTOCLOSE_HOURS", "6")

	cfg := Load()
	if cfg.Env != "production" {
		t.Errorf("Env = %q", cfg.Env)
	}
	if cfg.RedisAddr != "cache.internal:6380" {
		t.Errorf("RedisAddr = %q, want cache.internal:6380", cfg.RedisAddr)
	}
	if cfg.BroadcastInterval != 10*time.Second {
		t.Errorf("BroadcastInterval = %v, want 10s", cfg.BroadcastInterval)
	}
	if cfg.AutocloseAfter != 6*time.Hour {
		t.Errorf("AutocloseAfter = %v, want 6h", cfg.AutocloseAfter)
	}
}

func TestLoad_RedisURLFallback(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URL", "redis://queue.internal")

	cfg := Load()
	if cfg.RedisAddr != "queue.internal:6379" {
		t.Errorf("RedisAddr = %q, want queue.internal:6379", cfg.RedisAddr)
	}
}

func TestParseRedisAddr(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"localhost:6379", "localhost:6379"},
		{"redis://localhost:6379", "localhost:6379"},
		{"rediss://secure.host:6380", "secure.host:6380"},
		{"redis://host/", "host:6379"},
		{"barehost", "barehost:6379"},
	}
	for _, c := range cases {
		if got := parseRedisAddr(c.in); got != c.want {
			t.Errorf("parseRedisAddr(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
