package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("RATE_LIMIT_MAX", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:9090" {
		t.Fatalf("Addr() = %q", cfg.App.Addr())
	}
	if cfg.RateLimit.Max != 10 {
		t.Fatalf("RateLimit.Max = %d, want fallback 10", cfg.RateLimit.Max)
	}
	if cfg.Auth.CodeTTL() != 120*time.Second {
		t.Fatalf("CodeTTL() = %s", cfg.Auth.CodeTTL())
	}
	if cfg.IsProduction() {
		t.Fatalf("development env reported as production")
	}
}

func TestLoadRejectsDevSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for default secret in production")
	}
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for REDIS_DB")
	}
}

func TestDurationFallbacks(t *testing.T) {
	if (AppConfig{}).RequestTimeout() != 0 {
		t.Fatalf("zero timeout should disable the middleware")
	}
	if (RateLimitConfig{}).Window() != time.Minute {
		t.Fatalf("Window() fallback should be one minute")
	}
}
