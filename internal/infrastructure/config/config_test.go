package config_test

import (
	"testing"
	"time"

	"github.com/iho/gobank/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.Store != "postgres" {
		t.Fatalf("expected default store postgres, got %s", cfg.Store)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected Redis default to be empty, got %q", cfg.RedisURL)
	}

	if cfg.LockTimeout != 5*time.Second {
		t.Fatalf("expected default lock timeout 5s, got %s", cfg.LockTimeout)
	}

	if cfg.JWTSecret != "" {
		t.Fatalf("expected JWT secret default to be empty, got %q", cfg.JWTSecret)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("JWT_EXPIRATION", "1h")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.Store != "memory" {
		t.Fatalf("expected store override, got %s", cfg.Store)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.LockTimeout != 250*time.Millisecond {
		t.Fatalf("expected lock timeout override, got %s", cfg.LockTimeout)
	}

	if cfg.BcryptCost != 12 {
		t.Fatalf("expected bcrypt cost override, got %d", cfg.BcryptCost)
	}

	if cfg.JWTSecret != "top-secret" || cfg.JWTExpiration != time.Hour {
		t.Fatalf("expected JWT settings to be set, got secret=%s expiration=%s", cfg.JWTSecret, cfg.JWTExpiration)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
