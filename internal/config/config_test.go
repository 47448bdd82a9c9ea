package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30d":  30 * 24 * time.Hour,
		"30D":  30 * 24 * time.Hour,
		"5M":   5 * time.Minute,
		"7d":   7 * 24 * time.Hour,
		"720h": 720 * time.Hour,
		"90s":  90 * time.Second,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseDuration(%q) = %s, want %s", in, got, want)
		}
	}

	for _, bad := range []string{"", "d", "xd", "-1d", "10w"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("PORT", "")
	t.Setenv("RATE_LIMIT_MAX", "")
	t.Setenv("RATE_LIMIT_AUTH_MAX", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")
	t.Setenv("SESSION_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("expected port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.TokenTTL != 30*24*time.Hour {
		t.Fatalf("expected 30 day token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.RedisURL != "redis://localhost:6379/1" {
		t.Fatalf("unexpected redis url %s", cfg.RedisURL)
	}
	if cfg.SessionSecret != defaultSessionSecret {
		t.Fatalf("expected development session secret fallback")
	}
	if cfg.RateLimit.Max != 100 || cfg.RateLimit.AuthMax != 20 || cfg.RateLimit.Window != 15*time.Minute {
		t.Fatalf("unexpected rate limits %+v", cfg.RateLimit)
	}
}

func TestLoadProductionRequirements(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing SESSION_SECRET to fail in production")
	}

	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("JWT_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatalf("expected short JWT_SECRET to fail in production")
	}

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SMTP_HOST", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing SMTP_HOST to fail in production")
	}

	t.Setenv("SMTP_HOST", "smtp.credora.tech")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production config")
	}
}

func TestRedisURLEscapesPassword(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_PASSWORD", "p@ss/w:rd")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	u, err := url.Parse(cfg.RedisURL)
	if err != nil {
		t.Fatalf("parse %s: %v", cfg.RedisURL, err)
	}
	pw, _ := u.User.Password()
	if pw != "p@ss/w:rd" || u.Host != "cache.internal:6380" || u.Path != "/2" {
		t.Fatalf("unexpected redis url %s", cfg.RedisURL)
	}
	if _, err := redis.ParseURL(cfg.RedisURL); err != nil {
		t.Fatalf("redis rejected url %s: %v", cfg.RedisURL, err)
	}
}

func TestLoadMissingJWTSecret(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing JWT_SECRET to fail")
	}
}

func TestAllowedOriginsDeduplicates(t *testing.T) {
	cfg := Config{FrontendURL: "http://localhost:3000", CORSOrigins: []string{"https://app.credora.tech", "http://localhost:3001"}}
	got := cfg.AllowedOrigins()
	want := []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:5500", "https://app.credora.tech"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
