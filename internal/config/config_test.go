package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "ALLOWED_ORIGINS", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "STATUS_API_BASE_URL", "STATUS_API_TIMEOUT", "JWT_SECRET"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.Server.Port != ":3001" {
		t.Errorf("expected default port :3001, got %s", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("expected wildcard origins, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Presence.IdleTimeout != 5*time.Minute {
		t.Errorf("expected 5m idle timeout, got %v", cfg.Presence.IdleTimeout)
	}
	if cfg.StatusAPI.BaseURL != "https://me.eadpayroll.com/api" {
		t.Errorf("unexpected status API base URL %s", cfg.StatusAPI.BaseURL)
	}
	if cfg.StatusAPI.Timeout != 10*time.Second {
		t.Errorf("expected 10s status API timeout, got %v", cfg.StatusAPI.Timeout)
	}
	if len(cfg.JWT.Secret) != 0 {
		t.Errorf("expected empty JWT secret, got %q", cfg.JWT.Secret)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", ":8080")
	t.Setenv("IDLE_TIMEOUT", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("JWT_SECRET", "hush")

	cfg := Load()

	if cfg.Server.Port != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Server.Port)
	}
	if cfg.Presence.IdleTimeout != 90*time.Second {
		t.Errorf("expected 90s idle timeout, got %v", cfg.Presence.IdleTimeout)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Server.AllowedOrigins) != len(want) {
		t.Fatalf("expected %d origins, got %v", len(want), cfg.Server.AllowedOrigins)
	}
	for i, origin := range want {
		if cfg.Server.AllowedOrigins[i] != origin {
			t.Errorf("origin %d: expected %s, got %s", i, origin, cfg.Server.AllowedOrigins[i])
		}
	}
	if string(cfg.JWT.Secret) != "hush" {
		t.Errorf("expected JWT secret to be set, got %q", cfg.JWT.Secret)
	}
}
