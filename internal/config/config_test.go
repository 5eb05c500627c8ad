package config

import (
	"testing"
	"time"
)

func TestLoadRequiresTokenKey(t *testing.T) {
	t.Setenv("VELORA_TOKEN_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when token key is missing")
	}

	t.Setenv("VELORA_TOKEN_KEY", "short")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for a short token key")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VELORA_TOKEN_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("default addr %q", cfg.Addr)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("default ttl %v", cfg.TokenTTL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("default log level %q", cfg.LogLevel)
	}
}

func TestLoadTokenTTLOverride(t *testing.T) {
	t.Setenv("VELORA_TOKEN_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("VELORA_TOKEN_TTL_HOURS", "48")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenTTL != 48*time.Hour {
		t.Fatalf("ttl %v", cfg.TokenTTL)
	}

	t.Setenv("VELORA_TOKEN_TTL_HOURS", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for a bad ttl")
	}
}
