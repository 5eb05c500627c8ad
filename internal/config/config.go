// Package config loads process configuration from the environment. Values are
// threaded explicitly into constructors; nothing reads the environment after
// startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the API server needs.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string
	// DatabaseURL selects the postgres store when set; empty runs the
	// in-memory store.
	DatabaseURL string
	// TokenKey signs and verifies identity tokens. Required.
	TokenKey []byte
	// TokenTTL bounds token validity.
	TokenTTL time.Duration
	// LogLevel configures the process logger.
	LogLevel string

	// ImageStoreURL is the upload endpoint of the external image store.
	// Empty disables remote uploads and photos are stored by reference only.
	ImageStoreURL string
	// ImageStoreKey authenticates against the image store.
	ImageStoreKey string
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Addr:          envOr("VELORA_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("VELORA_DATABASE_URL"),
		TokenTTL:      24 * time.Hour,
		LogLevel:      envOr("VELORA_LOG_LEVEL", "info"),
		ImageStoreURL: os.Getenv("VELORA_IMAGE_STORE_URL"),
		ImageStoreKey: os.Getenv("VELORA_IMAGE_STORE_KEY"),
	}

	key := os.Getenv("VELORA_TOKEN_KEY")
	if key == "" {
		return Config{}, fmt.Errorf("VELORA_TOKEN_KEY is required")
	}
	if len(key) < 32 {
		return Config{}, fmt.Errorf("VELORA_TOKEN_KEY must be at least 32 bytes, got %d", len(key))
	}
	cfg.TokenKey = []byte(key)

	if raw := os.Getenv("VELORA_TOKEN_TTL_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("VELORA_TOKEN_TTL_HOURS must be a positive integer, got %q", raw)
		}
		cfg.TokenTTL = time.Duration(hours) * time.Hour
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
