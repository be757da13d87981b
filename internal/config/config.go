// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// BrowserMode controls the browser-facing GET branch.
type BrowserMode string

const (
	// BrowserDisabled turns the browser branch off; browsers get the
	// same attachment downloads as WebDAV clients.
	BrowserDisabled BrowserMode = "disabled"

	// BrowserEnabled serves static files (with index.html rewriting) to
	// browsers but returns 404 for directories without an index.
	BrowserEnabled BrowserMode = "enabled"

	// BrowserList additionally renders HTML directory listings.
	BrowserList BrowserMode = "list"
)

// Config holds all server configuration.
type Config struct {
	// Server
	Port        int
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL    string
	TableName      string
	DBMaxOpenConns int

	// WebDAV behavior
	Browser         BrowserMode
	ReadStreamChunk int

	// TLS (optional — if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string

	// Auth (optional — if Username is empty the gate is disabled)
	Username       string
	Password       string
	PasswordBcrypt string
	JWTSecret      string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            envInt("PORT", 3000),
		MetricsAddr:     envOr("METRICS_ADDR", ":9090"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		DatabaseURL:     envOr("DATABASE_URL", ""),
		TableName:       envOr("TABLE_NAME", "filesystem"),
		DBMaxOpenConns:  envInt("DB_MAX_OPEN_CONNS", 25),
		Browser:         BrowserMode(envOr("BROWSER", string(BrowserDisabled))),
		ReadStreamChunk: envInt("READ_STREAM_CHUNK", 1024*1024),
		TLSCertFile:     envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:      envOr("TLS_KEY_FILE", ""),
		Username:        envOr("USERNAME", ""),
		Password:        envOr("PASSWORD", ""),
		PasswordBcrypt:  envOr("PASSWORD_BCRYPT", ""),
		JWTSecret:       envOr("JWT_SECRET", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.Browser {
	case BrowserDisabled, BrowserEnabled, BrowserList:
	default:
		return nil, fmt.Errorf("BROWSER must be one of disabled, enabled, list (got %q)", cfg.Browser)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT out of range: %d", cfg.Port)
	}
	if cfg.ReadStreamChunk <= 0 {
		return nil, fmt.Errorf("READ_STREAM_CHUNK must be positive")
	}
	if cfg.Username != "" && cfg.Password == "" && cfg.PasswordBcrypt == "" {
		return nil, fmt.Errorf("USERNAME set without PASSWORD or PASSWORD_BCRYPT")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
