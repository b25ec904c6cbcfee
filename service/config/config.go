package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string `env:"SERVER_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9091"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// Database configuration
	DatabaseURL string `env:"DATABASE_URL"`

	// NATS configuration
	NATSURL string `env:"NATS_URL" envDefault:"nats://localhost:4222"`

	// Temporal configuration
	TemporalHost      string `env:"TEMPORAL_HOST" envDefault:"localhost:7233"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE" envDefault:"default"`
	TemporalTaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"quorum-account-sync"`

	// Sync configuration
	SyncInterval  time.Duration `env:"SYNC_INTERVAL" envDefault:"1m"`
	SourceRetries uint64        `env:"SOURCE_RETRIES" envDefault:"2"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"15s"`

	// Display configuration
	PageSize             int    `env:"PAGE_SIZE" envDefault:"30"`
	DefaultTokenDecimals int    `env:"DEFAULT_TOKEN_DECIMALS" envDefault:"18"`
	MaxFractionDigits    int    `env:"MAX_FRACTION_DIGITS" envDefault:"6"`
	DisplayTimezone      string `env:"DISPLAY_TIMEZONE" envDefault:"Local"`
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_HOST is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_NAMESPACE is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_TASK_QUEUE is required"))
	}

	if c.SyncInterval < time.Second {
		errs = append(errs, fmt.Errorf("SYNC_INTERVAL must be at least 1 second, got %v", c.SyncInterval))
	}

	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL cannot be negative"))
	}

	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize))
	}

	if c.DefaultTokenDecimals < 0 || c.DefaultTokenDecimals > 77 {
		errs = append(errs, fmt.Errorf("DEFAULT_TOKEN_DECIMALS must be between 0 and 77, got %d", c.DefaultTokenDecimals))
	}

	if c.MaxFractionDigits < 0 {
		errs = append(errs, fmt.Errorf("MAX_FRACTION_DIGITS cannot be negative"))
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text", "tint":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of json, text, tint, got %q", c.LogFormat))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// Location resolves DisplayTimezone. Empty and "Local" select the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" || c.DisplayTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("DISPLAY_TIMEZONE: %w", err)
	}
	return loc, nil
}
