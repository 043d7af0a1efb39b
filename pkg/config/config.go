// Package config provides configuration management for errwatch.
// Supports TOML configuration files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingValue  = errors.New("missing required configuration value")
)

// Config holds all errwatch configuration
type Config struct {
	Aggregator    AggregatorConfig    `toml:"aggregator"`
	Server        ServerConfig        `toml:"server"`
	EventBus      EventBusConfig      `toml:"eventbus"`
	Notifications NotificationsConfig `toml:"notifications"`
	Discovery     DiscoveryConfig     `toml:"discovery"`
	Logging       LoggingConfig       `toml:"logging"`
}

// AggregatorConfig controls debounce and expiry timing
type AggregatorConfig struct {
	// DebounceWindow coalesces notification bursts (e.g. "1s")
	DebounceWindow string `toml:"debounce_window" env:"ERRWATCH_DEBOUNCE_WINDOW"`

	// ExpiryInterval is how often stale errors are swept (e.g. "1h")
	ExpiryInterval string `toml:"expiry_interval" env:"ERRWATCH_EXPIRY_INTERVAL"`

	// Retention is how long an error stays before it is swept (e.g. "1h")
	Retention string `toml:"retention" env:"ERRWATCH_RETENTION"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	// Addr is the listen address for the API, WebSocket and metrics
	Addr string `toml:"addr" env:"ERRWATCH_ADDR"`

	// IngestRate is the sustained number of reports accepted per second
	IngestRate float64 `toml:"ingest_rate" env:"ERRWATCH_INGEST_RATE"`

	// IngestBurst is the number of reports accepted in a burst
	IngestBurst int `toml:"ingest_burst" env:"ERRWATCH_INGEST_BURST"`

	// AllowedOrigins lists browser origins allowed to call the API
	AllowedOrigins []string `toml:"allowed_origins"`
}

// EventBusConfig holds presentation surface delivery settings
type EventBusConfig struct {
	// BufferSize is the per-subscriber event buffer
	BufferSize int `toml:"buffer_size" env:"ERRWATCH_EVENTBUS_BUFFER_SIZE"`

	// MaxSubscribers is the maximum concurrent subscribers
	MaxSubscribers int `toml:"max_subscribers" env:"ERRWATCH_EVENTBUS_MAX_SUBSCRIBERS"`

	// InactivityTimeout drops idle subscribers (e.g. "30m")
	InactivityTimeout string `toml:"inactivity_timeout" env:"ERRWATCH_EVENTBUS_INACTIVITY_TIMEOUT"`
}

// NotificationsConfig holds user alert settings
type NotificationsConfig struct {
	Enabled bool `toml:"enabled" env:"ERRWATCH_NOTIFICATIONS_ENABLED"`

	// SentryDSN forwards alerts to Sentry when set
	SentryDSN string `toml:"sentry_dsn" env:"ERRWATCH_SENTRY_DSN"`

	// Environment is reported to Sentry
	Environment string `toml:"environment" env:"ERRWATCH_ENVIRONMENT"`
}

// DiscoveryConfig holds mDNS settings
type DiscoveryConfig struct {
	Enabled bool `toml:"enabled" env:"ERRWATCH_DISCOVERY_ENABLED"`

	// InstanceName defaults to the hostname
	InstanceName string `toml:"instance_name" env:"ERRWATCH_INSTANCE_NAME"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" env:"ERRWATCH_LOG_LEVEL"`
	Format string `toml:"format" env:"ERRWATCH_LOG_FORMAT"`
	Output string `toml:"output" env:"ERRWATCH_LOG_OUTPUT"`
	File   string `toml:"file" env:"ERRWATCH_LOG_FILE"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Aggregator: AggregatorConfig{
			DebounceWindow: "1s",
			ExpiryInterval: "1h",
			Retention:      "1h",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:7391",
			IngestRate:     20,
			IngestBurst:    40,
			AllowedOrigins: []string{},
		},
		EventBus: EventBusConfig{
			BufferSize:        100,
			MaxSubscribers:    100,
			InactivityTimeout: "30m",
		},
		Notifications: NotificationsConfig{
			Enabled:     true,
			Environment: "production",
		},
		Discovery: DiscoveryConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// ConfigPaths returns the list of default configuration file paths to check
func ConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()
	return []string{
		filepath.Join(homeDir, ".errwatch", "config.toml"),
		filepath.Join("/etc", "errwatch", "config.toml"),
		"./config.toml",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	durations := []struct {
		name  string
		value string
	}{
		{"aggregator.debounce_window", c.Aggregator.DebounceWindow},
		{"aggregator.expiry_interval", c.Aggregator.ExpiryInterval},
		{"aggregator.retention", c.Aggregator.Retention},
		{"eventbus.inactivity_timeout", c.EventBus.InactivityTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingValue, d.name)
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, d.name, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, d.name)
		}
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr", ErrMissingValue)
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("%w: server.addr %q: %w", ErrInvalidConfig, c.Server.Addr, err)
	}
	if c.Server.IngestRate <= 0 {
		return fmt.Errorf("%w: server.ingest_rate must be positive", ErrInvalidConfig)
	}
	if c.Server.IngestBurst < 1 {
		return fmt.Errorf("%w: server.ingest_burst must be at least 1", ErrInvalidConfig)
	}

	if c.EventBus.BufferSize < 1 {
		return fmt.Errorf("%w: eventbus.buffer_size must be at least 1", ErrInvalidConfig)
	}
	if c.EventBus.MaxSubscribers < 1 {
		return fmt.Errorf("%w: eventbus.max_subscribers must be at least 1", ErrInvalidConfig)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrInvalidConfig)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: logging.format must be one of: json, text", ErrInvalidConfig)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("%w: logging.output must be one of: stdout, stderr, file", ErrInvalidConfig)
	}
	if c.Logging.Output == "file" && c.Logging.File == "" {
		return fmt.Errorf("%w: logging.file is required when logging.output is 'file'", ErrInvalidConfig)
	}

	return nil
}

// parseDuration returns the parsed value or def when s is empty or invalid
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// DebounceWindow returns the notification coalescing window
func (c *Config) DebounceWindow() time.Duration {
	return parseDuration(c.Aggregator.DebounceWindow, time.Second)
}

// ExpiryInterval returns the sweep interval
func (c *Config) ExpiryInterval() time.Duration {
	return parseDuration(c.Aggregator.ExpiryInterval, time.Hour)
}

// Retention returns how long errors are kept
func (c *Config) Retention() time.Duration {
	return parseDuration(c.Aggregator.Retention, time.Hour)
}

// InactivityTimeout returns the subscriber idle limit
func (c *Config) InactivityTimeout() time.Duration {
	return parseDuration(c.EventBus.InactivityTimeout, 30*time.Minute)
}

// LogOutput returns the logger output target: stdout, stderr or a file path
func (c *Config) LogOutput() string {
	if c.Logging.Output == "file" {
		return c.Logging.File
	}
	return c.Logging.Output
}
