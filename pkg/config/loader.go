package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/armorclaw/errwatch/pkg/logger"
)

// Load loads configuration from a file path. An empty path searches
// ConfigPaths and falls back to defaults when none exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, p := range ConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		logger.Debug("no configuration file found, using defaults",
			"checked", strings.Join(ConfigPaths(), ", "))
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDie loads configuration or exits on error
func LoadOrDie(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func envBool(v string) bool {
	return v == "true" || v == "1"
}

// applyEnvOverrides applies ERRWATCH_* environment variables
func applyEnvOverrides(cfg *Config) error {
	// Aggregator overrides
	if v := os.Getenv("ERRWATCH_DEBOUNCE_WINDOW"); v != "" {
		cfg.Aggregator.DebounceWindow = v
	}
	if v := os.Getenv("ERRWATCH_EXPIRY_INTERVAL"); v != "" {
		cfg.Aggregator.ExpiryInterval = v
	}
	if v := os.Getenv("ERRWATCH_RETENTION"); v != "" {
		cfg.Aggregator.Retention = v
	}

	// Server overrides
	if v := os.Getenv("ERRWATCH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ERRWATCH_INGEST_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ERRWATCH_INGEST_RATE: %w", err)
		}
		cfg.Server.IngestRate = rate
	}
	if v := os.Getenv("ERRWATCH_INGEST_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ERRWATCH_INGEST_BURST: %w", err)
		}
		cfg.Server.IngestBurst = burst
	}

	// Event bus overrides
	if v := os.Getenv("ERRWATCH_EVENTBUS_BUFFER_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ERRWATCH_EVENTBUS_BUFFER_SIZE: %w", err)
		}
		cfg.EventBus.BufferSize = size
	}
	if v := os.Getenv("ERRWATCH_EVENTBUS_MAX_SUBSCRIBERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ERRWATCH_EVENTBUS_MAX_SUBSCRIBERS: %w", err)
		}
		cfg.EventBus.MaxSubscribers = n
	}
	if v := os.Getenv("ERRWATCH_EVENTBUS_INACTIVITY_TIMEOUT"); v != "" {
		cfg.EventBus.InactivityTimeout = v
	}

	// Notification overrides
	if v := os.Getenv("ERRWATCH_NOTIFICATIONS_ENABLED"); v != "" {
		cfg.Notifications.Enabled = envBool(v)
	}
	if v := os.Getenv("ERRWATCH_SENTRY_DSN"); v != "" {
		cfg.Notifications.SentryDSN = v
	}
	if v := os.Getenv("ERRWATCH_ENVIRONMENT"); v != "" {
		cfg.Notifications.Environment = v
	}

	// Discovery overrides
	if v := os.Getenv("ERRWATCH_DISCOVERY_ENABLED"); v != "" {
		cfg.Discovery.Enabled = envBool(v)
	}
	if v := os.Getenv("ERRWATCH_INSTANCE_NAME"); v != "" {
		cfg.Discovery.InstanceName = v
	}

	// Logging overrides
	if v := os.Getenv("ERRWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ERRWATCH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ERRWATCH_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	if v := os.Getenv("ERRWATCH_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	return nil
}

// Save saves the configuration to a file
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Forward slashes keep Windows paths from being read as TOML escapes
	cfgCopy := *cfg
	if cfgCopy.Logging.File != "" {
		cfgCopy.Logging.File = filepath.ToSlash(cfgCopy.Logging.File)
	}

	data, err := toml.Marshal(&cfgCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	// The DSN is a credential
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateExampleConfig generates an example configuration file
func GenerateExampleConfig(path string) error {
	cfg := DefaultConfig()

	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Notifications.Environment = "development"
	cfg.Discovery.Enabled = true
	cfg.Discovery.InstanceName = "errwatch"

	return Save(cfg, path)
}
