package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment  string                       `toml:"environment"` // "development" or "production"
	Server       ServerConfig                 `toml:"server"`
	Storage      StorageConfig                `toml:"storage"`
	Logging      LoggingConfig                `toml:"logging"`
	Browser      BrowserConfig                `toml:"browser"`
	Login        LoginConfig                  `toml:"login"`
	RateLimits   map[string]RateLimitConfig   `toml:"rate_limits"`  // keyed "integration" or "integration.operation"
	Integrations map[string]IntegrationConfig `toml:"integrations"` // keyed by integration name
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=0,max=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                                 // "stdout", "file"
}

// BrowserConfig controls the interactive browser used for session logins.
type BrowserConfig struct {
	Headless  bool   `toml:"headless"`   // Challenge flows need a visible window; default false
	UserAgent string `toml:"user_agent"` // Browser user agent string
}

// LoginConfig controls the session login flow timing.
type LoginConfig struct {
	PollInterval    time.Duration `toml:"poll_interval"`     // How often to check for captured cookies (default: 1s)
	CompleteTimeout time.Duration `toml:"complete_timeout"`  // Max wait for a human to finish challenges (default: 5m)
	MaxFlowDuration time.Duration `toml:"max_flow_duration"` // Watchdog ceiling before a stuck flow is cleared (default: 10m)
}

// RateLimitConfig expresses a platform quota as calls per window.
type RateLimitConfig struct {
	Calls   int           `toml:"calls" validate:"omitempty,min=1"` // Calls permitted per window
	Window  time.Duration `toml:"window"`                           // Window duration (e.g. "60s")
	MaxWait time.Duration `toml:"max_wait"`                         // Acquire wait ceiling before failing
}

// IntegrationConfig holds the static secrets for one integration. Which
// fields matter depends on the integration's auth strategy; absence is
// surfaced at first use, not at startup.
type IntegrationConfig struct {
	// OAuth strategy
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`

	// API key strategy
	APIKey string `toml:"api_key"`

	// Session-cookie strategy
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	WorkspaceURL string `toml:"workspace_url"` // e.g. Slack workspace or Canvas instance URL
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 9000,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Browser: BrowserConfig{
			Headless:  false,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Login: LoginConfig{
			PollInterval:    time.Second,
			CompleteTimeout: 5 * time.Minute,
			MaxFlowDuration: 10 * time.Minute,
		},
		RateLimits:   map[string]RateLimitConfig{},
		Integrations: map[string]IntegrationConfig{},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CLAVIGER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("CLAVIGER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CLAVIGER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("CLAVIGER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("CLAVIGER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Integration returns the configured secrets for an integration, or an empty
// config when none are set. Callers decide which absent field is fatal.
func (c *Config) Integration(name string) IntegrationConfig {
	if c.Integrations == nil {
		return IntegrationConfig{}
	}
	return c.Integrations[name]
}
