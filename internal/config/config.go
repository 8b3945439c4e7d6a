package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds process-wide scriptbox configuration: the URL allowlist, the
// JSON simplification policy, default run limits, and logging.
type Config struct {
	AllowedHosts      []string  `yaml:"allowed_hosts" json:"allowed_hosts"`
	EssentialJSONKeys []string  `yaml:"essential_json_keys" json:"essential_json_keys"`
	MaxResponseBytes  int64     `yaml:"max_response_bytes" json:"max_response_bytes"`
	Limits            RunLimits `yaml:"limits" json:"limits"`
	Logging           LoggingConfig `yaml:"logging" json:"logging"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		AllowedHosts: []string{},
		EssentialJSONKeys: []string{
			"id", "name", "url", "height", "weight", "base_experience",
		},
		MaxResponseBytes: 1_000_000,
		Limits:           RunLimits{TimeoutMS: 30_000, MemoryBytes: 10_000_000},
		Logging:          LoggingConfig{Verbose: false},
	}
}

// Load reads configuration from a YAML file at path, falling back to
// defaults if it does not exist, and applies environment overrides
// afterward regardless.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides layers environment variables on top of whatever was
// loaded from YAML (or the defaults).
func (c *Config) applyEnvOverrides() {
	if hosts := os.Getenv("SCRIPTBOX_ALLOWED_HOSTS"); hosts != "" {
		c.AllowedHosts = strings.Split(hosts, ",")
	}
	if keys := os.Getenv("SCRIPTBOX_ESSENTIAL_JSON_KEYS"); keys != "" {
		c.EssentialJSONKeys = strings.Split(keys, ",")
	}
	if v := os.Getenv("SCRIPTBOX_MAX_RESPONSE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxResponseBytes = n
		}
	}
	if v := os.Getenv("SCRIPTBOX_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Limits.TimeoutMS = n
		}
	}
	if v := os.Getenv("SCRIPTBOX_MEMORY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Limits.MemoryBytes = n
		}
	}
	if v := os.Getenv("SCRIPTBOX_VERBOSE"); v != "" {
		c.Logging.Verbose = v == "1" || strings.EqualFold(v, "true")
	}
}

// Validate checks the configuration is internally consistent before it
// reaches the executor.
func (c *Config) Validate() error {
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("max_response_bytes must be > 0")
	}
	return nil
}
