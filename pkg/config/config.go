// Package config loads the skillvault CLI/SDK's runtime configuration from
// environment variables, with an optional YAML override file, following
// the same getEnv/Validate shape used across the teacher's services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of runtime-tunable values for the skillvault CLI
// and any long-running service built on top of the core.
type Config struct {
	KeyringPath string `yaml:"keyring_path"`
	DataDir     string `yaml:"data_dir"`

	MaxFiles     int   `yaml:"max_files"`
	MaxFileSize  int64 `yaml:"max_file_size"`
	MaxTotalSize int64 `yaml:"max_total_size"`

	ClockSkew         time.Duration `yaml:"clock_skew"`
	RuntimeGraceHours int           `yaml:"runtime_grace_hours"`

	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`

	DefaultContext string `yaml:"default_context"` // "install" or "runtime"
}

// Load builds a Config from environment variables, applying defaults for
// anything unset. If configPath is non-empty, the YAML file at that path
// is loaded first and environment variables override its values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		KeyringPath:       "",
		DataDir:           ".",
		MaxFiles:          10000,
		MaxFileSize:       100 * 1024 * 1024,
		MaxTotalSize:      500 * 1024 * 1024,
		ClockSkew:         300 * time.Second,
		RuntimeGraceHours: 24,
		LogLevel:          "info",
		LogFormat:         "json",
		MetricsAddr:       ":9090",
		DefaultContext:    "runtime",
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
	}

	cfg.KeyringPath = getEnv("SKILLVAULT_KEYRING_PATH", cfg.KeyringPath)
	cfg.DataDir = getEnv("SKILLVAULT_DATA_DIR", cfg.DataDir)
	cfg.MaxFiles = getEnvInt("SKILLVAULT_MAX_FILES", cfg.MaxFiles)
	cfg.MaxFileSize = getEnvInt64("SKILLVAULT_MAX_FILE_SIZE", cfg.MaxFileSize)
	cfg.MaxTotalSize = getEnvInt64("SKILLVAULT_MAX_TOTAL_SIZE", cfg.MaxTotalSize)
	cfg.ClockSkew = getEnvDuration("SKILLVAULT_CLOCK_SKEW", cfg.ClockSkew)
	cfg.RuntimeGraceHours = getEnvInt("SKILLVAULT_RUNTIME_GRACE_HOURS", cfg.RuntimeGraceHours)
	cfg.LogLevel = getEnv("SKILLVAULT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("SKILLVAULT_LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = getEnv("SKILLVAULT_METRICS_ADDR", cfg.MetricsAddr)
	cfg.DefaultContext = getEnv("SKILLVAULT_DEFAULT_CONTEXT", cfg.DefaultContext)

	return cfg, nil
}

// Validate accumulates every configuration problem into a single joined
// error, rather than failing on the first, so an operator sees the full
// list of fixes needed in one pass.
func (c *Config) Validate() error {
	var problems []string

	if c.MaxFiles <= 0 {
		problems = append(problems, "max_files must be positive")
	}
	if c.MaxFileSize <= 0 {
		problems = append(problems, "max_file_size must be positive")
	}
	if c.MaxTotalSize <= 0 {
		problems = append(problems, "max_total_size must be positive")
	}
	if c.RuntimeGraceHours < 0 {
		problems = append(problems, "runtime_grace_hours must not be negative")
	}
	switch c.DefaultContext {
	case "install", "runtime":
	default:
		problems = append(problems, fmt.Sprintf("default_context must be \"install\" or \"runtime\", got %q", c.DefaultContext))
	}
	if err := validateLogLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log_level %q is not one of debug/info/warn/error", level)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
