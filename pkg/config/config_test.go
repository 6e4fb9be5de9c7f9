package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFiles != 10000 || cfg.LogLevel != "info" || cfg.DefaultContext != "runtime" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SKILLVAULT_MAX_FILES", "42")
	t.Setenv("SKILLVAULT_LOG_LEVEL", "debug")
	t.Setenv("SKILLVAULT_CLOCK_SKEW", "10s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFiles != 42 {
		t.Fatalf("got MaxFiles=%d, want 42", cfg.MaxFiles)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("got LogLevel=%s, want debug", cfg.LogLevel)
	}
	if cfg.ClockSkew != 10*time.Second {
		t.Fatalf("got ClockSkew=%s, want 10s", cfg.ClockSkew)
	}
}

func TestLoadYAMLFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_files: 7\nlog_level: warn\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFiles != 7 || cfg.LogLevel != "warn" {
		t.Fatalf("expected YAML values to apply, got %+v", cfg)
	}

	t.Setenv("SKILLVAULT_LOG_LEVEL", "error")
	cfg2, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg2.LogLevel != "error" {
		t.Fatalf("expected env var to override YAML, got %s", cfg2.LogLevel)
	}
}

func TestValidateAccumulatesAllProblems(t *testing.T) {
	cfg := &Config{
		MaxFiles:          0,
		MaxFileSize:       0,
		MaxTotalSize:      0,
		RuntimeGraceHours: -1,
		DefaultContext:    "sometimes",
		LogLevel:          "verbose",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"max_files", "max_file_size", "max_total_size", "runtime_grace_hours", "default_context", "log_level"} {
		if !contains(msg, want) {
			t.Errorf("expected error message to mention %q, got %q", want, msg)
		}
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
