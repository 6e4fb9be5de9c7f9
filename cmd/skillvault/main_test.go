package main

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
)

func TestSplitCommaList(t *testing.T) {
	cases := map[string][]string{
		"":     nil,
		"a":    {"a"},
		"a,b":  {"a", "b"},
		"a,,b": {"a", "b"},
		"a, b": {"a", " b"},
		",,":   nil,
	}
	for input, want := range cases {
		got := splitCommaList(input)
		if len(got) != len(want) {
			t.Errorf("splitCommaList(%q) = %v, want %v", input, got, want)
			continue
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("splitCommaList(%q) = %v, want %v", input, got, want)
				break
			}
		}
	}
}

func TestLoadPrivateKeyRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := loadPrivateKey(path)
	if err != nil {
		t.Fatalf("loadPrivateKey: %v", err)
	}
	if !got.Equal(priv) {
		t.Fatal("loaded key does not match written key")
	}
}

func TestLoadPrivateKeyRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("too short"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadPrivateKey(path); err == nil {
		t.Fatal("expected error for wrong-size key file")
	}
}

func TestLoadPermissionsDefaultsToDenyAll(t *testing.T) {
	perms, err := loadPermissions("")
	if err != nil {
		t.Fatalf("loadPermissions: %v", err)
	}
	if perms.Network.Mode != "none" {
		t.Fatalf("got network mode %q, want none", perms.Network.Mode)
	}
}

func TestLoadConfigAndLoggerDefaults(t *testing.T) {
	cfg, logger, err := loadConfigAndLogger("")
	if err != nil {
		t.Fatalf("loadConfigAndLogger: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config defaults: %+v", cfg)
	}
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
}

func TestLoadConfigAndLoggerReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillvault.yaml")
	if err := os.WriteFile(path, []byte("keyring_path: /etc/skillvault/keyring.yaml\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, _, err := loadConfigAndLogger(path)
	if err != nil {
		t.Fatalf("loadConfigAndLogger: %v", err)
	}
	if cfg.KeyringPath != "/etc/skillvault/keyring.yaml" {
		t.Fatalf("got keyring_path %q", cfg.KeyringPath)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("got log_level %q, want debug", cfg.LogLevel)
	}
}
