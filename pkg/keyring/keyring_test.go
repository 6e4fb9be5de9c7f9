package keyring

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/certen/skillvault/pkg/hash"
	"gopkg.in/yaml.v3"
)

func TestAddAndLookup(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	kr := New()
	id, err := kr.Add(pub)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	wantID, _ := hash.KeyID(pub)
	if id != wantID {
		t.Fatalf("got id %s, want %s", id, wantID)
	}
	if kr.Len() != 1 {
		t.Fatalf("got Len()=%d, want 1", kr.Len())
	}

	got, ok := kr.Lookup(id)
	if !ok {
		t.Fatal("expected Lookup to find the added key")
	}
	if !got.Equal(pub) {
		t.Fatal("looked-up key does not match added key")
	}

	if _, ok := kr.Lookup("not-a-real-id"); ok {
		t.Fatal("expected Lookup to fail for unknown key id")
	}
}

func TestLoadFileRoundTrip(t *testing.T) {
	pub1, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub2, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	contents, err := yaml.Marshal(struct {
		Keys []string `yaml:"keys"`
	}{Keys: []string{encodePEM(t, pub1), encodePEM(t, pub2)}})
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "keyring.yaml")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	kr, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if kr.Len() != 2 {
		t.Fatalf("got Len()=%d, want 2", kr.Len())
	}

	id1, _ := hash.KeyID(pub1)
	if _, ok := kr.Lookup(id1); !ok {
		t.Fatal("expected first key to be loaded")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFileRejectsInvalidPEMEntry(t *testing.T) {
	contents, err := yaml.Marshal(struct {
		Keys []string `yaml:"keys"`
	}{Keys: []string{"not a pem block at all"}})
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "keyring.yaml")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for invalid PEM entry")
	}
}

func encodePEM(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}
