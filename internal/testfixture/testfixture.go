// Package testfixture builds signed skill directories on disk for use by
// other packages' tests, so each package doesn't need to re-derive the
// same temp-dir-plus-builder boilerplate.
package testfixture

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/certen/skillvault/pkg/attestation"
	"github.com/certen/skillvault/pkg/envelope"
	"github.com/certen/skillvault/pkg/permissions"
)

// NewSignedSkill writes a minimal SKILL.md into a fresh temp directory,
// signs it with a freshly generated key, and returns the directory and
// the corresponding public key.
func NewSignedSkill(t *testing.T, skill attestation.Skill, perms permissions.Document) (dir string, pub ed25519.PublicKey) {
	t.Helper()
	dir, pub, _ = NewSignedSkillWithKey(t, skill, perms)
	return dir, pub
}

// NewSignedSkillWithKey is NewSignedSkill but also returns the private
// key, for tests that need to co-sign or reissue revocation lists.
func NewSignedSkillWithKey(t *testing.T, skill attestation.Skill, perms permissions.Document) (dir string, pub ed25519.PublicKey, priv ed25519.PrivateKey) {
	t.Helper()
	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("# "+skill.Name), 0o644); err != nil {
		t.Fatalf("testfixture: WriteFile: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("testfixture: GenerateKey: %v", err)
	}

	b := envelope.NewBuilder()
	if err := b.Sign(dir, skill, &perms, priv, nil); err != nil {
		t.Fatalf("testfixture: Sign: %v", err)
	}
	return dir, pub, priv
}

// WriteExtraFile adds an untracked file to an already-signed skill
// directory, for exercising extra-files detection.
func WriteExtraFile(t *testing.T, dir, relPath, contents string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("testfixture: MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		t.Fatalf("testfixture: WriteFile: %v", err)
	}
}
