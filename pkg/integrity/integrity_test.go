package integrity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/certen/skillvault/pkg/fswalk"
)

func writeSkill(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("# Test Skill"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestGenerateAndVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir)

	m, err := Generate(dir, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(m.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(m.Files))
	}

	if err := Verify(dir, m, fswalk.Options{Context: fswalk.ContextInstall}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyDetectsTamperedContent(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir)
	m, err := Generate(dir, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("# Tampered!"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err = Verify(dir, m, fswalk.Options{Context: fswalk.ContextInstall})
	var ierr *Error
	if !errors.As(err, &ierr) || ierr.Code != ErrIntegrityMismatch || ierr.Path != "SKILL.md" {
		t.Fatalf("expected E_INTEGRITY_MISMATCH for SKILL.md, got %v", err)
	}
}

func TestVerifyDetectsExtraFile(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir)
	m, err := Generate(dir, time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("surprise"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err = Verify(dir, m, fswalk.Options{Context: fswalk.ContextInstall})
	var ierr *Error
	if !errors.As(err, &ierr) || ierr.Code != ErrExtraFiles || ierr.Path != "extra.txt" {
		t.Fatalf("expected E_EXTRA_FILES for extra.txt, got %v", err)
	}
}

func TestVerifyRejectsTraversalPathBeforeReading(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir)
	m := &Manifest{
		SchemaVersion: CurrentSchemaVersion,
		Algorithm:     "sha256",
		Files:         map[string]string{"../outside.txt": "sha256:" + string(make([]byte, 64))},
	}

	err := Verify(dir, m, fswalk.Options{Context: fswalk.ContextInstall})
	var ierr *Error
	if !errors.As(err, &ierr) || ierr.Code != ErrIntegrityMismatch {
		t.Fatalf("expected E_INTEGRITY_MISMATCH for traversal path, got %v", err)
	}
}
