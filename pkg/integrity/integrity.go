// Package integrity builds and verifies the content-addressed file
// manifest bound into every skill's attestation: a sorted path-to-hash map
// covering every file outside the vault.
package integrity

import (
	"fmt"
	"os"
	"time"

	"github.com/certen/skillvault/pkg/fswalk"
	"github.com/certen/skillvault/pkg/hash"
)

// SupportedSchemaVersions is the static allow-list of integrity manifest
// schema versions this implementation recognizes.
var SupportedSchemaVersions = []string{"1.0"}

// CurrentSchemaVersion is written by Generate.
const CurrentSchemaVersion = "1.0"

// Manifest is the path -> sha256 content map, excluding the vault.
type Manifest struct {
	SchemaVersion string            `json:"schema_version"`
	Algorithm     string            `json:"algorithm"`
	Files         map[string]string `json:"files"`
	GeneratedAt   string            `json:"generated_at"`
}

// Error is an integrity failure tagged with a stable code and, where
// applicable, the offending path.
type Error struct {
	Code string
	Path string
	Msg  string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Msg, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

const (
	ErrIntegrityMismatch = "E_INTEGRITY_MISMATCH"
	ErrExtraFiles        = "E_EXTRA_FILES"
)

// IsSupportedSchemaVersion reports whether version is in the static
// allow-list.
func IsSupportedSchemaVersion(version string) bool {
	for _, v := range SupportedSchemaVersions {
		if v == version {
			return true
		}
	}
	return false
}

// Generate walks root and hashes every file outside the vault into a
// sorted manifest.
func Generate(root string, now time.Time) (*Manifest, error) {
	entries, err := fswalk.Walk(root, fswalk.Options{Context: fswalk.ContextInstall})
	if err != nil {
		return nil, fmt.Errorf("integrity: walk: %w", err)
	}

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		content, err := os.ReadFile(e.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("integrity: read %s: %w", e.Path, err)
		}
		files[e.Path] = string(hash.Sum(content))
	}

	return &Manifest{
		SchemaVersion: CurrentSchemaVersion,
		Algorithm:     "sha256",
		Files:         files,
		GeneratedAt:   now.UTC().Format(time.RFC3339),
	}, nil
}

// Verify implements the three-step verification sequence from spec §4.5:
// traversal-safety before any read, hash comparison for each declared
// path, and an extra-files sweep of the tree after every declared file
// verifies.
func Verify(root string, m *Manifest, walkOpts fswalk.Options) error {
	for path, expected := range m.Files {
		absPath, err := fswalk.NormalizePath(root, path)
		if err != nil {
			return &Error{Code: ErrIntegrityMismatch, Path: path, Msg: "path fails traversal safety check"}
		}

		content, err := os.ReadFile(absPath)
		if err != nil {
			return &Error{Code: ErrIntegrityMismatch, Path: path, Msg: "read failed: " + err.Error()}
		}
		got := hash.Sum(content)
		if !got.Equal(hash.Digest(expected)) {
			return &Error{Code: ErrIntegrityMismatch, Path: path, Msg: "content hash mismatch"}
		}
	}

	entries, err := fswalk.Walk(root, walkOpts)
	if err != nil {
		return fmt.Errorf("integrity: walk: %w", err)
	}
	for _, e := range entries {
		if _, declared := m.Files[e.Path]; !declared {
			return &Error{Code: ErrExtraFiles, Path: e.Path, Msg: "file not present in signed integrity manifest"}
		}
	}
	return nil
}
