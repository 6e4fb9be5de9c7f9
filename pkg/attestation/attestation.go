// Package attestation defines the signed payload bound into a skill's
// envelope: skill identity, the integrity and permissions hashes it binds,
// and the optional `_critical` field-recognition list.
package attestation

import "fmt"

// SupportedSchemaVersions is the static allow-list of attestation schema
// versions this implementation recognizes.
var SupportedSchemaVersions = []string{"1.0"}

// Skill identifies the skill an attestation describes.
type Skill struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
}

// Attestation is the signed statement binding a skill's integrity hash,
// permissions hash, and identity metadata.
type Attestation struct {
	SchemaVersion   string   `json:"schema_version"`
	Skill           Skill    `json:"skill"`
	IntegrityHash   string   `json:"integrity_hash"`
	PermissionsHash string   `json:"permissions_hash"`
	SignedAt        string   `json:"signed_at"`
	Critical        []string `json:"_critical,omitempty"`
}

// KnownCriticalFields is the allow-list of field names the verifier
// recognizes in `_critical`. It is intentionally empty: the source system
// treats `_critical` as an opaque allow-list that currently names nothing,
// so any non-empty `_critical` entry is rejected as unrecognized.
var KnownCriticalFields = map[string]bool{}

// ValidateCritical reports an error if any entry in critical is not in
// KnownCriticalFields.
func ValidateCritical(critical []string) error {
	for _, field := range critical {
		if !KnownCriticalFields[field] {
			return fmt.Errorf("attestation: unknown _critical entry %q", field)
		}
	}
	return nil
}

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
