// Package schema validates the vault's JSON artifacts against explicit,
// hand-written validator functions rather than a generic schema engine —
// unknown fields are rejected at decode time and schema versions are
// checked against static allow-lists before any cryptographic work begins.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/certen/skillvault/pkg/attestation"
	"github.com/certen/skillvault/pkg/envelope/envelopedoc"
	"github.com/certen/skillvault/pkg/integrity"
	"github.com/certen/skillvault/pkg/permissions"
	"github.com/certen/skillvault/pkg/revocation"
)

// Result carries the recognized schema version of a validated document.
type Result struct {
	SchemaVersion string
}

// decodeStrict unmarshals raw into v, rejecting unknown fields and
// trailing data.
func decodeStrict(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("schema: decode: %w", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("schema: trailing data after document")
	}
	return nil
}

// ValidateIntegrity decodes and validates an integrity manifest document.
func ValidateIntegrity(raw json.RawMessage) (*integrity.Manifest, *Result, error) {
	var m integrity.Manifest
	if err := decodeStrict(raw, &m); err != nil {
		return nil, nil, err
	}
	if m.Algorithm != "sha256" {
		return nil, nil, fmt.Errorf("schema: unsupported integrity algorithm %q", m.Algorithm)
	}
	if !integrity.IsSupportedSchemaVersion(m.SchemaVersion) {
		return nil, nil, fmt.Errorf("schema: unsupported integrity schema_version %q", m.SchemaVersion)
	}
	return &m, &Result{SchemaVersion: m.SchemaVersion}, nil
}

// ValidateAttestation decodes and validates an attestation document,
// rejecting unsupported schema versions and missing identity or hash
// fields. `_critical` entries are not checked here; callers check them with
// attestation.ValidateCritical.
func ValidateAttestation(raw json.RawMessage) (*attestation.Attestation, *Result, error) {
	var a attestation.Attestation
	if err := decodeStrict(raw, &a); err != nil {
		return nil, nil, err
	}
	if !attestation.IsSupportedSchemaVersion(a.SchemaVersion) {
		return nil, nil, fmt.Errorf("schema: unsupported attestation schema_version %q", a.SchemaVersion)
	}
	if a.Skill.Name == "" || a.Skill.Version == "" {
		return nil, nil, fmt.Errorf("schema: attestation missing skill name/version")
	}
	if a.IntegrityHash == "" || a.PermissionsHash == "" {
		return nil, nil, fmt.Errorf("schema: attestation missing integrity_hash or permissions_hash")
	}
	return &a, &Result{SchemaVersion: a.SchemaVersion}, nil
}

// ValidatePermissions decodes and validates a permissions document. Its
// schema_version is returned as-is; no allow-list applies to it.
func ValidatePermissions(raw json.RawMessage) (*permissions.Document, *Result, error) {
	var p permissions.Document
	if err := decodeStrict(raw, &p); err != nil {
		return nil, nil, err
	}
	switch p.Network.Mode {
	case "none", "all", "domains":
	default:
		return nil, nil, fmt.Errorf("schema: unrecognized network policy mode %q", p.Network.Mode)
	}
	return &p, &Result{SchemaVersion: p.SchemaVersion}, nil
}

// ValidateSignatureEnvelope decodes and validates a signature.json
// document.
func ValidateSignatureEnvelope(raw json.RawMessage) (*envelopedoc.SignatureEnvelope, *Result, error) {
	var e envelopedoc.SignatureEnvelope
	if err := decodeStrict(raw, &e); err != nil {
		return nil, nil, err
	}
	if !envelopedoc.IsSupportedSchemaVersion(e.SchemaVersion) {
		return nil, nil, fmt.Errorf("schema: unsupported envelope schema_version %q", e.SchemaVersion)
	}
	if len(e.Signatures) == 0 {
		return nil, nil, fmt.Errorf("schema: envelope has no signatures")
	}
	return &e, &Result{SchemaVersion: e.SchemaVersion}, nil
}

// ValidateRevocationList decodes and validates a signed revocation list.
func ValidateRevocationList(raw json.RawMessage) (*revocation.List, *Result, error) {
	var l revocation.List
	if err := decodeStrict(raw, &l); err != nil {
		return nil, nil, err
	}
	if !revocation.IsSupportedSchemaVersion(l.SchemaVersion) {
		return nil, nil, fmt.Errorf("schema: unsupported revocation schema_version %q", l.SchemaVersion)
	}
	if l.SequenceNumber < 1 {
		return nil, nil, fmt.Errorf("schema: sequence_number must be >= 1")
	}
	return &l, &Result{SchemaVersion: l.SchemaVersion}, nil
}
