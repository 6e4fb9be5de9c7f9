// Package revocation issues and verifies signed revocation lists, and
// applies the install (fail-closed) vs. runtime (fail-open with a grace
// period) trust policies described in the specification.
package revocation

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/certen/skillvault/pkg/canonical"
	"github.com/certen/skillvault/pkg/hash"
	"github.com/certen/skillvault/pkg/keyring"
	"github.com/certen/skillvault/pkg/logging"
)

// SupportedSchemaVersions is the static allow-list of revocation list
// schema versions this implementation recognizes.
var SupportedSchemaVersions = []string{"1.0"}

// CurrentSchemaVersion is written by Issue.
const CurrentSchemaVersion = "1.0"

// ClockSkew is the tolerance applied when comparing issued_at/expires_at
// against the current time.
const ClockSkew = 300 * time.Second

// RuntimeGrace is the additional window, beyond expires_at, during which a
// runtime verifier will still consult an expired list with a warning
// instead of a hard failure.
const RuntimeGrace = 24 * time.Hour

// Entry names a revoked skill and the versions the revocation covers.
// Versions may contain the wildcard "*", meaning all versions.
type Entry struct {
	Name      string    `json:"name"`
	Versions  []string  `json:"versions"`
	RevokedAt time.Time `json:"revoked_at"`
	Reason    string    `json:"reason"`
	Severity  string    `json:"severity"`
}

// Signature is the keyid/sig pair covering a list's canonicalized payload
// with the signature field itself removed.
type Signature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"` // base64url, unpadded
}

// List is a signed, monotonically-sequenced, expiring revocation
// statement.
type List struct {
	SchemaVersion  string    `json:"schema_version"`
	SequenceNumber uint64    `json:"sequence_number"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	NextUpdate     time.Time `json:"next_update"`
	Entries        []Entry   `json:"entries"`
	Signature      Signature `json:"signature"`
}

// payloadForSigning is List with its Signature field omitted, giving the
// exact byte sequence that gets canonicalized and signed/verified.
type payloadForSigning struct {
	SchemaVersion  string    `json:"schema_version"`
	SequenceNumber uint64    `json:"sequence_number"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	NextUpdate     time.Time `json:"next_update"`
	Entries        []Entry   `json:"entries"`
}

func (l *List) signingPayload() payloadForSigning {
	return payloadForSigning{
		SchemaVersion:  l.SchemaVersion,
		SequenceNumber: l.SequenceNumber,
		IssuedAt:       l.IssuedAt,
		ExpiresAt:      l.ExpiresAt,
		NextUpdate:     l.NextUpdate,
		Entries:        l.Entries,
	}
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

// Issue builds and signs a new revocation list.
func Issue(seq uint64, entries []Entry, issuedAt, expiresAt, nextUpdate time.Time, key ed25519.PrivateKey) (*List, error) {
	if seq < 1 {
		return nil, fmt.Errorf("revocation: sequence_number must be >= 1")
	}
	l := &List{
		SchemaVersion:  CurrentSchemaVersion,
		SequenceNumber: seq,
		IssuedAt:       issuedAt,
		ExpiresAt:      expiresAt,
		NextUpdate:     nextUpdate,
		Entries:        entries,
	}

	canonicalBytes, err := canonical.Marshal(l.signingPayload())
	if err != nil {
		return nil, fmt.Errorf("revocation: canonicalize: %w", err)
	}
	keyID, err := hash.KeyID(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("revocation: derive keyid: %w", err)
	}
	sig := hash.Sign(key, canonicalBytes)
	l.Signature = Signature{
		KeyID: keyID,
		Sig:   base64.RawURLEncoding.EncodeToString(sig),
	}
	return l, nil
}

// IsRevoked reports whether name/version is covered by any entry in the
// list, honoring the "*" version wildcard.
func IsRevoked(name, version string, l *List) bool {
	for _, e := range l.Entries {
		if e.Name != name {
			continue
		}
		for _, v := range e.Versions {
			if v == "*" || v == version {
				return true
			}
		}
	}
	return false
}

// structurallyValid checks signature validity, schema version, keyring
// membership, sequence number positivity, and the issued_at < expires_at
// ordering (with clock-skew tolerance).
func structurallyValid(l *List, kr keyring.Keyring, now time.Time) error {
	if !IsSupportedSchemaVersion(l.SchemaVersion) {
		return fmt.Errorf("revocation: unsupported schema_version %q", l.SchemaVersion)
	}
	if l.SequenceNumber < 1 {
		return fmt.Errorf("revocation: sequence_number must be >= 1")
	}
	if !l.IssuedAt.Before(l.ExpiresAt.Add(ClockSkew)) {
		return fmt.Errorf("revocation: issued_at not before expires_at")
	}

	pub, ok := kr.Lookup(l.Signature.KeyID)
	if !ok {
		return fmt.Errorf("revocation: signing keyid %q not in trusted keyring", l.Signature.KeyID)
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(l.Signature.Sig)
	if err != nil {
		return fmt.Errorf("revocation: decode signature: %w", err)
	}
	canonicalBytes, err := canonical.Marshal(l.signingPayload())
	if err != nil {
		return fmt.Errorf("revocation: canonicalize: %w", err)
	}
	if !hash.Verify(pub, canonicalBytes, sigBytes) {
		return fmt.Errorf("revocation: signature verification failed")
	}
	return nil
}

// Decision is the outcome of a revocation evaluation.
type Decision struct {
	// Revoked is true when the skill under evaluation is revoked.
	Revoked bool
	// TrustLevel is "full", "degraded", or "none", matching the
	// envelope's trust-level vocabulary.
	TrustLevel string
	// ErrorCode is set when the decision is terminal (E_REVOKED or
	// E_REVOCATION_STALE); empty otherwise.
	ErrorCode string
	// WarningCode is set when the decision downgrades trust without
	// being terminal.
	WarningCode string
	// NewSequenceNumber is the sequence number callers should persist
	// for future rollback detection, when the list was accepted.
	NewSequenceNumber uint64
}

const (
	ErrRevoked          = "E_REVOKED"
	ErrRevocationStale  = "E_REVOCATION_STALE"
	WarnUnavailable     = "W_REVOCATION_UNAVAILABLE"
	WarnStale           = "W_REVOCATION_STALE"
	WarnSigInvalid      = "W_REVOCATION_SIG_INVALID"
)

// VerifyInstall applies the fail-closed install policy: absence,
// structural invalidity, expiry, or rollback are all terminal. logger is
// optional (nil-safe); when nil, the package-level default logger is used.
func VerifyInstall(list *List, kr keyring.Keyring, name, version string, cachedSeq uint64, now time.Time, logger *logging.Logger) *Decision {
	decision := verifyInstall(list, kr, name, version, cachedSeq, now)
	logDecision(logger, name, decision)
	return decision
}

func verifyInstall(list *List, kr keyring.Keyring, name, version string, cachedSeq uint64, now time.Time) *Decision {
	if list == nil {
		return &Decision{TrustLevel: "none", ErrorCode: ErrRevocationStale}
	}
	if err := structurallyValid(list, kr, now); err != nil {
		return &Decision{TrustLevel: "none", ErrorCode: ErrRevocationStale}
	}
	if now.After(list.ExpiresAt.Add(ClockSkew)) {
		return &Decision{TrustLevel: "none", ErrorCode: ErrRevocationStale}
	}
	if list.SequenceNumber <= cachedSeq {
		return &Decision{TrustLevel: "none", ErrorCode: ErrRevocationStale}
	}
	if IsRevoked(name, version, list) {
		return &Decision{TrustLevel: "none", ErrorCode: ErrRevoked, Revoked: true}
	}
	return &Decision{TrustLevel: "full", NewSequenceNumber: list.SequenceNumber}
}

// logDecision emits the single structured line the revocation package
// promises per evaluation: skill name, resulting trust level, and whichever
// of error/warning code applies. Never logs list contents or key material.
func logDecision(logger *logging.Logger, name string, d *Decision) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger.LogRevocation(name, d.TrustLevel, d.ErrorCode, d.WarningCode)
}

// RuntimeOptions carries the inputs specific to a runtime evaluation.
type RuntimeOptions struct {
	CachedSequenceNumber uint64
}

// VerifyRuntime applies the fail-open runtime policy: a missing or
// structurally-invalid current list degrades trust instead of failing,
// falling back to a pre-verified last-valid list for defense-in-depth
// revocation enforcement. logger is optional (nil-safe); when nil, the
// package-level default logger is used.
func VerifyRuntime(current, lastValid *List, kr keyring.Keyring, name, version string, now time.Time, opts RuntimeOptions, logger *logging.Logger) *Decision {
	decision := verifyRuntime(current, lastValid, kr, name, version, now, opts)
	logDecision(logger, name, decision)
	return decision
}

func verifyRuntime(current, lastValid *List, kr keyring.Keyring, name, version string, now time.Time, opts RuntimeOptions) *Decision {
	var verifiedLastValid *List
	if lastValid != nil {
		if err := structurallyValid(lastValid, kr, now); err == nil {
			if !now.After(lastValid.ExpiresAt.Add(ClockSkew).Add(RuntimeGrace)) {
				verifiedLastValid = lastValid
			}
		}
	}

	fallback := func(warning string) *Decision {
		if verifiedLastValid != nil && IsRevoked(name, version, verifiedLastValid) {
			return &Decision{TrustLevel: "none", ErrorCode: ErrRevoked, Revoked: true}
		}
		return &Decision{TrustLevel: "degraded", WarningCode: warning}
	}

	if current == nil {
		return fallback(WarnUnavailable)
	}

	if err := structurallyValid(current, kr, now); err != nil {
		return fallback(WarnSigInvalid)
	}

	if current.SequenceNumber <= opts.CachedSequenceNumber {
		return fallback("")
	}

	if IsRevoked(name, version, current) {
		return &Decision{TrustLevel: "none", ErrorCode: ErrRevoked, Revoked: true}
	}

	if now.After(current.ExpiresAt.Add(ClockSkew).Add(RuntimeGrace)) {
		return &Decision{TrustLevel: "none", ErrorCode: ErrRevocationStale}
	}
	if now.After(current.ExpiresAt.Add(ClockSkew)) {
		return &Decision{TrustLevel: "degraded", WarningCode: WarnStale, NewSequenceNumber: current.SequenceNumber}
	}

	return &Decision{TrustLevel: "full", NewSequenceNumber: current.SequenceNumber}
}
