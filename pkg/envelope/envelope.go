// Package envelope implements the Builder/Verifier pair at the center of
// the trust engine: Builder assembles and signs the four vault artifacts
// atomically, and Verifier runs the thirteen-step verification sequence
// that binds signature, integrity, permissions, and revocation checks into
// a single strictly-ordered, fail-fast state machine.
package envelope

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/certen/skillvault/pkg/attestation"
	"github.com/certen/skillvault/pkg/canonical"
	"github.com/certen/skillvault/pkg/envelope/envelopedoc"
	"github.com/certen/skillvault/pkg/fswalk"
	"github.com/certen/skillvault/pkg/hash"
	"github.com/certen/skillvault/pkg/integrity"
	"github.com/certen/skillvault/pkg/keyring"
	"github.com/certen/skillvault/pkg/logging"
	"github.com/certen/skillvault/pkg/pae"
	"github.com/certen/skillvault/pkg/permissions"
	"github.com/certen/skillvault/pkg/revocation"
	"github.com/certen/skillvault/pkg/schema"
)

const (
	fileIntegrity   = "integrity.json"
	filePermissions = "permissions.json"
	fileAttestation = "attestation.json"
	fileSignature   = "signature.json"
)

// VaultDir is re-exported from fswalk for callers that only import
// pkg/envelope.
const VaultDir = fswalk.VaultDir

// ErrorCode identifies the stable, machine-checkable category of a
// verification failure.
type ErrorCode string

const (
	ErrNoEnvelope        ErrorCode = "E_NO_ENVELOPE"
	ErrIncomplete        ErrorCode = "E_INCOMPLETE"
	ErrInvalidEnvelope   ErrorCode = "E_INVALID_ENVELOPE"
	ErrInvalidAttestation ErrorCode = "E_INVALID_ATTESTATION"
	ErrInvalidIntegrity  ErrorCode = "E_INVALID_INTEGRITY"
	ErrUnsupportedVersion ErrorCode = "E_UNSUPPORTED_VERSION"
	ErrUnknownKey        ErrorCode = "E_UNKNOWN_KEY"
	ErrBadSignature      ErrorCode = "E_BAD_SIGNATURE"
	ErrDecodeFailed      ErrorCode = "E_DECODE_FAILED"
	ErrUnknownCritical   ErrorCode = "E_UNKNOWN_CRITICAL"
	ErrSymlink           ErrorCode = "E_SYMLINK"
	ErrHardlink          ErrorCode = "E_HARDLINK"
	ErrLimits            ErrorCode = "E_LIMITS"
	ErrIntegrityMismatch ErrorCode = "E_INTEGRITY_MISMATCH"
	ErrExtraFiles        ErrorCode = "E_EXTRA_FILES"
	ErrRevoked           ErrorCode = "E_REVOKED"
	ErrRevocationStale   ErrorCode = "E_REVOCATION_STALE"
)

// WarningCode identifies a non-terminal trust downgrade.
type WarningCode string

const (
	WarnRevocationUnavailable WarningCode = "W_REVOCATION_UNAVAILABLE"
	WarnRevocationStale       WarningCode = "W_REVOCATION_STALE"
	WarnRevocationSigInvalid  WarningCode = "W_REVOCATION_SIG_INVALID"
)

// VerifyError is a single terminal failure. The engine never returns more
// than one: the first check to fail ends the sequence.
type VerifyError struct {
	Code    ErrorCode
	Message string
	File    string // optional: the offending path, when applicable
}

func (e *VerifyError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.File)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCodeString lets pkg/logging attach the stable error code as its own
// structured field without needing to depend on this package's types.
func (e *VerifyError) ErrorCodeString() string {
	return string(e.Code)
}

// Warning is a non-terminal finding attached to an otherwise-successful
// verification.
type Warning struct {
	Code    WarningCode
	Message string
}

// TrustLevel is the caller-facing summary of how much a VerifyResult
// should be trusted.
type TrustLevel string

const (
	TrustFull     TrustLevel = "full"
	TrustDegraded TrustLevel = "degraded"
	TrustNone     TrustLevel = "none"
)

// Context distinguishes install-time (fail-closed) from runtime (fail-open
// with grace) verification.
type Context int

const (
	ContextInstall Context = iota
	ContextRuntime
)

// VerifyOptions configures one verification call.
type VerifyOptions struct {
	Keyring Keyring

	Context           Context
	SkipHardlinkCheck bool // honored only when Context == ContextRuntime

	RevocationList          *revocation.List
	LastValidRevocationList *revocation.List
	CachedSequenceNumber    uint64
}

// Keyring is a type alias of keyring.Keyring, so callers that import only
// pkg/envelope can name it and pass keyring.Keyring values directly.
type Keyring = keyring.Keyring

// VerifyResult is the full outcome of a verification.
type VerifyResult struct {
	Valid      bool
	TrustLevel TrustLevel
	KeyID      string
	Warnings   []Warning
	Errors     []VerifyError // at most one entry; a slice to match the external result shape

	Attestation *attestation.Attestation
	Permissions *permissions.Document

	NewCachedSequenceNumber uint64
	HasNewCachedSequenceNumber bool
}

func failResult(code ErrorCode, msg string, file string) *VerifyResult {
	return &VerifyResult{
		Valid:      false,
		TrustLevel: TrustNone,
		Errors:     []VerifyError{{Code: code, Message: msg, File: file}},
	}
}

// Verifier runs the envelope verification sequence.
type Verifier struct {
	// Logger is optional (nil-safe); when nil, the package-level default
	// logger from pkg/logging is used.
	Logger *logging.Logger
}

// NewVerifier constructs a Verifier using the package-level default logger.
func NewVerifier() *Verifier {
	return &Verifier{}
}

func (v *Verifier) logger() *logging.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return logging.GetGlobalLogger()
}

// Verify executes the thirteen-step sequence from the specification,
// returning immediately on the first failure, then logs exactly one
// structured line describing the outcome.
func (v *Verifier) Verify(root string, opts VerifyOptions) *VerifyResult {
	result := v.verify(root, opts)
	v.logOutcome(root, result)
	return result
}

// logOutcome emits a Warn/Error line per terminal error or warning, tagged
// with operation/skill/code fields. Never logs file contents or keys.
func (v *Verifier) logOutcome(skillRoot string, result *VerifyResult) {
	log := v.logger().WithComponent("envelope").WithOperation("verify")
	skill := skillRoot
	if result.Attestation != nil {
		skill = result.Attestation.Skill.Name
	}
	for _, verr := range result.Errors {
		log.WithFields(logging.Field{"skill", skill}, logging.Field{"code", string(verr.Code)}).Error(verr.Message)
	}
	for _, warn := range result.Warnings {
		log.WithFields(logging.Field{"skill", skill}, logging.Field{"code", string(warn.Code)}).Warn(warn.Message)
	}
}

func (v *Verifier) verify(root string, opts VerifyOptions) *VerifyResult {
	vaultPath := filepath.Join(root, fswalk.VaultDir)

	// Step 1: vault directory exists.
	info, err := os.Stat(vaultPath)
	if err != nil || !info.IsDir() {
		return failResult(ErrNoEnvelope, "vault directory does not exist", "")
	}

	// Step 2: all four required vault files exist.
	required := []string{fileIntegrity, filePermissions, fileAttestation, fileSignature}
	for _, name := range required {
		if _, err := os.Stat(filepath.Join(vaultPath, name)); err != nil {
			return failResult(ErrIncomplete, fmt.Sprintf("required vault file %s missing", name), "")
		}
	}

	// Step 3: filesystem walk safety.
	walkOpts := fswalk.Options{
		Context:           fswalk.Context(opts.Context),
		SkipHardlinkCheck: opts.Context == ContextRuntime && opts.SkipHardlinkCheck,
	}
	if _, err := fswalk.Walk(root, walkOpts); err != nil {
		return walkErrorResult(err)
	}

	// Step 4+5: parse and schema-validate signature.json; version check is
	// folded into ValidateSignatureEnvelope.
	sigRaw, err := os.ReadFile(filepath.Join(vaultPath, fileSignature))
	if err != nil {
		return failResult(ErrInvalidEnvelope, "failed to read signature.json: "+err.Error(), "")
	}
	sigEnv, _, err := schema.ValidateSignatureEnvelope(sigRaw)
	if err != nil {
		if isUnsupportedVersion(sigRaw) {
			return failResult(ErrUnsupportedVersion, err.Error(), "")
		}
		return failResult(ErrInvalidEnvelope, err.Error(), "")
	}

	// Step 6: select first signature whose keyid is trusted and verifies.
	payloadBytes, keyID, verr := selectVerifyingSignature(sigEnv, opts.Keyring)
	if verr != nil {
		return &VerifyResult{Valid: false, TrustLevel: TrustNone, Errors: []VerifyError{*verr}}
	}

	// Step 7: parse attestation from the verified payload bytes.
	att, _, err := schema.ValidateAttestation(payloadBytes)
	if err != nil {
		return failResult(ErrInvalidAttestation, err.Error(), "")
	}
	if !attestation.IsSupportedSchemaVersion(att.SchemaVersion) {
		return failResult(ErrUnsupportedVersion, "unsupported attestation schema_version", "")
	}
	if err := attestation.ValidateCritical(att.Critical); err != nil {
		return failResult(ErrUnknownCritical, err.Error(), "")
	}

	// Step 8: payload bytes must byte-equal attestation.json on disk.
	onDisk, err := os.ReadFile(filepath.Join(vaultPath, fileAttestation))
	if err != nil {
		return failResult(ErrIntegrityMismatch, "failed to read attestation.json: "+err.Error(), "")
	}
	if subtle.ConstantTimeCompare(payloadBytes, onDisk) != 1 {
		return failResult(ErrIntegrityMismatch, "signed payload does not match attestation.json on disk", "")
	}

	// Step 9: integrity.json bytes must hash to attestation.integrity_hash.
	integrityRaw, err := os.ReadFile(filepath.Join(vaultPath, fileIntegrity))
	if err != nil {
		return failResult(ErrIntegrityMismatch, "failed to read integrity.json: "+err.Error(), "")
	}
	if !hash.Sum(integrityRaw).Equal(hash.Digest(att.IntegrityHash)) {
		return failResult(ErrIntegrityMismatch, "integrity.json bytes do not match attestation.integrity_hash", "")
	}
	manifest, _, err := schema.ValidateIntegrity(integrityRaw)
	if err != nil {
		return failResult(ErrInvalidIntegrity, err.Error(), "")
	}

	// Steps 10-11: per-file content verification, then extra-files sweep.
	if err := integrity.Verify(root, manifest, walkOpts); err != nil {
		return integrityErrorResult(err)
	}

	// Step 12: permissions.json canonicalize-then-hash against
	// attestation.permissions_hash.
	permsRaw, err := os.ReadFile(filepath.Join(vaultPath, filePermissions))
	if err != nil {
		return failResult(ErrInvalidEnvelope, "failed to read permissions.json: "+err.Error(), "")
	}
	perms, _, err := schema.ValidatePermissions(permsRaw)
	if err != nil {
		return failResult(ErrInvalidEnvelope, err.Error(), "")
	}
	permsCanonical, err := canonical.Marshal(perms)
	if err != nil {
		return failResult(ErrInvalidEnvelope, "failed to canonicalize permissions: "+err.Error(), "")
	}
	if !hash.Sum(permsCanonical).Equal(hash.Digest(att.PermissionsHash)) {
		return failResult(ErrIntegrityMismatch, "canonicalized permissions do not match attestation.permissions_hash", "")
	}

	// Step 13: revocation evaluation.
	result := &VerifyResult{
		Valid:       true,
		KeyID:       keyID,
		Attestation: att,
		Permissions: perms,
	}
	v.applyRevocation(result, att, opts)
	return result
}

// applyRevocation runs the install or runtime revocation policy and folds
// the resulting decision into result, possibly turning success into a
// terminal failure.
func (v *Verifier) applyRevocation(result *VerifyResult, att *attestation.Attestation, opts VerifyOptions) {
	var decision *revocation.Decision
	if opts.Context == ContextInstall {
		decision = revocation.VerifyInstall(opts.RevocationList, opts.Keyring, att.Skill.Name, att.Skill.Version, opts.CachedSequenceNumber, time.Now(), v.Logger)
	} else {
		decision = revocation.VerifyRuntime(opts.RevocationList, opts.LastValidRevocationList, opts.Keyring, att.Skill.Name, att.Skill.Version, time.Now(),
			revocation.RuntimeOptions{CachedSequenceNumber: opts.CachedSequenceNumber}, v.Logger)
	}

	if decision.ErrorCode != "" {
		result.Valid = false
		result.TrustLevel = TrustNone
		result.Attestation = nil
		result.Permissions = nil
		result.KeyID = ""
		result.Errors = []VerifyError{{Code: ErrorCode(decision.ErrorCode), Message: "revocation check failed"}}
		return
	}

	result.TrustLevel = TrustLevel(decision.TrustLevel)
	if decision.WarningCode != "" {
		result.Warnings = append(result.Warnings, Warning{Code: WarningCode(decision.WarningCode), Message: "revocation data is stale or unavailable"})
	}
	if decision.NewSequenceNumber > 0 {
		result.NewCachedSequenceNumber = decision.NewSequenceNumber
		result.HasNewCachedSequenceNumber = true
	}
}

// selectVerifyingSignature implements step 6: the first keyid present in
// the trusted keyring whose signature verifies wins; a matching-but-failing
// signature is only fatal if no other signature verifies.
func selectVerifyingSignature(env *envelopedoc.SignatureEnvelope, kr keyring.Keyring) (payload []byte, keyID string, err *VerifyError) {
	payloadBytes, decErr := base64.RawURLEncoding.DecodeString(env.Payload)
	if decErr != nil {
		return nil, "", &VerifyError{Code: ErrDecodeFailed, Message: "payload is not valid base64url"}
	}

	msg := pae.Encode(env.PayloadType, payloadBytes)

	sawTrustedKey := false
	for _, sig := range env.Signatures {
		pub, ok := kr.Lookup(sig.KeyID)
		if !ok {
			continue
		}
		sawTrustedKey = true

		sigBytes, decErr := base64.RawURLEncoding.DecodeString(sig.Sig)
		if decErr != nil || len(sigBytes) != ed25519.SignatureSize {
			return nil, "", &VerifyError{Code: ErrDecodeFailed, Message: "signature is not valid base64url or wrong length"}
		}

		if hash.Verify(pub, msg, sigBytes) {
			return payloadBytes, sig.KeyID, nil
		}
	}

	if !sawTrustedKey {
		return nil, "", &VerifyError{Code: ErrUnknownKey, Message: "no signature's keyid matches a trusted key"}
	}
	return nil, "", &VerifyError{Code: ErrBadSignature, Message: "matched a trusted keyid but no signature verified"}
}

func isUnsupportedVersion(raw []byte) bool {
	var probe struct {
		SchemaVersion string `json:"schema_version"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return false
	}
	return probe.SchemaVersion != "" && !envelopedoc.IsSupportedSchemaVersion(probe.SchemaVersion)
}

func walkErrorResult(err error) *VerifyResult {
	if werr, ok := err.(*fswalk.Error); ok {
		switch werr.Code {
		case fswalk.ErrSymlink:
			return failResult(ErrSymlink, werr.Msg, werr.Path)
		case fswalk.ErrHardlink:
			return failResult(ErrHardlink, werr.Msg, werr.Path)
		case fswalk.ErrLimits:
			return failResult(ErrLimits, werr.Msg, werr.Path)
		case fswalk.ErrTraversal:
			return failResult(ErrIntegrityMismatch, werr.Msg, werr.Path)
		}
	}
	return failResult(ErrLimits, "filesystem walk failed: "+err.Error(), "")
}

func integrityErrorResult(err error) *VerifyResult {
	if ierr, ok := err.(*integrity.Error); ok {
		switch ierr.Code {
		case integrity.ErrExtraFiles:
			return failResult(ErrExtraFiles, ierr.Msg, ierr.Path)
		default:
			return failResult(ErrIntegrityMismatch, ierr.Msg, ierr.Path)
		}
	}
	return failResult(ErrIntegrityMismatch, err.Error(), "")
}
