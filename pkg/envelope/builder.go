package envelope

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/certen/skillvault/pkg/attestation"
	"github.com/certen/skillvault/pkg/canonical"
	"github.com/certen/skillvault/pkg/envelope/envelopedoc"
	"github.com/certen/skillvault/pkg/hash"
	"github.com/certen/skillvault/pkg/integrity"
	"github.com/certen/skillvault/pkg/keyring"
	"github.com/certen/skillvault/pkg/logging"
	"github.com/certen/skillvault/pkg/pae"
	"github.com/certen/skillvault/pkg/permissions"
)

// Builder assembles and signs the four vault artifacts.
type Builder struct {
	// Now is overridable for deterministic tests; defaults to time.Now.
	Now func() time.Time
	// Logger is optional (nil-safe); when nil, the package-level default
	// logger from pkg/logging is used.
	Logger *logging.Logger
}

// NewBuilder returns a Builder using the real clock.
func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) logger() *logging.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return logging.GetGlobalLogger()
}

// Sign performs the complete signing pipeline: generate the integrity
// manifest, canonicalize permissions, compute both hashes, assemble and
// canonicalize the attestation, PAE-encode and sign it, and atomically
// write all four vault files.
func (b *Builder) Sign(root string, skill attestation.Skill, perms *permissions.Document, key ed25519.PrivateKey, critical []string) error {
	err := b.sign(root, skill, perms, key, critical)
	b.logger().LogSign(skill.Name, skill.Version, err)
	return err
}

func (b *Builder) sign(root string, skill attestation.Skill, perms *permissions.Document, key ed25519.PrivateKey, critical []string) error {
	if err := attestation.ValidateCritical(critical); err != nil {
		return fmt.Errorf("envelope: build: %w", err)
	}

	manifest, err := integrity.Generate(root, b.now())
	if err != nil {
		return fmt.Errorf("envelope: build: generate integrity manifest: %w", err)
	}
	manifestCanonical, err := canonical.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("envelope: build: canonicalize integrity manifest: %w", err)
	}

	permsCanonical, err := canonical.Marshal(perms)
	if err != nil {
		return fmt.Errorf("envelope: build: canonicalize permissions: %w", err)
	}

	att := &attestation.Attestation{
		SchemaVersion:   "1.0",
		Skill:           skill,
		IntegrityHash:   string(hash.Sum(manifestCanonical)),
		PermissionsHash: string(hash.Sum(permsCanonical)),
		SignedAt:        b.now().UTC().Format(time.RFC3339),
		Critical:        critical,
	}
	attCanonical, err := canonical.Marshal(att)
	if err != nil {
		return fmt.Errorf("envelope: build: canonicalize attestation: %w", err)
	}

	keyID, err := hash.KeyID(key.Public().(ed25519.PublicKey))
	if err != nil {
		return fmt.Errorf("envelope: build: derive keyid: %w", err)
	}
	sig := hash.Sign(key, pae.EncodeAttestation(attCanonical))

	env := &envelopedoc.SignatureEnvelope{
		SchemaVersion: "1.0",
		PayloadType:   pae.PayloadType,
		Payload:       base64.RawURLEncoding.EncodeToString(attCanonical),
		Signatures: []envelopedoc.Signature{
			{KeyID: keyID, Sig: base64.RawURLEncoding.EncodeToString(sig)},
		},
	}
	envCanonical, err := canonical.Marshal(env)
	if err != nil {
		return fmt.Errorf("envelope: build: canonicalize signature envelope: %w", err)
	}

	vaultPath := filepath.Join(root, VaultDir)
	if err := os.MkdirAll(vaultPath, 0o755); err != nil {
		return fmt.Errorf("envelope: build: create vault directory: %w", err)
	}

	writes := []struct {
		name string
		data []byte
	}{
		{fileIntegrity, manifestCanonical},
		{filePermissions, permsCanonical},
		{fileAttestation, attCanonical},
		{fileSignature, envCanonical},
	}
	for _, w := range writes {
		if err := writeFileAtomic(filepath.Join(vaultPath, w.name), w.data); err != nil {
			return fmt.Errorf("envelope: build: write %s: %w", w.name, err)
		}
	}
	return nil
}

// CoSign appends an additional signature to an existing, already-valid
// envelope. The caller must supply a keyring sufficient to verify the
// existing envelope, and the new signer's keyid must not already be
// present.
func (b *Builder) CoSign(root string, kr keyring.Keyring, key ed25519.PrivateKey) error {
	err := b.coSign(root, kr, key)
	log := b.logger().WithComponent("envelope").WithOperation("cosign").WithFields(logging.Field{"skill_root", root})
	if err != nil {
		log.WithError(err).Error("cosign failed")
	} else {
		log.Info("cosign succeeded")
	}
	return err
}

func (b *Builder) coSign(root string, kr keyring.Keyring, key ed25519.PrivateKey) error {
	vaultPath := filepath.Join(root, VaultDir)
	sigPath := filepath.Join(vaultPath, fileSignature)
	sigRaw, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("envelope: cosign: read signature.json: %w", err)
	}
	var env envelopedoc.SignatureEnvelope
	if err := unmarshalStrictJSON(sigRaw, &env); err != nil {
		return fmt.Errorf("envelope: cosign: parse signature.json: %w", err)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(env.Payload)
	if err != nil {
		return fmt.Errorf("envelope: cosign: decode payload: %w", err)
	}

	newKeyID, err := hash.KeyID(key.Public().(ed25519.PublicKey))
	if err != nil {
		return fmt.Errorf("envelope: cosign: derive keyid: %w", err)
	}
	for _, sig := range env.Signatures {
		if sig.KeyID == newKeyID {
			return fmt.Errorf("envelope: cosign: keyid %s already present", newKeyID)
		}
	}

	// At least one existing signature must verify under the supplied
	// keyring before a co-signature is appended, otherwise an attacker
	// could co-sign a forged envelope and have it appear multi-signed.
	if _, _, verr := selectVerifyingSignature(&env, kr); verr != nil {
		return fmt.Errorf("envelope: cosign: existing envelope does not verify: %s", verr.Error())
	}

	newSig := hash.Sign(key, pae.Encode(env.PayloadType, payloadBytes))
	env.Signatures = append(env.Signatures, envelopedoc.Signature{
		KeyID: newKeyID,
		Sig:   base64.RawURLEncoding.EncodeToString(newSig),
	})

	envCanonical, err := canonical.Marshal(&env)
	if err != nil {
		return fmt.Errorf("envelope: cosign: canonicalize signature envelope: %w", err)
	}
	return writeFileAtomic(sigPath, envCanonical)
}

// unmarshalStrictJSON decodes raw into v, rejecting unknown fields.
func unmarshalStrictJSON(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeFileAtomic writes data to path via a temp-file-then-rename so a
// verifier never observes a partially-written artifact.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
