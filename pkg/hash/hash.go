// Package hash provides the content-hashing and key-identity primitives
// shared by the integrity manifest, attestation, and envelope layers:
// SHA-256 digests in the "sha256:<hex>" wire form, and Ed25519 key
// identifiers derived from the SPKI DER encoding of the public key.
package hash

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest is a content hash in its canonical wire representation,
// "sha256:" followed by lowercase hex.
type Digest string

// Sum computes the SHA-256 digest of b and returns it in wire form.
func Sum(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest("sha256:" + hex.EncodeToString(sum[:]))
}

// Algorithm returns the algorithm prefix of the digest, e.g. "sha256".
func (d Digest) Algorithm() string {
	i := strings.IndexByte(string(d), ':')
	if i < 0 {
		return ""
	}
	return string(d)[:i]
}

// Hex returns the hex-encoded digest bytes without the algorithm prefix.
func (d Digest) Hex() string {
	i := strings.IndexByte(string(d), ':')
	if i < 0 {
		return string(d)
	}
	return string(d)[i+1:]
}

// Bytes decodes the hex portion of the digest into raw bytes.
func (d Digest) Bytes() ([]byte, error) {
	return hex.DecodeString(d.Hex())
}

// Equal reports whether d and other represent the same digest, comparing
// the decoded raw bytes in constant time. Digests with different or
// unparseable algorithm prefixes are never equal.
func (d Digest) Equal(other Digest) bool {
	if d.Algorithm() != other.Algorithm() || d.Algorithm() == "" {
		return false
	}
	a, err := d.Bytes()
	if err != nil {
		return false
	}
	b, err := other.Bytes()
	if err != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return string(d)
}

// KeyID derives a stable, short identifier for an Ed25519 public key: the
// SHA-256 hash of the key's SPKI DER encoding, truncated to its first 16
// bytes and hex-encoded. Truncation is acceptable because the KeyID is a
// lookup hint into a keyring, not a security boundary — the signature
// itself is what the verifier trusts.
func KeyID(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("hash: marshal SPKI DER: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:16]), nil
}

// Sign produces an Ed25519 signature over msg using priv.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid Ed25519 signature over msg under
// pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
