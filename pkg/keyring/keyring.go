// Package keyring loads and holds the caller-supplied trusted public keys
// a verifier checks signatures against. The engine never maintains its own
// PKI; it only consumes keys the caller already trusts.
package keyring

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/certen/skillvault/pkg/hash"
	"gopkg.in/yaml.v3"
)

// Keyring maps a derived KeyID to the trusted Ed25519 public key it
// identifies.
type Keyring struct {
	keys map[string]ed25519.PublicKey
}

// New returns an empty Keyring.
func New() Keyring {
	return Keyring{keys: make(map[string]ed25519.PublicKey)}
}

// Add registers pub under its derived KeyID and returns that ID.
func (k Keyring) Add(pub ed25519.PublicKey) (string, error) {
	id, err := hash.KeyID(pub)
	if err != nil {
		return "", fmt.Errorf("keyring: derive keyid: %w", err)
	}
	k.keys[id] = pub
	return id, nil
}

// Lookup returns the public key registered under keyID, if any.
func (k Keyring) Lookup(keyID string) (ed25519.PublicKey, bool) {
	pub, ok := k.keys[keyID]
	return pub, ok
}

// Len reports the number of keys in the keyring.
func (k Keyring) Len() int {
	return len(k.keys)
}

// entryFile is the on-disk YAML shape a keyring file is loaded from: a
// list of PEM-encoded SPKI public keys.
type entryFile struct {
	Keys []string `yaml:"keys"`
}

// LoadFile reads a YAML keyring file containing a list of PEM-encoded
// Ed25519 public keys and returns a populated Keyring.
func LoadFile(path string) (Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keyring{}, fmt.Errorf("keyring: read %s: %w", path, err)
	}

	var ef entryFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return Keyring{}, fmt.Errorf("keyring: parse %s: %w", path, err)
	}

	kr := New()
	for i, pemStr := range ef.Keys {
		pub, err := parsePEMPublicKey([]byte(pemStr))
		if err != nil {
			return Keyring{}, fmt.Errorf("keyring: entry %d: %w", i, err)
		}
		if _, err := kr.Add(pub); err != nil {
			return Keyring{}, err
		}
	}
	return kr, nil
}

// parsePEMPublicKey decodes a PEM block containing an SPKI-encoded
// Ed25519 public key.
func parsePEMPublicKey(data []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse SPKI DER: %w", err)
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not Ed25519")
	}
	return edPub, nil
}
