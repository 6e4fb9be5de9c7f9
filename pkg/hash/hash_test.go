package hash

import (
	"crypto/ed25519"
	"testing"
)

func TestSumAndEqual(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	c := Sum([]byte("world"))

	if !a.Equal(b) {
		t.Fatalf("expected equal digests, got %s and %s", a, b)
	}
	if a.Equal(c) {
		t.Fatalf("expected unequal digests, got equal %s and %s", a, c)
	}
	if a.Algorithm() != "sha256" {
		t.Fatalf("got algorithm %q, want sha256", a.Algorithm())
	}
}

func TestDigestEqualRejectsMismatchedAlgorithm(t *testing.T) {
	a := Digest("sha256:" + Sum([]byte("x")).Hex())
	b := Digest("sha512:" + Sum([]byte("x")).Hex())
	if a.Equal(b) {
		t.Fatal("digests with different algorithms must never be equal")
	}
}

func TestKeyIDDeterministic(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	id1, err := KeyID(pub)
	if err != nil {
		t.Fatalf("KeyID: %v", err)
	}
	id2, err := KeyID(pub)
	if err != nil {
		t.Fatalf("KeyID: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("KeyID not deterministic: %s != %s", id1, id2)
	}
	if len(id1) != 32 {
		t.Fatalf("expected 32 hex chars (16 bytes), got %d", len(id1))
	}
}

func TestKeyIDDiffersPerKey(t *testing.T) {
	pub1, _, _ := ed25519.GenerateKey(nil)
	pub2, _, _ := ed25519.GenerateKey(nil)
	id1, _ := KeyID(pub1)
	id2, _ := KeyID(pub2)
	if id1 == id2 {
		t.Fatal("expected different KeyIDs for different public keys")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	msg := []byte("the message")
	sig := Sign(priv, msg)
	if !Verify(pub, msg, sig) {
		t.Fatal("expected signature to verify")
	}
	if Verify(pub, []byte("tampered"), sig) {
		t.Fatal("expected signature to fail over tampered message")
	}
}

func TestVerifyRejectsBadKeySize(t *testing.T) {
	if Verify(ed25519.PublicKey{1, 2, 3}, []byte("x"), []byte("y")) {
		t.Fatal("expected Verify to reject malformed public key")
	}
}
