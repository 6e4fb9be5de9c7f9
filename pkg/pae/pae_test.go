package pae

import (
	"bytes"
	"testing"
)

func TestEncodeKnownVector(t *testing.T) {
	got := Encode("application/vnd.in-toto+json", []byte(`{"foo":"bar"}`))
	want := []byte("DSSEv1 28 application/vnd.in-toto+json 13 {\"foo\":\"bar\"}")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeAttestationUsesFixedPayloadType(t *testing.T) {
	payload := []byte(`{"x":1}`)
	got := EncodeAttestation(payload)
	want := Encode(PayloadType, payload)
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeAttestation mismatch")
	}
	if PayloadType != "application/vnd.haldir.attestation+json" {
		t.Fatalf("payload type constant changed: %s", PayloadType)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	got := Encode("text/plain", nil)
	want := []byte("DSSEv1 10 text/plain 0 ")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	payloadType := "application/vnd.haldir.attestation+json"
	payload := []byte(`{"a":1,"b":[1,2,3]}`)
	enc := Encode(payloadType, payload)

	gotType, gotPayload, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotType != payloadType {
		t.Fatalf("got type %q, want %q", gotType, payloadType)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("got payload %q, want %q", gotPayload, payload)
	}
}

func TestDecodeRejectsBadPrefix(t *testing.T) {
	_, _, err := Decode([]byte("nope"))
	if err == nil {
		t.Fatal("expected error for missing DSSEv1 prefix")
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	_, _, err := Decode([]byte("DSSEv1 4 text 99 short"))
	if err == nil {
		t.Fatal("expected error for payload length mismatch")
	}
}

func TestDistinctPayloadTypesProduceDistinctEncodings(t *testing.T) {
	payload := []byte(`{"same":"payload"}`)
	a := Encode("type/a", payload)
	b := Encode("type/b", payload)
	if bytes.Equal(a, b) {
		t.Fatal("expected different PAE bytes for different payload types over identical payload bytes")
	}
}
