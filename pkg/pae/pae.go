// Package pae implements the DSSE Pre-Authentication Encoding used to bind
// a payload type and payload body into the exact byte sequence that gets
// signed, preventing cross-protocol confusion attacks where a signature
// valid for one payload type is replayed against another.
package pae

import (
	"fmt"
	"strconv"
)

// PayloadType is the fixed content type bound into every skillvault
// attestation's PAE envelope. It is a wire-format constant and must never
// change with the implementation's module name.
const PayloadType = "application/vnd.haldir.attestation+json"

// Encode produces the DSSE PAE encoding:
//
//	"DSSEv1" SP LEN(payloadType) SP payloadType SP LEN(payload) SP payload
//
// where LEN is the decimal ASCII length in bytes and SP is a single space.
func Encode(payloadType string, payload []byte) []byte {
	out := make([]byte, 0, len(payloadType)+len(payload)+32)
	out = append(out, "DSSEv1"...)
	out = append(out, ' ')
	out = append(out, strconv.Itoa(len(payloadType))...)
	out = append(out, ' ')
	out = append(out, payloadType...)
	out = append(out, ' ')
	out = append(out, strconv.Itoa(len(payload))...)
	out = append(out, ' ')
	out = append(out, payload...)
	return out
}

// EncodeAttestation is a convenience wrapper that encodes payload under
// the fixed PayloadType constant.
func EncodeAttestation(payload []byte) []byte {
	return Encode(PayloadType, payload)
}

// Decode reverses Encode, returning the payloadType and payload it was
// constructed from. It is used only by test tooling and diagnostics — the
// signing and verification paths construct/consume PAE bytes directly and
// never need to parse them back apart.
func Decode(b []byte) (payloadType string, payload []byte, err error) {
	const prefix = "DSSEv1 "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return "", nil, fmt.Errorf("pae: missing DSSEv1 prefix")
	}
	rest := b[len(prefix):]

	typeLen, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return "", nil, fmt.Errorf("pae: type length: %w", err)
	}
	if len(rest) < typeLen {
		return "", nil, fmt.Errorf("pae: truncated payload type")
	}
	payloadType = string(rest[:typeLen])
	rest = rest[typeLen:]
	if len(rest) < 1 || rest[0] != ' ' {
		return "", nil, fmt.Errorf("pae: missing separator after payload type")
	}
	rest = rest[1:]

	payloadLen, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return "", nil, fmt.Errorf("pae: payload length: %w", err)
	}
	if len(rest) != payloadLen {
		return "", nil, fmt.Errorf("pae: payload length mismatch: header says %d, got %d", payloadLen, len(rest))
	}
	return payloadType, rest, nil
}

// readLengthPrefixed reads a decimal length token followed by a single
// space, returning the parsed length and the remaining bytes.
func readLengthPrefixed(b []byte) (int, []byte, error) {
	i := 0
	for i < len(b) && b[i] != ' ' {
		i++
	}
	if i == 0 || i >= len(b) {
		return 0, nil, fmt.Errorf("missing length token")
	}
	n, err := strconv.Atoi(string(b[:i]))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid length token %q: %w", b[:i], err)
	}
	if n < 0 {
		return 0, nil, fmt.Errorf("negative length %d", n)
	}
	return n, b[i+1:], nil
}
