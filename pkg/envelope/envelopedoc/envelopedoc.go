// Package envelopedoc defines the plain data shape of signature.json, the
// DSSE-1 signature envelope. It holds no verification logic so that both
// pkg/schema and pkg/envelope can depend on it without an import cycle.
package envelopedoc

// SupportedSchemaVersions is the static allow-list of envelope schema
// versions this implementation recognizes.
var SupportedSchemaVersions = []string{"1.0"}

// Signature is one entry in a DSSE-1 envelope's signatures array.
type Signature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"` // base64url, unpadded
}

// SignatureEnvelope is the DSSE-1 envelope: a base64url-encoded canonical
// payload plus one or more signatures over its PAE encoding.
type SignatureEnvelope struct {
	SchemaVersion string      `json:"schema_version"`
	PayloadType   string      `json:"payloadType"`
	Payload       string      `json:"payload"` // base64url, unpadded
	Signatures    []Signature `json:"signatures"`
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
