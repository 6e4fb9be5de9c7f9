package attestation

import "testing"

func TestValidateCriticalAcceptsEmpty(t *testing.T) {
	if err := ValidateCritical(nil); err != nil {
		t.Fatalf("expected nil critical to validate, got %v", err)
	}
	if err := ValidateCritical([]string{}); err != nil {
		t.Fatalf("expected empty critical to validate, got %v", err)
	}
}

func TestValidateCriticalRejectsAnyEntry(t *testing.T) {
	if err := ValidateCritical([]string{"permissions.network"}); err == nil {
		t.Fatal("expected any non-empty _critical entry to be rejected: the allow-list is empty")
	}
}

func TestIsSupportedSchemaVersion(t *testing.T) {
	if !IsSupportedSchemaVersion("1.0") {
		t.Fatal("expected 1.0 to be supported")
	}
	if IsSupportedSchemaVersion("2.0") {
		t.Fatal("expected 2.0 to be unsupported")
	}
}
