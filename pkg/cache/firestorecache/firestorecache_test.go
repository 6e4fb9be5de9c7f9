package firestorecache

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
)

// TestFirestoreRoundTrip only runs against a real Firestore project when
// SKILLVAULT_TEST_FIRESTORE_PROJECT is set, matching the repo's convention
// of skipping integration tests that require external infrastructure.
func TestFirestoreRoundTrip(t *testing.T) {
	project := os.Getenv("SKILLVAULT_TEST_FIRESTORE_PROJECT")
	if project == "" {
		t.Skip("SKILLVAULT_TEST_FIRESTORE_PROJECT not set; skipping Firestore integration test")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	defer client.Close()

	c := New(client)
	if err := c.Set(ctx, "firestorecache-test-skill", 9); err != nil {
		t.Fatalf("Set: %v", err)
	}
	seq, ok, err := c.Get(ctx, "firestorecache-test-skill")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || seq != 9 {
		t.Fatalf("got (%d, %v), want (9, true)", seq, ok)
	}
}

func TestIsNotFoundOnMissingDocument(t *testing.T) {
	project := os.Getenv("SKILLVAULT_TEST_FIRESTORE_PROJECT")
	if project == "" {
		t.Skip("SKILLVAULT_TEST_FIRESTORE_PROJECT not set; skipping Firestore integration test")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	defer client.Close()

	c := New(client)
	_, ok, err := c.Get(ctx, "does-not-exist-skill")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing document")
	}
}
