package memcache

import (
	"context"
	"testing"
)

func TestGetMissingReturnsNotOK(t *testing.T) {
	c := New()
	_, ok, err := c.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing entry")
	}
}

func TestSetThenGet(t *testing.T) {
	c := New()
	ctx := context.Background()
	if err := c.Set(ctx, "e2e-skill", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}
	seq, ok, err := c.Get(ctx, "e2e-skill")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || seq != 3 {
		t.Fatalf("got (%d, %v), want (3, true)", seq, ok)
	}
}
