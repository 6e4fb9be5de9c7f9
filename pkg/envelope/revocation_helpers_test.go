package envelope

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/certen/skillvault/pkg/revocation"
)

func mustIssueList(t *testing.T, priv ed25519.PrivateKey, seq uint64, entries []revocationEntry) *revocation.List {
	t.Helper()
	revEntries := make([]revocation.Entry, 0, len(entries))
	now := time.Now().UTC()
	for _, e := range entries {
		revEntries = append(revEntries, revocation.Entry{
			Name:      e.name,
			Versions:  e.versions,
			RevokedAt: now,
			Reason:    "test",
			Severity:  e.severity,
		})
	}
	list, err := revocation.Issue(seq, revEntries, now, now.Add(24*time.Hour), now.Add(12*time.Hour), priv)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return list
}
