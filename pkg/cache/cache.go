// Package cache defines the SequenceCache interface callers use to
// persist the last-seen revocation-list sequence number per skill, the
// only piece of mutable state the trust engine relies on (and which it
// never holds itself — see the concurrency model's ownership rule).
package cache

import "context"

// SequenceCache stores the highest revocation-list sequence number a
// caller has accepted for a given skill name, for rollback detection on
// the next verification.
type SequenceCache interface {
	// Get returns the cached sequence number for skillName, or ok=false
	// if none has been recorded yet.
	Get(ctx context.Context, skillName string) (seq uint64, ok bool, err error)
	// Set records seq as the new cached sequence number for skillName.
	// The memcache, pgcache and firestorecache implementations overwrite
	// the stored value unconditionally and do not reject a lower seq.
	Set(ctx context.Context, skillName string, seq uint64) error
}
