// Package firestorecache implements pkg/cache.SequenceCache on top of
// Google Cloud Firestore, for deployments that already run the rest of
// their stack on Firestore rather than Postgres.
package firestorecache

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionName = "skillvault_revocation_sequences"

type sequenceDoc struct {
	SequenceNumber int64 `firestore:"sequence_number"`
}

// Cache stores revocation sequence numbers as Firestore documents keyed
// by skill name.
type Cache struct {
	client *firestore.Client
}

// New wraps an already-constructed Firestore client. The client's
// lifecycle (and its GCP project/credentials) is owned by the caller.
func New(client *firestore.Client) *Cache {
	return &Cache{client: client}
}

// Get implements cache.SequenceCache.
func (c *Cache) Get(ctx context.Context, skillName string) (uint64, bool, error) {
	snap, err := c.client.Collection(collectionName).Doc(skillName).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("firestorecache: get: %w", err)
	}
	var doc sequenceDoc
	if err := snap.DataTo(&doc); err != nil {
		return 0, false, fmt.Errorf("firestorecache: decode: %w", err)
	}
	return uint64(doc.SequenceNumber), true, nil
}

// Set implements cache.SequenceCache.
func (c *Cache) Set(ctx context.Context, skillName string, seq uint64) error {
	_, err := c.client.Collection(collectionName).Doc(skillName).Set(ctx, sequenceDoc{SequenceNumber: int64(seq)})
	if err != nil {
		return fmt.Errorf("firestorecache: set: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	// Firestore's not-found errors surface as grpc status codes.
	return status.Code(err) == codes.NotFound
}
