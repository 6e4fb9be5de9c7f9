// Package memcache implements pkg/cache.SequenceCache in-process, for
// tests and single-process CLI invocations that do not need durable
// storage across runs.
package memcache

import (
	"context"
	"sync"
)

// Cache is an in-memory, mutex-protected SequenceCache.
type Cache struct {
	mu   sync.Mutex
	seqs map[string]uint64
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{seqs: make(map[string]uint64)}
}

// Get implements cache.SequenceCache.
func (c *Cache) Get(ctx context.Context, skillName string) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq, ok := c.seqs[skillName]
	return seq, ok, nil
}

// Set implements cache.SequenceCache.
func (c *Cache) Set(ctx context.Context, skillName string, seq uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqs[skillName] = seq
	return nil
}
