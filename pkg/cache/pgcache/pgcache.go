// Package pgcache implements pkg/cache.SequenceCache on top of a Postgres
// table, using database/sql with the lib/pq driver for durable,
// multi-process sequence-number tracking.
package pgcache

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Cache stores revocation sequence numbers in a Postgres table.
type Cache struct {
	db *sql.DB
}

// Open connects to the Postgres instance at dsn and returns a Cache backed
// by it. Callers must have already created the backing table; see Schema.
func Open(dsn string) (*Cache, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgcache: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgcache: ping: %w", err)
	}
	return &Cache{db: db}, nil
}

// Schema is the DDL a deployment must apply before using pgcache.Cache.
const Schema = `
CREATE TABLE IF NOT EXISTS skillvault_revocation_sequences (
    skill_name TEXT PRIMARY KEY,
    sequence_number BIGINT NOT NULL
)`

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get implements cache.SequenceCache.
func (c *Cache) Get(ctx context.Context, skillName string) (uint64, bool, error) {
	var seq int64
	err := c.db.QueryRowContext(ctx,
		`SELECT sequence_number FROM skillvault_revocation_sequences WHERE skill_name = $1`,
		skillName,
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("pgcache: get: %w", err)
	}
	return uint64(seq), true, nil
}

// Set implements cache.SequenceCache, upserting the row for skillName.
func (c *Cache) Set(ctx context.Context, skillName string, seq uint64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO skillvault_revocation_sequences (skill_name, sequence_number)
		 VALUES ($1, $2)
		 ON CONFLICT (skill_name) DO UPDATE SET sequence_number = EXCLUDED.sequence_number`,
		skillName, int64(seq),
	)
	if err != nil {
		return fmt.Errorf("pgcache: set: %w", err)
	}
	return nil
}
