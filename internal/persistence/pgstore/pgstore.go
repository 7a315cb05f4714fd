// Package pgstore adapts a Postgres table to the persistence.Store
// interface for deployments that want durable, queryable snapshots
// rather than Redis's in-memory-first semantics.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/nchat/trustplane/internal/persistence"
)

// Store persists snapshots as rows in a single table
// (namespace TEXT PRIMARY KEY, data BYTEA, updated_at TIMESTAMPTZ).
type Store struct {
	db    *sql.DB
	table string
}

// New wraps an existing *sql.DB. table must already exist — migrations
// are the host's responsibility, matching the spec's persistence
// non-goal.
func New(db *sql.DB, table string) *Store {
	return &Store{db: db, table: table}
}

func (s *Store) SaveSnapshot(ctx context.Context, namespace string, data []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (namespace) DO UPDATE SET data = $2, updated_at = now()`, s.table)
	if _, err := s.db.ExecContext(ctx, query, namespace, data); err != nil {
		return fmt.Errorf("pgstore: save %s: %w", namespace, err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context, namespace string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE namespace = $1`, s.table)
	var data []byte
	err := s.db.QueryRowContext(ctx, query, namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: load %s: %w", namespace, err)
	}
	return data, nil
}
