// Package redisstore adapts a Redis key-value namespace to the
// persistence.Store interface, for deployments that want fast periodic
// snapshotting without standing up a relational database.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nchat/trustplane/internal/persistence"
)

// Store persists snapshots as Redis string values under a key prefix.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps an existing *redis.Client. keyPrefix namespaces snapshot keys
// (e.g. "trustplane:snapshot:") so multiple deployments can share a Redis
// instance.
func New(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) key(namespace string) string {
	return s.prefix + namespace
}

// SaveSnapshot writes data to the namespace's key with no expiry —
// snapshots persist until explicitly overwritten.
func (s *Store) SaveSnapshot(ctx context.Context, namespace string, data []byte) error {
	if err := s.client.Set(ctx, s.key(namespace), data, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: save %s: %w", namespace, err)
	}
	return nil
}

// LoadSnapshot returns persistence.ErrNotFound if the key was never set.
func (s *Store) LoadSnapshot(ctx context.Context, namespace string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(namespace)).Bytes()
	if err == redis.Nil {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: load %s: %w", namespace, err)
	}
	return data, nil
}
