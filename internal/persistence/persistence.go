// Package persistence provides host-side snapshot storage for the
// trust-plane's in-memory stores. The core itself is non-durable by
// design (spec Non-goals) — every subsystem exposes a JSON-serializable
// export/import pair, and a Store here only needs to hold and return an
// opaque named blob. Two adapters are provided: redisstore (fast,
// ephemeral) and pgstore (durable, queryable).
package persistence

import "context"

// Store persists and retrieves one named snapshot blob per subsystem
// (e.g. "apps", "tokens", "rate_limits", "privacy"). It has no knowledge
// of what the bytes mean — that's the exporting subsystem's job.
type Store interface {
	SaveSnapshot(ctx context.Context, namespace string, data []byte) error
	LoadSnapshot(ctx context.Context, namespace string) ([]byte, error)
}

// Exporter is implemented by any core subsystem that can serialize its
// current state to bytes and restore from the same representation.
type Exporter interface {
	Export() ([]byte, error)
	Import([]byte) error
}

// SyncOut exports every named subsystem and writes each snapshot to store.
func SyncOut(ctx context.Context, store Store, subsystems map[string]Exporter) error {
	for name, ex := range subsystems {
		data, err := ex.Export()
		if err != nil {
			return err
		}
		if err := store.SaveSnapshot(ctx, name, data); err != nil {
			return err
		}
	}
	return nil
}

// SyncIn loads every named subsystem's snapshot from store and restores it.
// A missing snapshot (ErrNotFound) leaves that subsystem untouched rather
// than failing the whole restore, since a fresh deployment has nothing to
// load yet.
func SyncIn(ctx context.Context, store Store, subsystems map[string]Exporter) error {
	for name, ex := range subsystems {
		data, err := store.LoadSnapshot(ctx, name)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if err := ex.Import(data); err != nil {
			return err
		}
	}
	return nil
}
