// Package storage defines the persistence contracts for BOM state and
// snapshots, plus helpers shared by the backends in its subpackages.
//
// Backends:
//   - file: one bom.json and one JSON file per snapshot, replaced atomically
//   - sqlite: a single database file (modernc.org/sqlite, no cgo)
//   - mongo: snapshot collection in MongoDB
//   - memory: in-process maps for tests and ephemeral use
package storage

import (
	"context"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
)

// StateRepository loads and saves the whole part catalog and relationship
// set. Save must be atomic: after a crash the stored state is either the
// old or the new one, never a mixture.
type StateRepository interface {
	Load(ctx context.Context) (bom.State, error)
	Save(ctx context.Context, state bom.State) error
	Close() error
}

// SnapshotRepository stores immutable snapshots keyed by id.
type SnapshotRepository interface {
	// Save persists a new snapshot. It fails with CONFLICT if the id exists;
	// snapshots are never overwritten.
	Save(ctx context.Context, snap *bom.Snapshot) error
	// Get returns the snapshot or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*bom.Snapshot, error)
	// List returns snapshots for root (all roots when empty), ordered by
	// (created_at, id).
	List(ctx context.Context, root string) ([]*bom.Snapshot, error)
	// FindBySignature returns the oldest snapshot of root with the given
	// signature, or nil if there is none.
	FindBySignature(ctx context.Context, root, signature string) (*bom.Snapshot, error)
	Close() error
}
