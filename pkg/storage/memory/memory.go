// Package memory provides in-process storage backends.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
)

// StateRepository keeps the last saved state in memory.
type StateRepository struct {
	mu    sync.Mutex
	state bom.State
	// FailSave, when non-nil, is returned by Save instead of storing.
	FailSave error
}

// NewStateRepository returns an empty repository.
func NewStateRepository() *StateRepository { return &StateRepository{} }

// Load returns a copy of the saved state.
func (r *StateRepository) Load(context.Context) (bom.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone(), nil
}

// Save replaces the saved state.
func (r *StateRepository) Save(_ context.Context, s bom.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	r.state = s.Clone()
	return nil
}

// Close does nothing.
func (r *StateRepository) Close() error { return nil }

// SnapshotRepository keeps snapshots in a map.
type SnapshotRepository struct {
	mu    sync.RWMutex
	snaps map[string]*bom.Snapshot
}

// NewSnapshotRepository returns an empty repository.
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snaps: make(map[string]*bom.Snapshot)}
}

// Save stores a copy of snap.
func (r *SnapshotRepository) Save(_ context.Context, snap *bom.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snaps[snap.ID]; ok {
		return errors.New(errors.ErrCodeConflict, "Snapshot '%s' already exists", snap.ID)
	}
	r.snaps[snap.ID] = snap.Clone()
	return nil
}

// Get returns a copy of the snapshot.
func (r *SnapshotRepository) Get(_ context.Context, id string) (*bom.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snaps[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "Snapshot '%s' not found", id)
	}
	return s.Clone(), nil
}

// List returns copies ordered by (created_at, id).
func (r *SnapshotRepository) List(_ context.Context, root string) ([]*bom.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*bom.Snapshot
	for _, s := range slices.Collect(maps.Values(r.snaps)) {
		if root == "" || s.RootPartNumber == root {
			out = append(out, s.Clone())
		}
	}
	slices.SortFunc(out, bom.CompareSnapshots)
	return out, nil
}

// FindBySignature returns the oldest matching snapshot or nil.
func (r *SnapshotRepository) FindBySignature(ctx context.Context, root, signature string) (*bom.Snapshot, error) {
	list, _ := r.List(ctx, root)
	for _, s := range list {
		if s.Signature == signature {
			return s, nil
		}
	}
	return nil, nil
}

// Close does nothing.
func (r *SnapshotRepository) Close() error { return nil }

var (
	_ storage.StateRepository    = (*StateRepository)(nil)
	_ storage.SnapshotRepository = (*SnapshotRepository)(nil)
)
