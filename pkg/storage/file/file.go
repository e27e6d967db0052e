// Package file stores BOM state and snapshots as JSON files.
//
// State lives in a single bom.json; each snapshot is its own
// <snapshot_id>.json under a snapshots directory. Every write goes through
// [storage.WriteFileAtomic], so a crash leaves either the old or the new
// file in place.
package file

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
)

// StateFileName is the state file name inside a data directory.
const StateFileName = "bom.json"

// StateRepository reads and writes one JSON state file.
type StateRepository struct {
	path string
	mu   sync.Mutex
}

// NewStateRepository stores state at path.
func NewStateRepository(path string) *StateRepository {
	return &StateRepository{path: path}
}

// Path returns the state file path.
func (r *StateRepository) Path() string { return r.path }

// Load reads the state file. A missing file is an empty state.
func (r *StateRepository) Load(context.Context) (bom.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return bom.State{}, nil
	}
	if err != nil {
		return bom.State{}, errors.Wrap(errors.ErrCodeInternal, err, "read %s", r.path)
	}
	var s bom.State
	if err := json.Unmarshal(data, &s); err != nil {
		return bom.State{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s", r.path)
	}
	return s, nil
}

// Save atomically replaces the state file.
func (r *StateRepository) Save(_ context.Context, s bom.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := storage.WriteJSONAtomic(r.path, s); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", r.path)
	}
	return nil
}

// Close does nothing.
func (r *StateRepository) Close() error { return nil }

// SnapshotRepository stores one JSON file per snapshot.
type SnapshotRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewSnapshotRepository stores snapshots under dir, creating it if needed.
func NewSnapshotRepository(dir string) (*SnapshotRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create %s", dir)
	}
	return &SnapshotRepository{dir: dir}, nil
}

func (r *SnapshotRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// Save writes a new snapshot file. Existing ids are never overwritten.
func (r *SnapshotRepository) Save(_ context.Context, snap *bom.Snapshot) error {
	if err := errors.ValidateSnapshotID(snap.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path(snap.ID)
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrCodeConflict, "Snapshot '%s' already exists", snap.ID)
	}
	if err := storage.WriteJSONAtomic(path, snap); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write snapshot %s", snap.ID)
	}
	return nil
}

// Get reads one snapshot file.
func (r *SnapshotRepository) Get(_ context.Context, id string) (*bom.Snapshot, error) {
	if err := errors.CheckSnapshotLookup(id); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read(r.path(id), id)
}

func (r *SnapshotRepository) read(path, id string) (*bom.Snapshot, error) {
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.New(errors.ErrCodeNotFound, "Snapshot '%s' not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read snapshot %s", id)
	}
	var s bom.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse snapshot %s", id)
	}
	return &s, nil
}

// List reads every snapshot file and filters by root.
func (r *SnapshotRepository) List(_ context.Context, root string) ([]*bom.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list %s", r.dir)
	}
	var out []*bom.Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		s, err := r.read(filepath.Join(r.dir, name), strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if root == "" || s.RootPartNumber == root {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, bom.CompareSnapshots)
	return out, nil
}

// FindBySignature scans the snapshots of root for a matching signature.
func (r *SnapshotRepository) FindBySignature(ctx context.Context, root, signature string) (*bom.Snapshot, error) {
	list, err := r.List(ctx, root)
	if err != nil {
		return nil, err
	}
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
