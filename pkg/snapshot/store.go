// Package snapshot captures immutable, content-addressed copies of the BOM
// subgraph under a root part.
//
// A capture is serialized into a canonical byte form (see [Canonical]) and
// hashed; the digest is the snapshot's signature. Two captures of the same
// content under the same root have equal signatures regardless of the order
// in which parts and relationships were inserted, which is what makes
// deduplication and quick equality checks possible.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/observability"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// Source is the graph view a capture reads.
type Source interface {
	traverse.Source
	// HasNode reports whether id is a catalog part or an edge endpoint.
	HasNode(id string) bool
}

// Capture is a frozen, signed copy of a subgraph that has not been
// persisted yet.
type Capture struct {
	Snapshot *bom.Snapshot
	Warnings []string
}

// CreateResult is the outcome of [Store.Save].
type CreateResult struct {
	Snapshot     *bom.Snapshot `json:"snapshot"`
	Deduplicated bool          `json:"deduplicated"`
}

// Store persists snapshots through a [storage.SnapshotRepository].
// The dedupe lookup and the save run under one mutex so two concurrent
// identical captures cannot both be stored.
type Store struct {
	repo storage.SnapshotRepository
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore returns a store backed by repo.
func NewStore(repo storage.SnapshotRepository) *Store {
	return &Store{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the creation timestamp source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Capture copies the subgraph under root and computes its signature.
// It only reads src; callers hold the graph's shared lock around it.
// A root that is neither a part nor an edge endpoint is NOT_FOUND.
func (s *Store) Capture(src Source, root, label string) (*Capture, error) {
	root = strings.TrimSpace(root)
	if err := errors.ValidatePartNumber("root_part_number", root); err != nil {
		return nil, err
	}
	if !src.HasNode(root) {
		return nil, errors.New(errors.ErrCodeNotFound, "Part '%s' not found", root)
	}

	sub := traverse.Subgraph(src, root)
	sig, err := Signature(root, sub.Parts, sub.Relationships)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "compute signature")
	}

	parts, rels := sub.Parts, sub.Relationships
	bom.SortParts(parts)
	bom.SortRelationships(rels)
	snap := &bom.Snapshot{
		RootPartNumber: root,
		Label:          strings.TrimSpace(label),
		Signature:      sig,
		Parts:          parts,
		Relationships:  rels,
	}
	c := &Capture{Snapshot: snap}
	if len(sub.Missing) > 0 {
		c.Warnings = append(c.Warnings, "Missing parts in catalog: "+strings.Join(sub.Missing, ", "))
	}
	return c, nil
}

// Save persists a captured snapshot. With dedupe set, an existing snapshot
// of the same root and signature is returned instead and Deduplicated is
// true.
func (s *Store) Save(ctx context.Context, c *Capture, dedupe bool) (*CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := c.Snapshot
	if dedupe {
		existing, err := s.repo.FindBySignature(ctx, snap.RootPartNumber, snap.Signature)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "look up snapshot signature")
		}
		if existing != nil {
			observability.Snapshot().OnSnapshotCreated(ctx, snap.RootPartNumber, true, len(existing.Parts), len(existing.Relationships))
			return &CreateResult{Snapshot: existing, Deduplicated: true}, nil
		}
	}

	stored := *snap
	stored.CreatedAt = s.now()
	stored.ID = NewID(stored.CreatedAt)
	if err := s.repo.Save(ctx, &stored); err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "save snapshot")
	}
	observability.Snapshot().OnSnapshotCreated(ctx, stored.RootPartNumber, false, len(stored.Parts), len(stored.Relationships))
	return &CreateResult{Snapshot: &stored}, nil
}

// Get returns a snapshot by id.
func (s *Store) Get(ctx context.Context, id string) (*bom.Snapshot, error) {
	id = strings.TrimSpace(id)
	if err := errors.CheckSnapshotLookup(id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// List returns the snapshots of root (all roots when empty) ordered by
// (created_at, id).
func (s *Store) List(ctx context.Context, root string) ([]*bom.Snapshot, error) {
	return s.repo.List(ctx, strings.TrimSpace(root))
}

// NewID allocates a snapshot id of the form snap_<yyyymmdd>_<hhmmss>_<8 hex>.
func NewID(t time.Time) string {
	return fmt.Sprintf("snap_%s_%s", t.UTC().Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
