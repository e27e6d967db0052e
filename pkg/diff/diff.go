// Package diff compares two snapshots structurally.
//
// Parts are keyed by part number and relationships by rel id. Keys present
// only in the newer snapshot are added, keys present only in the older one
// are removed, and shared keys whose content differs are modified. Every
// section is always computed, even when the signatures already prove the
// snapshots equal, so callers see explicit empty lists.
package diff

import (
	"maps"
	"slices"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
)

// SnapshotRef identifies one side of a comparison.
type SnapshotRef struct {
	ID        string    `json:"snapshot_id"`
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// Change is a before/after pair.
type Change[T any] struct {
	Before T `json:"before"`
	After  T `json:"after"`
}

// AttributeChanges lists attribute keys added, removed and modified between
// two attribute maps.
type AttributeChanges struct {
	Added    bom.Attributes               `json:"added"`
	Removed  bom.Attributes               `json:"removed"`
	Modified map[string]Change[bom.Value] `json:"modified"`
}

// Empty reports whether no attribute changed.
func (c AttributeChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// PartModification describes a part present in both snapshots whose name
// or attributes differ. Name is nil when unchanged.
type PartModification struct {
	PartNumber string           `json:"part_number"`
	Name       *Change[string]  `json:"name"`
	Attributes AttributeChanges `json:"attributes"`
}

// RelationshipModification describes a relationship present in both
// snapshots whose endpoints, quantity or attributes differ. Unchanged
// scalar fields are nil.
type RelationshipModification struct {
	RelID      string           `json:"rel_id"`
	Parent     *Change[string]  `json:"parent_part_number"`
	Child      *Change[string]  `json:"child_part_number"`
	Qty        *Change[float64] `json:"qty"`
	Attributes AttributeChanges `json:"attributes"`
}

// PartChanges groups part differences. Slices are never nil.
type PartChanges struct {
	Added    []bom.Part         `json:"added"`
	Removed  []bom.Part         `json:"removed"`
	Modified []PartModification `json:"modified"`
}

// RelationshipChanges groups relationship differences. Slices are never nil.
type RelationshipChanges struct {
	Added    []bom.Relationship         `json:"added"`
	Removed  []bom.Relationship         `json:"removed"`
	Modified []RelationshipModification `json:"modified"`
}

// Result is the outcome of [Compare].
type Result struct {
	SnapshotA           SnapshotRef         `json:"snapshot_a"`
	SnapshotB           SnapshotRef         `json:"snapshot_b"`
	SignaturesEqual     bool                `json:"signatures_equal"`
	Equal               bool                `json:"equal"`
	PartChanges         PartChanges         `json:"part_changes"`
	RelationshipChanges RelationshipChanges `json:"relationship_changes"`
}

// ChangeCount returns the total number of added, removed and modified
// entries across parts and relationships.
func (r *Result) ChangeCount() int {
	p, rel := r.PartChanges, r.RelationshipChanges
	return len(p.Added) + len(p.Removed) + len(p.Modified) +
		len(rel.Added) + len(rel.Removed) + len(rel.Modified)
}

// Compare reports how b differs from a. Entries in every list are sorted by
// their key.
func Compare(a, b *bom.Snapshot) *Result {
	res := &Result{
		SnapshotA:       ref(a),
		SnapshotB:       ref(b),
		SignaturesEqual: a.Signature == b.Signature,
	}
	res.PartChanges = compareParts(a.Parts, b.Parts)
	res.RelationshipChanges = compareRelationships(a.Relationships, b.Relationships)
	res.Equal = res.SignaturesEqual || res.ChangeCount() == 0
	return res
}

func ref(s *bom.Snapshot) SnapshotRef {
	return SnapshotRef{ID: s.ID, Signature: s.Signature, CreatedAt: s.CreatedAt}
}

func compareParts(before, after []bom.Part) PartChanges {
	out := PartChanges{
		Added:    make([]bom.Part, 0),
		Removed:  make([]bom.Part, 0),
		Modified: make([]PartModification, 0),
	}
	old := index(before, func(p bom.Part) string { return p.PartNumber })
	cur := index(after, func(p bom.Part) string { return p.PartNumber })

	for _, id := range sortedKeys(cur) {
		p, ok := old[id]
		if !ok {
			out.Added = append(out.Added, cur[id].Clone())
			continue
		}
		q := cur[id]
		mod := PartModification{PartNumber: id, Name: changed(p.Name, q.Name), Attributes: compareAttributes(p.Attributes, q.Attributes)}
		if mod.Name != nil || !mod.Attributes.Empty() {
			out.Modified = append(out.Modified, mod)
		}
	}
	for _, id := range sortedKeys(old) {
		if _, ok := cur[id]; !ok {
			out.Removed = append(out.Removed, old[id].Clone())
		}
	}
	return out
}

func compareRelationships(before, after []bom.Relationship) RelationshipChanges {
	out := RelationshipChanges{
		Added:    make([]bom.Relationship, 0),
		Removed:  make([]bom.Relationship, 0),
		Modified: make([]RelationshipModification, 0),
	}
	old := index(before, func(r bom.Relationship) string { return r.RelID })
	cur := index(after, func(r bom.Relationship) string { return r.RelID })

	for _, id := range sortedKeys(cur) {
		r, ok := old[id]
		if !ok {
			out.Added = append(out.Added, cur[id].Clone())
			continue
		}
		s := cur[id]
		mod := RelationshipModification{
			RelID:      id,
			Parent:     changed(r.Parent, s.Parent),
			Child:      changed(r.Child, s.Child),
			Qty:        changed(r.Qty, s.Qty),
			Attributes: compareAttributes(r.Attributes, s.Attributes),
		}
		if mod.Parent != nil || mod.Child != nil || mod.Qty != nil || !mod.Attributes.Empty() {
			out.Modified = append(out.Modified, mod)
		}
	}
	for _, id := range sortedKeys(old) {
		if _, ok := cur[id]; !ok {
			out.Removed = append(out.Removed, old[id].Clone())
		}
	}
	return out
}

func compareAttributes(before, after bom.Attributes) AttributeChanges {
	out := AttributeChanges{
		Added:    bom.Attributes{},
		Removed:  bom.Attributes{},
		Modified: map[string]Change[bom.Value]{},
	}
	for k, v := range after {
		old, ok := before[k]
		switch {
		case !ok:
			out.Added[k] = v
		case !old.Equal(v):
			out.Modified[k] = Change[bom.Value]{Before: old, After: v}
		}
	}
	for k, v := range before {
		if _, ok := after[k]; !ok {
			out.Removed[k] = v
		}
	}
	return out
}

func changed[T comparable](before, after T) *Change[T] {
	if before == after {
		return nil
	}
	return &Change[T]{Before: before, After: after}
}

func index[T any](items []T, key func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[key(it)] = it
	}
	return m
}

func sortedKeys[T any](m map[string]T) []string {
	return slices.Sorted(maps.Keys(m))
}
