package bom

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Part is a catalog record. PartNumber is unique and never changes once the
// part is created.
type Part struct {
	PartNumber  string     `json:"part_number"`
	Name        string     `json:"name"`
	Attributes  Attributes `json:"attributes"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Clone returns a deep copy of p.
func (p Part) Clone() Part {
	p.Attributes = p.Attributes.Clone()
	return p
}

// Relationship is a quantity-weighted parent→child edge.
type Relationship struct {
	RelID       string     `json:"rel_id"`
	Parent      string     `json:"parent_part_number"`
	Child       string     `json:"child_part_number"`
	Qty         float64    `json:"qty"`
	Attributes  Attributes `json:"attributes"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Clone returns a deep copy of r.
func (r Relationship) Clone() Relationship {
	r.Attributes = r.Attributes.Clone()
	return r
}

// CompareRelationships orders relationships by (parent, child, rel id).
func CompareRelationships(a, b Relationship) int {
	return cmp.Or(
		strings.Compare(a.Parent, b.Parent),
		strings.Compare(a.Child, b.Child),
		strings.Compare(a.RelID, b.RelID),
	)
}

// SortRelationships sorts rels in place by (parent, child, rel id).
func SortRelationships(rels []Relationship) {
	slices.SortFunc(rels, CompareRelationships)
}

// SortParts sorts parts in place by part number.
func SortParts(parts []Part) {
	slices.SortFunc(parts, func(a, b Part) int { return strings.Compare(a.PartNumber, b.PartNumber) })
}

// Snapshot is an immutable capture of the subgraph reachable from a root.
// Parts and Relationships are stored in canonical order.
type Snapshot struct {
	ID             string         `json:"snapshot_id"`
	RootPartNumber string         `json:"root_part_number"`
	Label          string         `json:"label"`
	CreatedAt      time.Time      `json:"created_at"`
	Signature      string         `json:"signature"`
	Parts          []Part         `json:"parts"`
	Relationships  []Relationship `json:"relationships"`
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Parts = make([]Part, len(s.Parts))
	for i, p := range s.Parts {
		out.Parts[i] = p.Clone()
	}
	out.Relationships = make([]Relationship, len(s.Relationships))
	for i, r := range s.Relationships {
		out.Relationships[i] = r.Clone()
	}
	return &out
}

// Summary drops the embedded content, keeping the header fields.
func (s *Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:                s.ID,
		RootPartNumber:    s.RootPartNumber,
		Label:             s.Label,
		CreatedAt:         s.CreatedAt,
		Signature:         s.Signature,
		PartCount:         len(s.Parts),
		RelationshipCount: len(s.Relationships),
	}
}

// SnapshotSummary is the listing view of a snapshot.
type SnapshotSummary struct {
	ID                string    `json:"snapshot_id"`
	RootPartNumber    string    `json:"root_part_number"`
	Label             string    `json:"label"`
	CreatedAt         time.Time `json:"created_at"`
	Signature         string    `json:"signature"`
	PartCount         int       `json:"part_count"`
	RelationshipCount int       `json:"relationship_count"`
}

// CompareSnapshots orders snapshots by (created_at, id).
func CompareSnapshots(a, b *Snapshot) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
}

// State is the persisted form of the catalog and the relationship graph.
type State struct {
	Parts         []Part         `json:"parts"`
	Relationships []Relationship `json:"relationships"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Parts:         make([]Part, len(s.Parts)),
		Relationships: make([]Relationship, len(s.Relationships)),
	}
	for i, p := range s.Parts {
		out.Parts[i] = p.Clone()
	}
	for i, r := range s.Relationships {
		out.Relationships[i] = r.Clone()
	}
	return out
}
