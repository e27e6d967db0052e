package bom

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mbuck21/BOM-Manager/pkg/dag"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

// Graph holds the part catalog and the relationship edges between parts.
//
// Every relationship insertion goes through a cycle check, so the edge set
// is a DAG at all times. Graph is not safe for concurrent use; the backend
// package wraps it in a reader/writer lock.
type Graph struct {
	catalog *Catalog
	rels    map[string]Relationship
	index   *dag.DAG
	now     func() time.Time
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		catalog: NewCatalog(),
		rels:    make(map[string]Relationship),
		index:   dag.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source used for LastUpdated fields.
func (g *Graph) SetClock(now func() time.Time) { g.now = now }

// Catalog exposes the part store backing the graph.
func (g *Graph) Catalog() *Catalog { return g.catalog }

// Load replaces the graph contents with s. Relationships are checked with a
// full cycle scan; invalid state leaves the graph empty.
func (g *Graph) Load(s State) error {
	catalog := NewCatalog()
	for _, p := range s.Parts {
		if err := errors.ValidatePartNumber("part_number", p.PartNumber); err != nil {
			return err
		}
		catalog.Put(p)
	}

	rels := make(map[string]Relationship, len(s.Relationships))
	edges := make([]dag.Edge, 0, len(s.Relationships))
	for _, r := range s.Relationships {
		if err := errors.ValidateQty(r.Qty); err != nil {
			return errors.Wrap(errors.ErrCodeValidation, err, "relationship %q", r.RelID)
		}
		if _, dup := rels[r.RelID]; dup {
			return errors.New(errors.ErrCodeConflict, "duplicate relationship id %q", r.RelID)
		}
		rels[r.RelID] = r.Clone()
		edges = append(edges, dag.Edge{ID: r.RelID, From: r.Parent, To: r.Child})
	}

	index := dag.New()
	if err := index.Load(edges); err != nil {
		return errors.Wrap(errors.ErrCodeValidation, err, "load relationships")
	}

	g.catalog, g.rels, g.index = catalog, rels, index
	return nil
}

// State returns a sorted deep copy of the graph contents.
func (g *Graph) State() State {
	return State{Parts: g.catalog.List(), Relationships: g.Relationships()}
}

// Part returns a copy of the part.
func (g *Graph) Part(partNumber string) (Part, bool) { return g.catalog.Get(partNumber) }

// HasPart reports whether the part exists in the catalog.
func (g *Graph) HasPart(partNumber string) bool { return g.catalog.Exists(partNumber) }

// HasNode reports whether id is a catalog part or an endpoint of any edge.
func (g *Graph) HasNode(id string) bool { return g.catalog.Exists(id) || g.index.HasNode(id) }

// Relationship returns a copy of the relationship.
func (g *Graph) Relationship(relID string) (Relationship, bool) {
	r, ok := g.rels[relID]
	if !ok {
		return Relationship{}, false
	}
	return r.Clone(), true
}

// Relationships returns every relationship sorted by (parent, child, rel id).
func (g *Graph) Relationships() []Relationship {
	return g.resolve(g.index.Edges())
}

// RelationshipCount returns the number of edges.
func (g *Graph) RelationshipCount() int { return len(g.rels) }

// Children returns the edges leaving parent sorted by (child, rel id).
func (g *Graph) Children(parent string) []Relationship {
	return g.resolve(g.index.Out(parent))
}

// Parents returns the edges entering child sorted by (parent, rel id).
func (g *Graph) Parents(child string) []Relationship {
	return g.resolve(g.index.In(child))
}

// References counts the relationships that name partNumber as an endpoint.
func (g *Graph) References(partNumber string) int {
	return g.index.InDegree(partNumber) + g.index.OutDegree(partNumber)
}

func (g *Graph) resolve(edges []dag.Edge) []Relationship {
	out := make([]Relationship, 0, len(edges))
	for _, e := range edges {
		out = append(out, g.rels[e.ID].Clone())
	}
	return out
}

// PartInput describes a part create or update.
type PartInput struct {
	PartNumber string
	Name       string
	Attributes Attributes
	// ReplaceAttributes discards existing attributes instead of merging.
	ReplaceAttributes bool
	// LastUpdated defaults to the graph clock when zero.
	LastUpdated time.Time
}

// PartChange is the outcome of a part mutation. Previous is the part as it
// was before the change, nil if it did not exist.
type PartChange struct {
	Part     Part  `json:"part"`
	Created  bool  `json:"created"`
	Previous *Part `json:"-"`
}

// UpsertPart creates a part or updates the existing one. Attributes are
// merged into the existing set unless ReplaceAttributes is set.
func (g *Graph) UpsertPart(in PartInput) (PartChange, error) {
	id := strings.TrimSpace(in.PartNumber)
	if err := errors.ValidatePartNumber("part_number", id); err != nil {
		return PartChange{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return PartChange{}, errors.New(errors.ErrCodeValidation, "name is required")
	}
	if err := validateAttributes(in.Attributes); err != nil {
		return PartChange{}, err
	}

	p := Part{PartNumber: id, Name: name, Attributes: in.Attributes.Clone(), LastUpdated: g.stamp(in.LastUpdated)}
	var prev *Part
	if existing, ok := g.catalog.Get(id); ok {
		prev = &existing
		if !in.ReplaceAttributes {
			p.Attributes = existing.Attributes.Merge(in.Attributes)
		}
	}
	g.catalog.Put(p)
	return PartChange{Part: p.Clone(), Created: prev == nil, Previous: prev}, nil
}

// CreatePart adds a new part and fails with CONFLICT if it already exists.
func (g *Graph) CreatePart(in PartInput) (PartChange, error) {
	if g.catalog.Exists(strings.TrimSpace(in.PartNumber)) {
		return PartChange{}, errors.New(errors.ErrCodeConflict, "Part '%s' already exists", strings.TrimSpace(in.PartNumber))
	}
	return g.UpsertPart(in)
}

// UpdatePartAttributes changes only the attributes of an existing part.
func (g *Graph) UpdatePartAttributes(partNumber string, attrs Attributes, replace bool) (PartChange, error) {
	existing, ok := g.catalog.Get(strings.TrimSpace(partNumber))
	if !ok {
		return PartChange{}, errors.New(errors.ErrCodeNotFound, "Part '%s' not found", partNumber)
	}
	return g.UpsertPart(PartInput{
		PartNumber:        existing.PartNumber,
		Name:              existing.Name,
		Attributes:        attrs,
		ReplaceAttributes: replace,
	})
}

// DeletePart removes a part from the catalog. Parts still referenced by a
// relationship are kept unless allowIfReferenced is set, in which case the
// relationships become dangling and a warning is returned.
func (g *Graph) DeletePart(partNumber string, allowIfReferenced bool) (Part, []string, error) {
	id := strings.TrimSpace(partNumber)
	if err := errors.ValidatePartNumber("part_number", id); err != nil {
		return Part{}, nil, err
	}
	existing, ok := g.catalog.Get(id)
	if !ok {
		return Part{}, nil, errors.New(errors.ErrCodeNotFound, "Part '%s' not found", id)
	}
	var warnings []string
	if refs := g.References(id); refs > 0 {
		if !allowIfReferenced {
			return Part{}, nil, errors.New(errors.ErrCodeConflict,
				"Part '%s' has %d relationship references and cannot be deleted", id, refs)
		}
		warnings = append(warnings, fmt.Sprintf("Part '%s' is still referenced by %d relationship(s)", id, refs))
	}
	g.catalog.Delete(id)
	return existing, warnings, nil
}

// RestorePart puts back a part captured in a [PartChange] or returned by
// DeletePart. A nil prev removes partNumber instead.
func (g *Graph) RestorePart(partNumber string, prev *Part) {
	if prev == nil {
		g.catalog.Delete(partNumber)
		return
	}
	g.catalog.Put(*prev)
}

// RelationshipInput describes a relationship create or update.
type RelationshipInput struct {
	Parent string
	Child  string
	Qty    float64
	// RelID selects the edge to update. When empty, an existing edge with the
	// same parent and child is updated, otherwise a new id is generated.
	RelID      string
	Attributes Attributes
	// AllowDangling stores the edge even if an endpoint is not in the catalog.
	AllowDangling bool
	// ReplaceAttributes discards existing attributes instead of merging.
	ReplaceAttributes bool
	LastUpdated       time.Time
}

// RelationshipChange is the outcome of a relationship upsert.
type RelationshipChange struct {
	Relationship Relationship  `json:"relationship"`
	Created      bool          `json:"created"`
	Warnings     []string      `json:"-"`
	Previous     *Relationship `json:"-"`
}

// UpsertRelationship validates and stores a parent→child edge.
//
// Validation order: required ids, quantity, endpoint existence, then the
// cycle check. Any failure leaves the graph unchanged.
func (g *Graph) UpsertRelationship(in RelationshipInput) (RelationshipChange, error) {
	parent := strings.TrimSpace(in.Parent)
	child := strings.TrimSpace(in.Child)
	if err := errors.ValidatePartNumber("parent_part_number", parent); err != nil {
		return RelationshipChange{}, err
	}
	if err := errors.ValidatePartNumber("child_part_number", child); err != nil {
		return RelationshipChange{}, err
	}
	if err := errors.ValidateQty(in.Qty); err != nil {
		return RelationshipChange{}, err
	}
	if err := validateAttributes(in.Attributes); err != nil {
		return RelationshipChange{}, err
	}

	var warnings []string
	if missing := g.missing(parent, child); len(missing) > 0 {
		msg := "Missing part(s): " + strings.Join(missing, ", ")
		if !in.AllowDangling {
			return RelationshipChange{}, errors.New(errors.ErrCodeDanglingReference,
				"%s (set allow_dangling to store this relationship)", msg)
		}
		warnings = append(warnings, msg)
	}

	relID := strings.TrimSpace(in.RelID)
	if relID == "" {
		relID = g.matchPair(parent, child)
	}
	var prev *Relationship
	if relID == "" {
		relID = g.newRelID()
	} else if existing, ok := g.Relationship(relID); ok {
		prev = &existing
	} else if err := errors.ValidatePartNumber("rel_id", relID); err != nil {
		return RelationshipChange{}, err
	}

	rel := Relationship{
		RelID:       relID,
		Parent:      parent,
		Child:       child,
		Qty:         in.Qty,
		Attributes:  in.Attributes.Clone(),
		LastUpdated: g.stamp(in.LastUpdated),
	}
	if prev != nil && !in.ReplaceAttributes {
		rel.Attributes = prev.Attributes.Merge(in.Attributes)
	}

	if err := g.index.Put(dag.Edge{ID: relID, From: parent, To: child}); err != nil {
		return RelationshipChange{}, err
	}
	g.rels[relID] = rel.Clone()
	return RelationshipChange{Relationship: rel, Created: prev == nil, Warnings: warnings, Previous: prev}, nil
}

// DeleteRelationship removes an edge and returns it.
func (g *Graph) DeleteRelationship(relID string) (Relationship, error) {
	id := strings.TrimSpace(relID)
	if id == "" {
		return Relationship{}, errors.New(errors.ErrCodeValidation, "rel_id is required")
	}
	existing, ok := g.Relationship(id)
	if !ok {
		return Relationship{}, errors.New(errors.ErrCodeNotFound, "Relationship '%s' not found", id)
	}
	g.index.Remove(id)
	delete(g.rels, id)
	return existing, nil
}

// RestoreRelationship undoes an upsert or delete of relID. A nil prev
// removes the edge; otherwise prev is put back as it was.
func (g *Graph) RestoreRelationship(relID string, prev *Relationship) {
	g.index.Remove(relID)
	delete(g.rels, relID)
	if prev == nil {
		return
	}
	// prev was part of an acyclic graph that differed only in relID.
	_ = g.index.Put(dag.Edge{ID: prev.RelID, From: prev.Parent, To: prev.Child})
	g.rels[prev.RelID] = prev.Clone()
}

func (g *Graph) missing(ids ...string) []string {
	var out []string
	for _, id := range ids {
		if !g.catalog.Exists(id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// matchPair returns the lowest rel id connecting parent to child, or "".
func (g *Graph) matchPair(parent, child string) string {
	for _, e := range g.index.Out(parent) {
		if e.To == child {
			return e.ID
		}
	}
	return ""
}

func (g *Graph) newRelID() string {
	for {
		id := "rel_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		if _, taken := g.rels[id]; !taken {
			return id
		}
	}
}

func (g *Graph) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return g.now()
	}
	return t.UTC()
}

func validateAttributes(attrs Attributes) error {
	for _, k := range attrs.Keys() {
		if err := errors.ValidateAttributeKey(k); err != nil {
			return err
		}
		if !attrs[k].IsValid() {
			return errors.New(errors.ErrCodeValidation, "attribute %q has no value", k)
		}
		if f, ok := attrs[k].Number(); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return errors.New(errors.ErrCodeValidation, "attribute %q must be a finite number", k)
		}
	}
	return nil
}
