package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/result"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// RelationshipDeletion is the data of [Backend.DeleteRelationship].
type RelationshipDeletion struct {
	Deleted      bool             `json:"deleted"`
	Relationship bom.Relationship `json:"relationship"`
}

// Link is an edge joined with the part at its far end. Part is nil when
// that part is missing from the catalog.
type Link struct {
	Relationship bom.Relationship `json:"relationship"`
	Part         *bom.Part        `json:"part"`
}

// Neighbours is the data of [Backend.ChildrenOf] and [Backend.ParentsOf].
type Neighbours struct {
	PartNumber string `json:"part_number"`
	Links      []Link `json:"links"`
}

// UpsertRelationship creates or updates a parent→child edge. Insertions
// that would close a cycle fail with CYCLE_ERROR and change nothing.
func (b *Backend) UpsertRelationship(ctx context.Context, in bom.RelationshipInput) result.Result[bom.RelationshipChange] {
	return mutate(ctx, b, "upsert_relationship", func(g *bom.Graph) (mutation[bom.RelationshipChange], error) {
		ch, err := g.UpsertRelationship(in)
		if err != nil {
			return mutation[bom.RelationshipChange]{}, err
		}
		id, prev := ch.Relationship.RelID, ch.Previous
		return mutation[bom.RelationshipChange]{
			data:     ch,
			warnings: ch.Warnings,
			undo:     func() { g.RestoreRelationship(id, prev) },
		}, nil
	})
}

// DeleteRelationship removes an edge by id.
func (b *Backend) DeleteRelationship(ctx context.Context, relID string) result.Result[RelationshipDeletion] {
	return mutate(ctx, b, "delete_relationship", func(g *bom.Graph) (mutation[RelationshipDeletion], error) {
		r, err := g.DeleteRelationship(relID)
		if err != nil {
			return mutation[RelationshipDeletion]{}, err
		}
		return mutation[RelationshipDeletion]{
			data: RelationshipDeletion{Deleted: true, Relationship: r},
			undo: func() { g.RestoreRelationship(r.RelID, &r) },
		}, nil
	})
}

// ChildrenOf returns the edges leaving parent sorted by (child, rel id),
// each joined with its child part.
func (b *Backend) ChildrenOf(_ context.Context, parent string) result.Result[Neighbours] {
	return b.neighbours("children_of", "parent_part_number", parent, func(g *bom.Graph, id string) ([]bom.Relationship, func(bom.Relationship) string, string) {
		return g.Children(id), func(r bom.Relationship) string { return r.Child }, "Child"
	})
}

// ParentsOf returns the edges entering child sorted by (parent, rel id),
// each joined with its parent part.
func (b *Backend) ParentsOf(_ context.Context, child string) result.Result[Neighbours] {
	return b.neighbours("parents_of", "child_part_number", child, func(g *bom.Graph, id string) ([]bom.Relationship, func(bom.Relationship) string, string) {
		return g.Parents(id), func(r bom.Relationship) string { return r.Parent }, "Parent"
	})
}

func (b *Backend) neighbours(op, field, partNumber string, edges func(*bom.Graph, string) ([]bom.Relationship, func(bom.Relationship) string, string)) result.Result[Neighbours] {
	return result.Guard(op, func() (Neighbours, []string, error) {
		id := strings.TrimSpace(partNumber)
		if err := errors.ValidatePartNumber(field, id); err != nil {
			return Neighbours{}, nil, err
		}
		b.mu.RLock()
		defer b.mu.RUnlock()

		rels, far, role := edges(b.graph, id)
		out := Neighbours{PartNumber: id, Links: make([]Link, 0, len(rels))}
		var warnings []string
		for _, r := range rels {
			link := Link{Relationship: r}
			if p, ok := b.graph.Part(far(r)); ok {
				link.Part = &p
			} else {
				warnings = append(warnings, fmt.Sprintf("%s part '%s' does not exist in part catalog", role, far(r)))
			}
			out.Links = append(out.Links, link)
		}
		return out, warnings, nil
	})
}

// Subgraph returns every part and edge reachable from root. Reachable
// part numbers missing from the catalog produce a warning.
func (b *Backend) Subgraph(_ context.Context, root string) result.Result[traverse.Result] {
	return result.Guard("subgraph", func() (traverse.Result, []string, error) {
		id := strings.TrimSpace(root)
		if err := errors.ValidatePartNumber("root_part_number", id); err != nil {
			return traverse.Result{}, nil, err
		}
		b.mu.RLock()
		defer b.mu.RUnlock()
		sub := traverse.Subgraph(b.graph, id)
		return sub, missingWarning(sub.Missing), nil
	})
}

func missingWarning(missing []string) []string {
	if len(missing) == 0 {
		return nil
	}
	return []string{"Missing parts in catalog: " + strings.Join(missing, ", ")}
}
