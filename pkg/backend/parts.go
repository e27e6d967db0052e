package backend

import (
	"context"
	"strings"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/result"
)

// PartList is the data of [Backend.ListParts].
type PartList struct {
	Query string     `json:"query"`
	Count int        `json:"count"`
	Parts []bom.Part `json:"parts"`
}

// PartDeletion is the data of [Backend.DeletePart].
type PartDeletion struct {
	Deleted bool     `json:"deleted"`
	Part    bom.Part `json:"part"`
}

// CreatePart adds a new part; an existing part number is a CONFLICT.
func (b *Backend) CreatePart(ctx context.Context, in bom.PartInput) result.Result[bom.PartChange] {
	return mutate(ctx, b, "create_part", func(g *bom.Graph) (mutation[bom.PartChange], error) {
		ch, err := g.CreatePart(in)
		return partMutation(g, ch), err
	})
}

// UpsertPart creates or updates a part, merging attributes unless
// in.ReplaceAttributes is set.
func (b *Backend) UpsertPart(ctx context.Context, in bom.PartInput) result.Result[bom.PartChange] {
	return mutate(ctx, b, "upsert_part", func(g *bom.Graph) (mutation[bom.PartChange], error) {
		ch, err := g.UpsertPart(in)
		return partMutation(g, ch), err
	})
}

// UpdatePartAttributes changes the attributes of an existing part.
func (b *Backend) UpdatePartAttributes(ctx context.Context, partNumber string, attrs bom.Attributes, replace bool) result.Result[bom.PartChange] {
	return mutate(ctx, b, "update_part_attributes", func(g *bom.Graph) (mutation[bom.PartChange], error) {
		ch, err := g.UpdatePartAttributes(partNumber, attrs, replace)
		return partMutation(g, ch), err
	})
}

func partMutation(g *bom.Graph, ch bom.PartChange) mutation[bom.PartChange] {
	id, prev := ch.Part.PartNumber, ch.Previous
	return mutation[bom.PartChange]{
		data: ch,
		undo: func() { g.RestorePart(id, prev) },
	}
}

// DeletePart removes a part. A referenced part is a CONFLICT unless
// allowIfReferenced is set.
func (b *Backend) DeletePart(ctx context.Context, partNumber string, allowIfReferenced bool) result.Result[PartDeletion] {
	return mutate(ctx, b, "delete_part", func(g *bom.Graph) (mutation[PartDeletion], error) {
		p, warnings, err := g.DeletePart(partNumber, allowIfReferenced)
		if err != nil {
			return mutation[PartDeletion]{}, err
		}
		return mutation[PartDeletion]{
			data:     PartDeletion{Deleted: true, Part: p},
			warnings: warnings,
			undo:     func() { g.RestorePart(p.PartNumber, &p) },
		}, nil
	})
}

// GetPart returns one part.
func (b *Backend) GetPart(_ context.Context, partNumber string) result.Result[bom.Part] {
	return result.Guard("get_part", func() (bom.Part, []string, error) {
		id := strings.TrimSpace(partNumber)
		if err := errors.ValidatePartNumber("part_number", id); err != nil {
			return bom.Part{}, nil, err
		}
		b.mu.RLock()
		defer b.mu.RUnlock()
		p, ok := b.graph.Part(id)
		if !ok {
			return bom.Part{}, nil, errors.New(errors.ErrCodeNotFound, "Part '%s' not found", id)
		}
		return p, nil, nil
	})
}

// ListParts returns parts whose number or name contains query
// (case-insensitive), sorted by part number.
func (b *Backend) ListParts(_ context.Context, query string) result.Result[PartList] {
	return result.Guard("list_parts", func() (PartList, []string, error) {
		b.mu.RLock()
		defer b.mu.RUnlock()
		parts := b.graph.Catalog().Search(query)
		if parts == nil {
			parts = []bom.Part{}
		}
		return PartList{Query: strings.TrimSpace(query), Count: len(parts), Parts: parts}, nil, nil
	})
}
