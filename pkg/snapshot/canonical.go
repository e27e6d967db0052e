package snapshot

import (
	"encoding/json"
	"slices"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/cache"
)

// The canonical document covers content only. Timestamps, labels and ids
// other than relationship ids are excluded so that recapturing unchanged
// content yields the same signature.
type canonicalDoc struct {
	Root          string          `json:"root_part_number"`
	Parts         []canonicalPart `json:"parts"`
	Relationships []canonicalRel  `json:"relationships"`
}

type canonicalPart struct {
	PartNumber string         `json:"part_number"`
	Name       string         `json:"name"`
	Attributes bom.Attributes `json:"attributes"`
}

type canonicalRel struct {
	RelID      string         `json:"rel_id"`
	Parent     string         `json:"parent_part_number"`
	Child      string         `json:"child_part_number"`
	Qty        float64        `json:"qty"`
	Attributes bom.Attributes `json:"attributes"`
}

// Canonical serializes root, parts and relationships into a deterministic
// byte form: parts sorted by part number, relationships sorted by
// (parent, child, rel id), attribute keys sorted, numbers in shortest
// round-trip form. Input order never affects the output.
func Canonical(root string, parts []bom.Part, rels []bom.Relationship) ([]byte, error) {
	doc := canonicalDoc{
		Root:          root,
		Parts:         make([]canonicalPart, 0, len(parts)),
		Relationships: make([]canonicalRel, 0, len(rels)),
	}

	sortedParts := slices.Clone(parts)
	bom.SortParts(sortedParts)
	for _, p := range sortedParts {
		doc.Parts = append(doc.Parts, canonicalPart{
			PartNumber: p.PartNumber,
			Name:       p.Name,
			Attributes: p.Attributes.Clone(),
		})
	}

	sortedRels := slices.Clone(rels)
	bom.SortRelationships(sortedRels)
	for _, r := range sortedRels {
		doc.Relationships = append(doc.Relationships, canonicalRel{
			RelID:      r.RelID,
			Parent:     r.Parent,
			Child:      r.Child,
			Qty:        r.Qty,
			Attributes: r.Attributes.Clone(),
		})
	}

	// encoding/json writes map keys in sorted order.
	return json.Marshal(doc)
}

// Signature returns the SHA-256 hex digest of the canonical form.
func Signature(root string, parts []bom.Part, rels []bom.Relationship) (string, error) {
	data, err := Canonical(root, parts, rels)
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}
