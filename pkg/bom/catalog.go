package bom

import (
	"maps"
	"slices"
	"strings"
)

// PartStore is the keyed part lookup the graph and the traversal code
// consume.
type PartStore interface {
	Get(partNumber string) (Part, bool)
	Exists(partNumber string) bool
	List() []Part
}

// Catalog is an in-memory PartStore. It is not safe for concurrent use.
type Catalog struct {
	parts map[string]Part
}

var _ PartStore = (*Catalog)(nil)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{parts: make(map[string]Part)}
}

// Get returns a copy of the part.
func (c *Catalog) Get(partNumber string) (Part, bool) {
	p, ok := c.parts[partNumber]
	if !ok {
		return Part{}, false
	}
	return p.Clone(), true
}

// Exists reports whether partNumber is in the catalog.
func (c *Catalog) Exists(partNumber string) bool {
	_, ok := c.parts[partNumber]
	return ok
}

// List returns copies of every part sorted by part number.
func (c *Catalog) List() []Part {
	return c.Search("")
}

// Search returns parts whose number or name contains query,
// case-insensitively, sorted by part number. An empty query matches all.
func (c *Catalog) Search(query string) []Part {
	needle := strings.ToLower(strings.TrimSpace(query))
	var out []Part
	for _, id := range slices.Sorted(maps.Keys(c.parts)) {
		p := c.parts[id]
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.PartNumber), needle) &&
			!strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

// Len returns the number of parts.
func (c *Catalog) Len() int { return len(c.parts) }

// Put stores a copy of p, replacing any part with the same number.
func (c *Catalog) Put(p Part) {
	c.parts[p.PartNumber] = p.Clone()
}

// Delete removes a part and reports whether it existed.
func (c *Catalog) Delete(partNumber string) bool {
	if _, ok := c.parts[partNumber]; !ok {
		return false
	}
	delete(c.parts, partNumber)
	return true
}
