// Package traverse walks the BOM graph downward from a root part.
//
// Two views are offered. [Subgraph] is the deduplicated reachable set of
// parts and edges, used for snapshots and exports. [Paths] enumerates every
// directed root-to-node path with its cumulative quantity multiplier, used
// by the rollup engine. Because the relationship graph is kept acyclic,
// both always terminate.
package traverse

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
)

// Source is the read-only graph view traversals need.
// Children must return edges ordered by (child, rel id).
type Source interface {
	Children(parent string) []bom.Relationship
	Part(partNumber string) (bom.Part, bool)
}

var _ Source = (*bom.Graph)(nil)

// Result is the deduplicated view of everything reachable from Root.
type Result struct {
	Root string `json:"root_part_number"`
	// Nodes lists every reachable part number, including Root, sorted.
	Nodes []string `json:"nodes"`
	// Parts holds the catalog records for the nodes that have one.
	Parts []bom.Part `json:"parts"`
	// Relationships holds every edge among reachable nodes exactly once,
	// sorted by (parent, child, rel id).
	Relationships []bom.Relationship `json:"relationships"`
	// Missing lists reachable nodes absent from the catalog.
	Missing []string `json:"missing_parts"`
}

// Subgraph collects every part and edge reachable from root.
func Subgraph(src Source, root string) Result {
	seen := map[string]struct{}{root: {}}
	rels := []bom.Relationship{}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, r := range src.Children(id) {
			rels = append(rels, r)
			if _, ok := seen[r.Child]; !ok {
				seen[r.Child] = struct{}{}
				queue = append(queue, r.Child)
			}
		}
	}
	bom.SortRelationships(rels)

	res := Result{
		Root:          root,
		Nodes:         slices.Sorted(maps.Keys(seen)),
		Parts:         []bom.Part{},
		Relationships: rels,
		Missing:       []string{},
	}
	for _, id := range res.Nodes {
		if p, ok := src.Part(id); ok {
			res.Parts = append(res.Parts, p)
		} else {
			res.Missing = append(res.Missing, id)
		}
	}
	return res
}

// Path is one directed walk from the root. Nodes[0] is the root and
// len(RelIDs) == len(Nodes)-1; the zero-length path has no RelIDs.
type Path struct {
	Nodes  []string `json:"nodes"`
	RelIDs []string `json:"rel_ids"`
	// Multiplier is the product of edge quantities along the path.
	Multiplier float64 `json:"multiplier"`
}

// Terminal returns the last node on the path.
func (p Path) Terminal() string { return p.Nodes[len(p.Nodes)-1] }

// Depth returns the number of edges on the path.
func (p Path) Depth() int { return len(p.RelIDs) }

// String joins the node ids with " > ".
func (p Path) String() string { return strings.Join(p.Nodes, " > ") }

// Action tells [Walk] how to continue after visiting a path.
type Action int

const (
	// Descend continues into the terminal node's children.
	Descend Action = iota
	// Skip does not descend but continues with the next sibling.
	Skip
	// Stop ends the walk.
	Stop
)

// Visitor is called for every path reached during a walk. children are the
// edges leaving the path's terminal node.
type Visitor func(p Path, children []bom.Relationship) Action

// Walk performs a depth-first walk from root, calling visit for every path
// in pre-order. Children are visited in (child, rel id) order, so the walk
// order is deterministic. The Path passed to visit shares its slices with
// the walk; use [Path.Clone] to retain it.
func Walk(src Source, root string, visit Visitor) {
	p := &Path{Nodes: []string{root}, RelIDs: []string{}, Multiplier: 1}
	var rec func() bool
	rec = func() bool {
		children := src.Children(p.Terminal())
		switch visit(*p, children) {
		case Stop:
			return false
		case Skip:
			return true
		}
		for _, r := range children {
			m := p.Multiplier
			p.Nodes = append(p.Nodes, r.Child)
			p.RelIDs = append(p.RelIDs, r.RelID)
			p.Multiplier *= r.Qty
			ok := rec()
			p.Nodes = p.Nodes[:len(p.Nodes)-1]
			p.RelIDs = p.RelIDs[:len(p.RelIDs)-1]
			p.Multiplier = m
			if !ok {
				return false
			}
		}
		return true
	}
	rec()
}

// Paths returns a lazy, restartable sequence of every path from root,
// starting with the zero-length root path. Each yielded Path is an
// independent copy. Breaking out of the range stops the walk.
func Paths(src Source, root string) iter.Seq[Path] {
	return func(yield func(Path) bool) {
		Walk(src, root, func(p Path, _ []bom.Relationship) Action {
			if !yield(p.Clone()) {
				return Stop
			}
			return Descend
		})
	}
}

// Clone returns a copy that does not share slices with p.
func (p Path) Clone() Path {
	return Path{Nodes: slices.Clone(p.Nodes), RelIDs: slices.Clone(p.RelIDs), Multiplier: p.Multiplier}
}
