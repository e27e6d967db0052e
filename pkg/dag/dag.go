package dag

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"strings"

	bomerrors "github.com/mbuck21/BOM-Manager/pkg/errors"
)

var (
	// ErrInvalidEdgeID is returned by [DAG.Put] when the edge ID is empty.
	ErrInvalidEdgeID = errors.New("edge ID must not be empty")

	// ErrInvalidEdgeEndpoint is returned by [DAG.Put] when either endpoint
	// is empty.
	ErrInvalidEdgeEndpoint = errors.New("edge endpoints must not be empty")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is detected.
	// This indicates state that was built without going through [DAG.Put],
	// for example a hand-edited data file.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Edge is a directed parent→child connection identified by a stable ID.
// Several edges may connect the same pair of nodes.
type Edge struct {
	ID   string // Unique edge identifier
	From string // Parent node ID
	To   string // Child node ID
}

// CompareEdges orders edges by (from, to, id).
func CompareEdges(a, b Edge) int {
	return cmp.Or(strings.Compare(a.From, b.From), strings.Compare(a.To, b.To), strings.Compare(a.ID, b.ID))
}

// DAG is an edge index that keeps a directed graph acyclic.
//
// Nodes exist implicitly as edge endpoints; there is no node registry, so an
// edge may reference a node that no other component knows about.
// Adjacency lists are kept sorted so every query is deterministic.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	edges    map[string]Edge
	outgoing map[string][]Edge // nodeID -> edges leaving it, sorted by (to, id)
	incoming map[string][]Edge // nodeID -> edges entering it, sorted by (from, id)
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		edges:    make(map[string]Edge),
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
	}
}

// Put inserts e, or replaces the edge with the same ID.
//
// Before anything changes, Put searches downward from e.To, ignoring the
// edge being replaced. If e.From is reachable (or e.From == e.To) the
// insertion would close a cycle and Put returns a *errors.CycleError whose
// path starts and ends at e.From. The graph is left unchanged on error.
func (d *DAG) Put(e Edge) error {
	if e.ID == "" {
		return ErrInvalidEdgeID
	}
	if e.From == "" || e.To == "" {
		return ErrInvalidEdgeEndpoint
	}
	if path := d.PathBetween(e.To, e.From, e.ID); path != nil {
		return bomerrors.NewCycle(append([]string{e.From}, path...))
	}
	d.Remove(e.ID)
	d.insert(e)
	return nil
}

func (d *DAG) insert(e Edge) {
	d.edges[e.ID] = e
	d.outgoing[e.From] = insertSorted(d.outgoing[e.From], e, func(a, b Edge) int {
		return cmp.Or(strings.Compare(a.To, b.To), strings.Compare(a.ID, b.ID))
	})
	d.incoming[e.To] = insertSorted(d.incoming[e.To], e, func(a, b Edge) int {
		return cmp.Or(strings.Compare(a.From, b.From), strings.Compare(a.ID, b.ID))
	})
}

func insertSorted(list []Edge, e Edge, cmpFn func(a, b Edge) int) []Edge {
	i, _ := slices.BinarySearchFunc(list, e, cmpFn)
	return slices.Insert(list, i, e)
}

// Remove deletes the edge with the given ID and reports whether it existed.
func (d *DAG) Remove(id string) bool {
	e, ok := d.edges[id]
	if !ok {
		return false
	}
	delete(d.edges, id)
	d.outgoing[e.From] = slices.DeleteFunc(d.outgoing[e.From], func(x Edge) bool { return x.ID == id })
	if len(d.outgoing[e.From]) == 0 {
		delete(d.outgoing, e.From)
	}
	d.incoming[e.To] = slices.DeleteFunc(d.incoming[e.To], func(x Edge) bool { return x.ID == id })
	if len(d.incoming[e.To]) == 0 {
		delete(d.incoming, e.To)
	}
	return true
}

// Load replaces the graph contents with edges and runs [DAG.Validate].
// Edges are inserted without the per-edge cycle check, so Load is the only
// path through which a cyclic edge set can be observed. On error the graph
// is left empty.
func (d *DAG) Load(edges []Edge) error {
	*d = *New()
	for _, e := range edges {
		if e.ID == "" {
			return ErrInvalidEdgeID
		}
		if e.From == "" || e.To == "" {
			return ErrInvalidEdgeEndpoint
		}
		d.Remove(e.ID)
		d.insert(e)
	}
	if err := d.Validate(); err != nil {
		*d = *New()
		return err
	}
	return nil
}

// Edge returns the edge with the given ID.
func (d *DAG) Edge(id string) (Edge, bool) {
	e, ok := d.edges[id]
	return e, ok
}

// Edges returns all edges sorted by (from, to, id).
func (d *DAG) Edges() []Edge {
	out := slices.Collect(maps.Values(d.edges))
	slices.SortFunc(out, CompareEdges)
	return out
}

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Out returns the edges leaving id, sorted by (to, id).
// The returned slice is a copy.
func (d *DAG) Out(id string) []Edge { return slices.Clone(d.outgoing[id]) }

// In returns the edges entering id, sorted by (from, id).
// The returned slice is a copy.
func (d *DAG) In(id string) []Edge { return slices.Clone(d.incoming[id]) }

// OutDegree returns the number of outgoing edges from the node.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// InDegree returns the number of incoming edges to the node.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// HasNode reports whether id is an endpoint of any edge.
func (d *DAG) HasNode(id string) bool {
	return len(d.outgoing[id]) > 0 || len(d.incoming[id]) > 0
}

// Nodes returns every edge endpoint in sorted order.
func (d *DAG) Nodes() []string {
	set := make(map[string]struct{}, len(d.outgoing)+len(d.incoming))
	for id := range d.outgoing {
		set[id] = struct{}{}
	}
	for id := range d.incoming {
		set[id] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Reachable returns every node reachable from root by following edges
// downward, including root itself, in sorted order.
func (d *DAG) Reachable(root string) []string {
	seen := map[string]struct{}{root: {}}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range d.outgoing[id] {
			if _, ok := seen[e.To]; !ok {
				seen[e.To] = struct{}{}
				stack = append(stack, e.To)
			}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// PathBetween returns a node path from -> ... -> to following edges
// downward, or nil when to is unreachable. The edge named by ignoreID is
// skipped, which lets callers ask "would replacing this edge close a cycle".
// A node trivially reaches itself, so PathBetween(x, x, _) is [x].
func (d *DAG) PathBetween(from, to, ignoreID string) []string {
	if from == to {
		return []string{from}
	}
	prev := map[string]string{from: ""}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range d.outgoing[id] {
			if e.ID == ignoreID {
				continue
			}
			if _, ok := prev[e.To]; ok {
				continue
			}
			prev[e.To] = id
			if e.To == to {
				return unwind(prev, from, to)
			}
			stack = append(stack, e.To)
		}
	}
	return nil
}

func unwind(prev map[string]string, from, to string) []string {
	path := []string{to}
	for n := to; n != from; {
		n = prev[n]
		path = append(path, n)
	}
	slices.Reverse(path)
	return path
}

// Validate runs a full depth-first cycle scan over the graph.
// It returns an error wrapping ErrGraphHasCycle and a *errors.CycleError
// describing the first cycle found.
//
// Cycle detection runs in O(N+E) time using white/gray/black coloring.
func (d *DAG) Validate() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int)
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, e := range d.outgoing[id] {
			switch color[e.To] {
			case white:
				if dfs(e.To) {
					return true
				}
			case gray:
				start := slices.Index(stack, e.To)
				cycle = append(slices.Clone(stack[start:]), e.To)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range d.Nodes() {
		if color[id] == white && dfs(id) {
			return errors.Join(ErrGraphHasCycle, bomerrors.NewCycle(cycle))
		}
	}
	return nil
}
