package traverse

import (
	"slices"
	"testing"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
)

// diamond builds ROOT -> A (2), ROOT -> B (3), A -> LEAF (5), B -> LEAF (7).
func diamond(t *testing.T) *bom.Graph {
	t.Helper()
	g := bom.NewGraph()
	for _, id := range []string{"ROOT", "A", "B", "LEAF"} {
		if _, err := g.UpsertPart(bom.PartInput{PartNumber: id, Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range []bom.RelationshipInput{
		{Parent: "ROOT", Child: "A", Qty: 2, RelID: "r1"},
		{Parent: "ROOT", Child: "B", Qty: 3, RelID: "r2"},
		{Parent: "A", Child: "LEAF", Qty: 5, RelID: "r3"},
		{Parent: "B", Child: "LEAF", Qty: 7, RelID: "r4"},
	} {
		if _, err := g.UpsertRelationship(r); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestPathsDiamond(t *testing.T) {
	g := diamond(t)

	var got []string
	var mult []float64
	for p := range Paths(g, "ROOT") {
		got = append(got, p.String())
		mult = append(mult, p.Multiplier)
	}

	want := []string{"ROOT", "ROOT > A", "ROOT > A > LEAF", "ROOT > B", "ROOT > B > LEAF"}
	if !slices.Equal(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
	if wantMult := []float64{1, 2, 10, 3, 21}; !slices.Equal(mult, wantMult) {
		t.Errorf("multipliers = %v, want %v", mult, wantMult)
	}
}

func TestPathsRestartable(t *testing.T) {
	seq := Paths(diamond(t), "ROOT")
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 5 || b != 5 {
		t.Errorf("counts = %d, %d, want 5, 5", a, b)
	}
}

func TestPathsEarlyBreak(t *testing.T) {
	var seen []string
	for p := range Paths(diamond(t), "ROOT") {
		seen = append(seen, p.Terminal())
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"ROOT", "A"}) {
		t.Errorf("seen = %v", seen)
	}
}

func TestPathsParallelEdges(t *testing.T) {
	g := bom.NewGraph()
	_, _ = g.UpsertPart(bom.PartInput{PartNumber: "A", Name: "A"})
	_, _ = g.UpsertPart(bom.PartInput{PartNumber: "B", Name: "B"})
	_, _ = g.UpsertRelationship(bom.RelationshipInput{Parent: "A", Child: "B", Qty: 1, RelID: "r1"})
	_, _ = g.UpsertRelationship(bom.RelationshipInput{Parent: "A", Child: "B", Qty: 4, RelID: "r2"})

	var rels [][]string
	for p := range Paths(g, "A") {
		if p.Depth() == 1 {
			rels = append(rels, p.RelIDs)
		}
	}
	if len(rels) != 2 || rels[0][0] != "r1" || rels[1][0] != "r2" {
		t.Errorf("parallel edge paths = %v", rels)
	}
}

func TestPathsUnknownRoot(t *testing.T) {
	var paths []Path
	for p := range Paths(diamond(t), "NOPE") {
		paths = append(paths, p)
	}
	if len(paths) != 1 || paths[0].Depth() != 0 {
		t.Errorf("paths = %v, want only the root path", paths)
	}
}

func TestWalkSkip(t *testing.T) {
	var visited []string
	Walk(diamond(t), "ROOT", func(p Path, _ []bom.Relationship) Action {
		visited = append(visited, p.Terminal())
		if p.Terminal() == "A" {
			return Skip
		}
		return Descend
	})
	if want := []string{"ROOT", "A", "B", "LEAF"}; !slices.Equal(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}

func TestSubgraph(t *testing.T) {
	g := diamond(t)
	_, _ = g.UpsertRelationship(bom.RelationshipInput{Parent: "LEAF", Child: "GHOST", Qty: 1, AllowDangling: true, RelID: "r5"})
	_, _ = g.UpsertPart(bom.PartInput{PartNumber: "OTHER", Name: "unrelated"})

	res := Subgraph(g, "ROOT")
	if want := []string{"A", "B", "GHOST", "LEAF", "ROOT"}; !slices.Equal(res.Nodes, want) {
		t.Errorf("Nodes = %v, want %v", res.Nodes, want)
	}
	if len(res.Parts) != 4 {
		t.Errorf("Parts = %d, want 4", len(res.Parts))
	}
	if !slices.Equal(res.Missing, []string{"GHOST"}) {
		t.Errorf("Missing = %v", res.Missing)
	}
	var ids []string
	for _, r := range res.Relationships {
		ids = append(ids, r.RelID)
	}
	if want := []string{"r3", "r4", "r5", "r1", "r2"}; !slices.Equal(ids, want) {
		t.Errorf("relationship order = %v, want %v", ids, want)
	}
}
