package rollup

import (
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

type part struct {
	id    string
	attrs bom.Attributes
}

type rel struct {
	id, parent, child string
	qty               float64
}

func build(t *testing.T, parts []part, rels []rel) *bom.Graph {
	t.Helper()
	g := bom.NewGraph()
	for _, p := range parts {
		if _, err := g.UpsertPart(bom.PartInput{PartNumber: p.id, Name: p.id, Attributes: p.attrs}); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range rels {
		in := bom.RelationshipInput{RelID: r.id, Parent: r.parent, Child: r.child, Qty: r.qty, AllowDangling: true}
		if _, err := g.UpsertRelationship(in); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNumericSimpleChain(t *testing.T) {
	g := build(t,
		[]part{{"A", bom.Attributes{"weight_kg": bom.Number(10)}}, {"B", bom.Attributes{"weight_kg": bom.Number(2)}}},
		[]rel{{"r1", "A", "B", 2}},
	)

	res, err := Numeric(g, NumericOptions{Root: "A", AttributeKey: "weight_kg", IncludeRoot: true})
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	if !approx(res.Total, 14) {
		t.Errorf("Total = %v, want 14", res.Total)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v", res.Warnings)
	}

	res, _ = Numeric(g, NumericOptions{Root: "A", AttributeKey: "weight_kg"})
	if !approx(res.Total, 4) {
		t.Errorf("Total without root = %v, want 4", res.Total)
	}
}

func TestNumericDiamond(t *testing.T) {
	g := build(t,
		[]part{{"ROOT", nil}, {"A", nil}, {"B", nil}, {"LEAF", bom.Attributes{"cost": bom.Number(3.5)}}},
		[]rel{{"r1", "ROOT", "A", 1}, {"r2", "ROOT", "B", 1}, {"r3", "A", "LEAF", 1}, {"r4", "B", "LEAF", 1}},
	)

	res, err := Numeric(g, NumericOptions{Root: "ROOT", AttributeKey: "cost"})
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	if len(res.Breakdown) != 2 {
		t.Fatalf("Breakdown has %d entries, want 2: %+v", len(res.Breakdown), res.Breakdown)
	}
	sum := res.Breakdown[0].Contribution + res.Breakdown[1].Contribution
	if !approx(res.Total, sum) || !approx(res.Total, 7) {
		t.Errorf("Total = %v, sum of breakdown = %v, want 7", res.Total, sum)
	}
	if !slices.Equal(res.Breakdown[0].Path, []string{"ROOT", "A", "LEAF"}) {
		t.Errorf("first path = %v", res.Breakdown[0].Path)
	}
	// A and B lack the attribute; each is reported once.
	if len(res.Warnings) != 2 {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestNumericWarnings(t *testing.T) {
	g := build(t,
		[]part{{"A", nil}, {"B", bom.Attributes{"mass": bom.Text("heavy")}}, {"C", bom.Attributes{"mass": bom.Bool(true)}}},
		[]rel{{"r1", "A", "B", 1}, {"r2", "A", "C", 1}, {"r3", "A", "GHOST", 1}, {"r4", "B", "GHOST", 2}},
	)

	res, err := Numeric(g, NumericOptions{Root: "A", AttributeKey: "mass"})
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	if res.Total != 0 || len(res.Breakdown) != 0 {
		t.Errorf("Total = %v, Breakdown = %v", res.Total, res.Breakdown)
	}
	want := []string{
		"Part 'B' has non-numeric 'mass': heavy",
		"Part 'GHOST' is missing from catalog",
		"Part 'C' has non-numeric 'mass': true",
	}
	if !slices.Equal(res.Warnings, want) {
		t.Errorf("Warnings = %q, want %q", res.Warnings, want)
	}
}

func TestNumericValidation(t *testing.T) {
	g := bom.NewGraph()
	if _, err := Numeric(g, NumericOptions{AttributeKey: "x"}); !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("missing root: %v", err)
	}
	if _, err := Numeric(g, NumericOptions{Root: "A"}); !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("missing key: %v", err)
	}
}

// overrideFixture: A -> B(override) -> D, A -> C -> E(leaf weight), A -> F(unresolved).
func overrideFixture(t *testing.T) *bom.Graph {
	return build(t,
		[]part{
			{"A", nil},
			{"B", bom.Attributes{"unit_weight": bom.Number(100), "maturity_factor": bom.Number(1.05)}},
			{"C", nil},
			{"D", bom.Attributes{"unit_weight": bom.Number(8)}},
			{"E", bom.Attributes{"unit_weight": bom.Number(2)}},
			{"F", nil},
		},
		[]rel{
			{"R1", "A", "B", 2},
			{"R2", "A", "C", 1},
			{"R3", "B", "D", 4},
			{"R4", "C", "E", 3},
			{"R5", "A", "F", 1},
		},
	)
}

func TestWeightOverride(t *testing.T) {
	res, err := Weight(overrideFixture(t), DefaultWeightOptions("A"))
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if !approx(res.Total, 216) {
		t.Errorf("Total = %v, want 216", res.Total)
	}

	var parts []string
	for _, e := range res.Breakdown {
		parts = append(parts, e.PartNumber)
		if slices.Contains(e.Path[:len(e.Path)-1], "B") {
			t.Errorf("entry %v passes through overriding node B", e.Path)
		}
	}
	if !slices.Equal(parts, []string{"B", "E"}) {
		t.Errorf("breakdown parts = %v, want [B E]", parts)
	}
	b := res.Breakdown[0]
	if !approx(b.EffectiveUnitWeight, 105) || b.Multiplier != 2 || b.MaturityFactor != 1.05 {
		t.Errorf("B entry = %+v", b)
	}

	if top := res.TopContributors[0]; top.PartNumber != "B" || !approx(top.TotalContribution, 210) {
		t.Errorf("top contributor = %+v", top)
	}
	if len(res.UnresolvedNodes) != 1 || res.UnresolvedNodes[0].PartNumber != "F" {
		t.Errorf("unresolved = %+v", res.UnresolvedNodes)
	}
}

func TestWeightOverrideIsPerPath(t *testing.T) {
	// D is reachable below the overriding B and directly from A.
	g := overrideFixture(t)
	if _, err := g.UpsertRelationship(bom.RelationshipInput{RelID: "R6", Parent: "A", Child: "D", Qty: 1}); err != nil {
		t.Fatal(err)
	}

	res, err := Weight(g, DefaultWeightOptions("A"))
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if !approx(res.Total, 224) {
		t.Errorf("Total = %v, want 224", res.Total)
	}
	for _, pt := range res.PartTotals {
		if pt.PartNumber == "D" && (pt.Occurrences != 1 || !approx(pt.TotalContribution, 8)) {
			t.Errorf("D totals = %+v", pt)
		}
	}
}

func TestWeightPartTotalsAcrossPaths(t *testing.T) {
	g := build(t,
		[]part{{"ROOT", nil}, {"X", nil}, {"Y", nil}, {"BOLT", bom.Attributes{"unit_weight": bom.Number(0.5)}}},
		[]rel{{"r1", "ROOT", "X", 2}, {"r2", "ROOT", "Y", 1}, {"r3", "X", "BOLT", 4}, {"r4", "Y", "BOLT", 6}},
	)
	res, err := Weight(g, DefaultWeightOptions("ROOT"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PartTotals) != 1 {
		t.Fatalf("PartTotals = %+v", res.PartTotals)
	}
	pt := res.PartTotals[0]
	if pt.Occurrences != 2 || !approx(pt.TotalContribution, 7) {
		t.Errorf("BOLT totals = %+v, want 2 occurrences, 7", pt)
	}
}

func TestWeightIncludeRoot(t *testing.T) {
	g := build(t,
		[]part{{"A", bom.Attributes{"unit_weight": bom.Number(50)}}, {"B", bom.Attributes{"unit_weight": bom.Number(3)}}},
		[]rel{{"r1", "A", "B", 2}},
	)

	opts := DefaultWeightOptions("A")
	res, _ := Weight(g, opts)
	if !approx(res.Total, 50) {
		t.Errorf("include_root total = %v, want 50", res.Total)
	}

	opts.IncludeRoot = false
	res, _ = Weight(g, opts)
	if !approx(res.Total, 6) {
		t.Errorf("exclude_root total = %v, want 6", res.Total)
	}
}

func TestWeightMaturityHandling(t *testing.T) {
	g := build(t,
		[]part{
			{"A", nil},
			{"B", bom.Attributes{"unit_weight": bom.Number(10), "maturity_factor": bom.Text("tbd")}},
			{"C", bom.Attributes{"unit_weight": bom.Text("n/a"), "maturity_factor": bom.Number(2)}},
		},
		[]rel{{"r1", "A", "B", 1}, {"r2", "A", "C", 1}},
	)
	opts := DefaultWeightOptions("A")
	opts.DefaultMaturityFactor = 1.2

	res, err := Weight(g, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(res.Total, 12) {
		t.Errorf("Total = %v, want 12", res.Total)
	}
	if len(res.UnresolvedNodes) != 1 || res.UnresolvedNodes[0].PartNumber != "C" {
		t.Errorf("unresolved = %+v", res.UnresolvedNodes)
	}
	joined := strings.Join(res.Warnings, "\n")
	for _, want := range []string{"'maturity_factor': tbd", "'unit_weight': n/a", "Part 'C' is unresolved"} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q: %v", want, res.Warnings)
		}
	}
}

func TestWeightUnresolvedDeduplicated(t *testing.T) {
	g := build(t,
		[]part{{"ROOT", nil}, {"X", nil}, {"Y", nil}},
		[]rel{{"r1", "ROOT", "X", 1}, {"r2", "ROOT", "Y", 1}, {"r3", "X", "GHOST", 1}, {"r4", "Y", "GHOST", 1}},
	)
	res, _ := Weight(g, DefaultWeightOptions("ROOT"))
	if len(res.UnresolvedNodes) != 1 {
		t.Fatalf("unresolved = %+v", res.UnresolvedNodes)
	}
	if u := res.UnresolvedNodes[0]; u.PartNumber != "GHOST" || !slices.Equal(u.Path, []string{"ROOT", "X", "GHOST"}) {
		t.Errorf("unresolved = %+v", u)
	}
}

func TestTopContributors(t *testing.T) {
	totals := []PartTotal{
		{PartNumber: "c", TotalContribution: 5},
		{PartNumber: "a", TotalContribution: 5},
		{PartNumber: "b", TotalContribution: 9},
	}
	tests := []struct {
		n    int
		want []string
	}{
		{0, []string{"b", "a", "c"}},
		{2, []string{"b", "a"}},
		{10, []string{"b", "a", "c"}},
	}
	for _, tt := range tests {
		var got []string
		for _, pt := range TopContributors(totals, tt.n) {
			got = append(got, pt.PartNumber)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("TopContributors(n=%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestWeightOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WeightOptions)
	}{
		{"missing root", func(o *WeightOptions) { o.Root = "" }},
		{"zero maturity", func(o *WeightOptions) { o.DefaultMaturityFactor = 0 }},
		{"negative maturity", func(o *WeightOptions) { o.DefaultMaturityFactor = -1 }},
		{"negative top n", func(o *WeightOptions) { o.TopN = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultWeightOptions("A")
			tt.mutate(&opts)
			if _, err := Weight(bom.NewGraph(), opts); !errors.Is(err, errors.ErrCodeValidation) {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}

	opts, err := WeightOptions{Root: " A ", DefaultMaturityFactor: 1}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Root != "A" || opts.UnitWeightKey != DefaultUnitWeightKey || opts.MaturityFactorKey != DefaultMaturityFactorKey {
		t.Errorf("Normalize = %+v", opts)
	}
}
