package rollup

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// Defaults for [WeightOptions].
const (
	DefaultUnitWeightKey     = "unit_weight"
	DefaultMaturityFactorKey = "maturity_factor"
	DefaultMaturityFactor    = 1.0
	DefaultTopN              = 10
)

// WeightOptions configures [Weight]. Start from [DefaultWeightOptions].
type WeightOptions struct {
	Root                  string  `json:"root_part_number"`
	UnitWeightKey         string  `json:"unit_weight_key"`
	MaturityFactorKey     string  `json:"maturity_factor_key"`
	DefaultMaturityFactor float64 `json:"default_maturity_factor"`
	// IncludeRoot lets the root's own unit weight override its children.
	// When false the root is always a pass-through node.
	IncludeRoot bool `json:"include_root"`
	// TopN truncates TopContributors. Zero keeps every part.
	TopN int `json:"top_n"`
}

// DefaultWeightOptions returns the standard options for root.
func DefaultWeightOptions(root string) WeightOptions {
	return WeightOptions{
		Root:                  root,
		UnitWeightKey:         DefaultUnitWeightKey,
		MaturityFactorKey:     DefaultMaturityFactorKey,
		DefaultMaturityFactor: DefaultMaturityFactor,
		IncludeRoot:           true,
		TopN:                  DefaultTopN,
	}
}

// Normalize trims ids, fills empty attribute keys with the defaults and
// validates the numeric options.
func (o WeightOptions) Normalize() (WeightOptions, error) {
	o.Root = strings.TrimSpace(o.Root)
	o.UnitWeightKey = cmp.Or(strings.TrimSpace(o.UnitWeightKey), DefaultUnitWeightKey)
	o.MaturityFactorKey = cmp.Or(strings.TrimSpace(o.MaturityFactorKey), DefaultMaturityFactorKey)
	if err := errors.ValidatePartNumber("root_part_number", o.Root); err != nil {
		return o, err
	}
	if math.IsNaN(o.DefaultMaturityFactor) || math.IsInf(o.DefaultMaturityFactor, 0) || o.DefaultMaturityFactor <= 0 {
		return o, errors.New(errors.ErrCodeValidation, "default_maturity_factor must be > 0")
	}
	if o.TopN < 0 {
		return o, errors.New(errors.ErrCodeValidation, "top_n must be >= 0")
	}
	return o, nil
}

// WeightEntry is the contribution of one overriding node on one path.
type WeightEntry struct {
	PartNumber          string   `json:"part_number"`
	Path                []string `json:"path"`
	RelPath             []string `json:"rel_path"`
	Multiplier          float64  `json:"multiplier"`
	UnitWeight          float64  `json:"unit_weight"`
	MaturityFactor      float64  `json:"maturity_factor"`
	EffectiveUnitWeight float64  `json:"effective_unit_weight"`
	Contribution        float64  `json:"contribution"`
}

// PartTotal sums a part's contributions across every path it overrides on.
type PartTotal struct {
	PartNumber        string  `json:"part_number"`
	TotalContribution float64 `json:"total_contribution"`
	Occurrences       int     `json:"occurrences"`
}

// UnresolvedNode is a leaf that could not be assigned a weight.
type UnresolvedNode struct {
	PartNumber string   `json:"part_number"`
	Path       []string `json:"path"`
	Reason     string   `json:"reason"`
}

// WeightResult is the outcome of [Weight].
type WeightResult struct {
	Options         WeightOptions    `json:"options"`
	Total           float64          `json:"total"`
	Breakdown       []WeightEntry    `json:"breakdown"`
	PartTotals      []PartTotal      `json:"part_totals"`
	TopContributors []PartTotal      `json:"top_contributors"`
	UnresolvedNodes []UnresolvedNode `json:"unresolved_nodes"`
	Warnings        []string         `json:"-"`
}

// Weight computes the weight of Root with maturity factors and override
// semantics, in a single top-down walk:
//
//   - A node with a numeric unit weight contributes
//     unit_weight × maturity_factor × multiplier, and the walk does not
//     descend into its children on that path.
//   - A node without one passes through to its children.
//   - A childless node without one is unresolved and contributes nothing.
//
// Override is decided per path: a part reached through an overriding
// ancestor on one path may still contribute on another path.
func Weight(src traverse.Source, opts WeightOptions) (*WeightResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	res := &WeightResult{
		Options:         opts,
		Breakdown:       []WeightEntry{},
		PartTotals:      []PartTotal{},
		UnresolvedNodes: []UnresolvedNode{},
	}
	var warn warnings
	totals := make(map[string]*PartTotal)
	unresolved := make(map[string]bool)

	markUnresolved := func(p traverse.Path, reason string) {
		id := p.Terminal()
		if unresolved[id] {
			return
		}
		unresolved[id] = true
		res.UnresolvedNodes = append(res.UnresolvedNodes, UnresolvedNode{
			PartNumber: id,
			Path:       slices.Clone(p.Nodes),
			Reason:     reason,
		})
		warn.add(fmt.Sprintf("Part '%s' is unresolved: %s", id, reason))
	}

	traverse.Walk(src, opts.Root, func(p traverse.Path, children []bom.Relationship) traverse.Action {
		if p.Depth() == 0 && !opts.IncludeRoot {
			return traverse.Descend
		}
		id := p.Terminal()
		part, ok := src.Part(id)
		if !ok {
			warn.add(fmt.Sprintf("Part '%s' is missing from catalog", id))
			if len(children) == 0 {
				markUnresolved(p, "missing from catalog")
				return traverse.Skip
			}
			return traverse.Descend
		}

		unit, ok := numberAttr(part, opts.UnitWeightKey, &warn)
		if !ok {
			if len(children) == 0 {
				markUnresolved(p, fmt.Sprintf("no '%s' and no children", opts.UnitWeightKey))
				return traverse.Skip
			}
			return traverse.Descend
		}

		maturity, ok := numberAttr(part, opts.MaturityFactorKey, &warn)
		if !ok {
			maturity = opts.DefaultMaturityFactor
		}
		effective := unit * maturity
		contribution := effective * p.Multiplier

		res.Total += contribution
		res.Breakdown = append(res.Breakdown, WeightEntry{
			PartNumber:          id,
			Path:                slices.Clone(p.Nodes),
			RelPath:             slices.Clone(p.RelIDs),
			Multiplier:          p.Multiplier,
			UnitWeight:          unit,
			MaturityFactor:      maturity,
			EffectiveUnitWeight: effective,
			Contribution:        contribution,
		})
		pt := totals[id]
		if pt == nil {
			pt = &PartTotal{PartNumber: id}
			totals[id] = pt
		}
		pt.TotalContribution += contribution
		pt.Occurrences++
		return traverse.Skip
	})

	slices.SortStableFunc(res.Breakdown, func(a, b WeightEntry) int {
		return comparePaths(a.Path, a.RelPath, b.Path, b.RelPath)
	})
	for _, id := range slices.Sorted(maps.Keys(totals)) {
		res.PartTotals = append(res.PartTotals, *totals[id])
	}
	res.TopContributors = TopContributors(res.PartTotals, opts.TopN)
	res.Warnings = warn.list
	return res, nil
}

// TopContributors sorts totals by contribution descending, ties by part
// number ascending, and keeps the first n (all when n == 0).
func TopContributors(totals []PartTotal, n int) []PartTotal {
	out := append([]PartTotal{}, totals...)
	slices.SortFunc(out, func(a, b PartTotal) int {
		return cmp.Or(cmp.Compare(b.TotalContribution, a.TotalContribution), strings.Compare(a.PartNumber, b.PartNumber))
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// numberAttr reads a numeric attribute. A present but non-numeric value is
// reported as a warning and treated as absent.
func numberAttr(p bom.Part, key string, warn *warnings) (float64, bool) {
	raw, ok := p.Attributes[key]
	if !ok {
		return 0, false
	}
	v, ok := raw.Number()
	if !ok {
		warn.add(fmt.Sprintf("Part '%s' has non-numeric '%s': %s", p.PartNumber, key, raw))
		return 0, false
	}
	return v, true
}
