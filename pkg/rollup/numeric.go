package rollup

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// NumericOptions configures [Numeric].
type NumericOptions struct {
	Root         string `json:"root_part_number"`
	AttributeKey string `json:"attribute_key"`
	// IncludeRoot counts the root's own attribute value.
	IncludeRoot bool `json:"include_root"`
}

// NewNumericOptions returns options for summing key under root with the
// root's own value counted.
func NewNumericOptions(root, key string) NumericOptions {
	return NumericOptions{Root: root, AttributeKey: key, IncludeRoot: true}
}

// NumericEntry is one path's contribution.
type NumericEntry struct {
	PartNumber     string   `json:"part_number"`
	Path           []string `json:"path"`
	RelPath        []string `json:"rel_path"`
	Multiplier     float64  `json:"multiplier"`
	AttributeValue float64  `json:"attribute_value"`
	Contribution   float64  `json:"contribution"`
}

// NumericResult is the outcome of [Numeric].
type NumericResult struct {
	Root         string         `json:"root_part_number"`
	AttributeKey string         `json:"attribute_key"`
	IncludeRoot  bool           `json:"include_root"`
	Total        float64        `json:"total"`
	Breakdown    []NumericEntry `json:"breakdown"`
	Warnings     []string       `json:"-"`
}

// Numeric sums value × multiplier of AttributeKey over every path from Root.
// Paths whose terminal part is missing, lacks the attribute, or holds a
// non-number produce a warning and no contribution. The breakdown is sorted
// by path.
func Numeric(src traverse.Source, opts NumericOptions) (*NumericResult, error) {
	opts.Root = strings.TrimSpace(opts.Root)
	opts.AttributeKey = strings.TrimSpace(opts.AttributeKey)
	if err := errors.ValidatePartNumber("root_part_number", opts.Root); err != nil {
		return nil, err
	}
	if opts.AttributeKey == "" {
		return nil, errors.New(errors.ErrCodeValidation, "attribute_key is required")
	}

	res := &NumericResult{Root: opts.Root, AttributeKey: opts.AttributeKey, IncludeRoot: opts.IncludeRoot, Breakdown: []NumericEntry{}}
	var warn warnings
	for p := range traverse.Paths(src, opts.Root) {
		if p.Depth() == 0 && !opts.IncludeRoot {
			continue
		}
		id := p.Terminal()
		part, ok := src.Part(id)
		if !ok {
			warn.add(fmt.Sprintf("Part '%s' is missing from catalog", id))
			continue
		}
		raw, ok := part.Attributes[opts.AttributeKey]
		if !ok {
			warn.add(fmt.Sprintf("Part '%s' is missing attribute '%s'", id, opts.AttributeKey))
			continue
		}
		v, ok := raw.Number()
		if !ok {
			warn.add(fmt.Sprintf("Part '%s' has non-numeric '%s': %s", id, opts.AttributeKey, raw))
			continue
		}
		contribution := v * p.Multiplier
		res.Total += contribution
		res.Breakdown = append(res.Breakdown, NumericEntry{
			PartNumber:     id,
			Path:           p.Nodes,
			RelPath:        p.RelIDs,
			Multiplier:     p.Multiplier,
			AttributeValue: v,
			Contribution:   contribution,
		})
	}
	slices.SortStableFunc(res.Breakdown, func(a, b NumericEntry) int {
		return comparePaths(a.Path, a.RelPath, b.Path, b.RelPath)
	})
	res.Warnings = warn.list
	return res, nil
}

func comparePaths(aNodes, aRels, bNodes, bRels []string) int {
	return cmp.Or(slices.Compare(aNodes, bNodes), slices.Compare(aRels, bRels))
}
