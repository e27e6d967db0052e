package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/rollup"
)

// rollupCommand creates the rollup command.
func (c *CLI) rollupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Aggregate attributes over the BOM",
	}
	cmd.AddCommand(c.rollupNumericCommand())
	cmd.AddCommand(c.rollupWeightCommand())
	return cmd
}

func (c *CLI) rollupNumericCommand() *cobra.Command {
	var (
		key         string
		excludeRoot bool
	)
	cmd := &cobra.Command{
		Use:               "numeric <root>",
		Short:             "Sum an attribute times quantity over every path",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := rollup.NewNumericOptions(args[0], key)
			opts.IncludeRoot = !excludeRoot
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.NumericRollup(cmd.Context(), opts), printNumeric)
			})
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "attribute to sum (required)")
	cmd.Flags().BoolVar(&excludeRoot, "exclude-root", false, "leave the root's own value out of the total")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func printNumeric(r *rollup.NumericResult) {
	rows := make([][]string, len(r.Breakdown))
	for i, e := range r.Breakdown {
		rows[i] = []string{strings.Join(e.Path, " > "), formatFloat(e.AttributeValue), formatFloat(e.Multiplier), formatFloat(e.Contribution)}
	}
	if len(rows) > 0 {
		printTable([]string{"Path", r.AttributeKey, "Multiplier", "Contribution"}, rows)
	}
	printSuccess("%s total for %s: %s", r.AttributeKey, StyleValue.Render(r.Root), StyleNumber.Render(formatFloat(r.Total)))
	printStats(plural(len(r.Breakdown), "path"))
}

func (c *CLI) rollupWeightCommand() *cobra.Command {
	var (
		unitKey, maturityKey string
		defaultMaturity      float64
		excludeRoot          bool
		topN                 int
		breakdown            bool
	)
	cmd := &cobra.Command{
		Use:   "weight <root>",
		Short: "Compute weight with maturity factors and override semantics",
		Long: `Compute the weight of a part.

A part with a unit weight contributes unit_weight × maturity_factor × quantity
along each path and hides its own children on that path. Parts without one
pass through to their children. Leaves without one are reported as
unresolved.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				opts := b.WeightDefaults(args[0])
				flags := cmd.Flags()
				if flags.Changed("unit-key") {
					opts.UnitWeightKey = unitKey
				}
				if flags.Changed("maturity-key") {
					opts.MaturityFactorKey = maturityKey
				}
				if flags.Changed("default-maturity") {
					opts.DefaultMaturityFactor = defaultMaturity
				}
				if flags.Changed("top") {
					opts.TopN = topN
				}
				if excludeRoot {
					opts.IncludeRoot = false
				}
				return emit(c, b.WeightRollup(cmd.Context(), opts), func(r *rollup.WeightResult) {
					printWeight(r, breakdown)
				})
			})
		},
	}
	cmd.Flags().StringVar(&unitKey, "unit-key", rollup.DefaultUnitWeightKey, "unit weight attribute")
	cmd.Flags().StringVar(&maturityKey, "maturity-key", rollup.DefaultMaturityFactorKey, "maturity factor attribute")
	cmd.Flags().Float64Var(&defaultMaturity, "default-maturity", rollup.DefaultMaturityFactor, "maturity factor for parts without one")
	cmd.Flags().BoolVar(&excludeRoot, "exclude-root", false, "never let the root's own weight override its children")
	cmd.Flags().IntVar(&topN, "top", rollup.DefaultTopN, "number of top contributors to show (0 = all)")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "show every contributing path")
	return cmd
}

func printWeight(r *rollup.WeightResult, breakdown bool) {
	if breakdown && len(r.Breakdown) > 0 {
		rows := make([][]string, len(r.Breakdown))
		for i, e := range r.Breakdown {
			rows[i] = []string{strings.Join(e.Path, " > "), formatFloat(e.UnitWeight), formatFloat(e.MaturityFactor), formatFloat(e.Multiplier), formatFloat(e.Contribution)}
		}
		printTable([]string{"Path", "Unit", "Maturity", "Multiplier", "Contribution"}, rows)
	}
	if len(r.TopContributors) > 0 {
		rows := make([][]string, len(r.TopContributors))
		for i, p := range r.TopContributors {
			rows[i] = []string{p.PartNumber, formatFloat(p.TotalContribution), plural(p.Occurrences, "path")}
		}
		printTable([]string{"Part", "Contribution", "Occurrences"}, rows)
	}
	printSuccess("Weight of %s: %s", StyleValue.Render(r.Options.Root), StyleNumber.Render(formatFloat(r.Total)))
	printStats(plural(len(r.Breakdown), "contribution"), plural(len(r.UnresolvedNodes), "unresolved part"))
	for _, u := range r.UnresolvedNodes {
		printDetail("%s: %s", u.PartNumber, u.Reason)
	}
}
