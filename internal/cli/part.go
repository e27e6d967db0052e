package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/bom"
)

// partCommand creates the part catalog command.
func (c *CLI) partCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "part",
		Short: "Manage the part catalog",
	}
	cmd.AddCommand(c.partAddCommand())
	cmd.AddCommand(c.partSetCommand())
	cmd.AddCommand(c.partGetCommand())
	cmd.AddCommand(c.partListCommand())
	cmd.AddCommand(c.partAttrsCommand())
	cmd.AddCommand(c.partRmCommand())
	return cmd
}

func (c *CLI) partAddCommand() *cobra.Command {
	var name string
	var attrs []string
	cmd := &cobra.Command{
		Use:   "add <part-number>",
		Short: "Create a part (fails if it exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				res := b.CreatePart(cmd.Context(), bom.PartInput{PartNumber: args[0], Name: name, Attributes: a})
				return emit(c, res, func(ch bom.PartChange) {
					printSuccess("Created part %s", StyleValue.Render(ch.Part.PartNumber))
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "part name (required)")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "attribute key=value (repeatable)")
	return cmd
}

func (c *CLI) partSetCommand() *cobra.Command {
	var name string
	var attrs []string
	var replace bool
	cmd := &cobra.Command{
		Use:               "set <part-number>",
		ValidArgsFunction: c.completeParts,
		Short:             "Create or update a part",
		Long:              "Create or update a part. Attributes merge into the existing ones unless --replace is given. Without --name an existing part keeps its name.",
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				if name == "" {
					if existing := b.GetPart(cmd.Context(), args[0]); existing.OK {
						name = existing.Data.Name
					}
				}
				res := b.UpsertPart(cmd.Context(), bom.PartInput{PartNumber: args[0], Name: name, Attributes: a, ReplaceAttributes: replace})
				return emit(c, res, func(ch bom.PartChange) {
					verb := "Updated"
					if ch.Created {
						verb = "Created"
					}
					printSuccess("%s part %s", verb, StyleValue.Render(ch.Part.PartNumber))
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "part name")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "attribute key=value (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace attributes instead of merging")
	return cmd
}

func (c *CLI) partGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "get <part-number>",
		ValidArgsFunction: c.completeParts,
		Short:             "Show a part",
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.GetPart(cmd.Context(), args[0]), printPart)
			})
		},
	}
}

func printPart(p bom.Part) {
	printKeyValue("Part number", p.PartNumber)
	printKeyValue("Name", p.Name)
	printKeyValue("Last updated", formatTime(p.LastUpdated))
	if len(p.Attributes) == 0 {
		return
	}
	rows := make([][]string, 0, len(p.Attributes))
	for _, k := range p.Attributes.Keys() {
		v := p.Attributes[k]
		rows = append(rows, []string{k, v.String(), v.Kind().String()})
	}
	printTable([]string{"Attribute", "Value", "Type"}, rows)
}

func (c *CLI) partListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [query]",
		Short: "List parts, optionally filtered by a part number or name substring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.ListParts(cmd.Context(), query), func(l backend.PartList) {
					if l.Count == 0 {
						printInfo("No parts found")
						return
					}
					rows := make([][]string, len(l.Parts))
					for i, p := range l.Parts {
						rows[i] = []string{p.PartNumber, p.Name, formatAttrs(p.Attributes)}
					}
					printTable([]string{"Part number", "Name", "Attributes"}, rows)
					printDetail("%d part(s)", l.Count)
				})
			})
		},
	}
}

func (c *CLI) partAttrsCommand() *cobra.Command {
	var attrs []string
	var replace bool
	cmd := &cobra.Command{
		Use:               "attrs <part-number>",
		ValidArgsFunction: c.completeParts,
		Short:             "Update a part's attributes",
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				res := b.UpdatePartAttributes(cmd.Context(), args[0], a, replace)
				return emit(c, res, func(ch bom.PartChange) {
					printSuccess("Updated %s: %s", ch.Part.PartNumber, formatAttrs(ch.Part.Attributes))
				})
			})
		},
	}
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "attribute key=value (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace attributes instead of merging")
	return cmd
}

func (c *CLI) partRmCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:               "rm <part-number>",
		ValidArgsFunction: c.completeParts,
		Short:             "Delete a part",
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.DeletePart(cmd.Context(), args[0], force), func(d backend.PartDeletion) {
					printSuccess("Deleted part %s", d.Part.PartNumber)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete even if relationships still reference the part")
	return cmd
}

// completeParts offers part numbers for shell completion.
func (c *CLI) completeParts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ctx := context.Background()
	var out []string
	_ = c.withBackend(ctx, func(b *backend.Backend) error {
		res := b.ListParts(ctx, toComplete)
		for _, p := range res.Data.Parts {
			out = append(out, p.PartNumber+"\t"+p.Name)
		}
		return nil
	})
	return out, cobra.ShellCompDirectiveNoFileComp
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
