package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// relCommand creates the relationship command.
func (c *CLI) relCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rel",
		Short: "Manage parent/child relationships",
	}
	cmd.AddCommand(c.relSetCommand())
	cmd.AddCommand(c.relRmCommand())
	return cmd
}

func (c *CLI) relSetCommand() *cobra.Command {
	var (
		qty           float64
		relID         string
		attrs         []string
		allowDangling bool
		replace       bool
	)
	cmd := &cobra.Command{
		Use:   "set <parent> <child>",
		Short: "Create or update a relationship",
		Long: `Create or update a parent/child relationship.

Without --id an existing relationship between the same parent and child is
updated. Relationships that would close a cycle are rejected.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				res := b.UpsertRelationship(cmd.Context(), bom.RelationshipInput{
					RelID:             relID,
					Parent:            args[0],
					Child:             args[1],
					Qty:               qty,
					Attributes:        a,
					AllowDangling:     allowDangling,
					ReplaceAttributes: replace,
				})
				return emit(c, res, func(ch bom.RelationshipChange) {
					r := ch.Relationship
					verb := "Updated"
					if ch.Created {
						verb = "Created"
					}
					printSuccess("%s %s: %s %s %s ×%s", verb, StyleDim.Render(r.RelID),
						StyleValue.Render(r.Parent), iconArrow, StyleValue.Render(r.Child), formatFloat(r.Qty))
				})
			})
		},
	}
	cmd.Flags().Float64VarP(&qty, "qty", "q", 1, "quantity of child per parent (> 0)")
	cmd.Flags().StringVar(&relID, "id", "", "relationship id to update")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "attribute key=value (repeatable)")
	cmd.Flags().BoolVar(&allowDangling, "allow-dangling", false, "store even if a part is missing from the catalog")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace attributes instead of merging")
	return cmd
}

func (c *CLI) relRmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <rel-id>",
		Short: "Delete a relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.DeleteRelationship(cmd.Context(), args[0]), func(d backend.RelationshipDeletion) {
					printSuccess("Deleted %s (%s %s %s)", d.Relationship.RelID, d.Relationship.Parent, iconArrow, d.Relationship.Child)
				})
			})
		},
	}
}

func (c *CLI) childrenCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "children <part-number>",
		Short:             "List the direct children of a part",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.ChildrenOf(cmd.Context(), args[0]), func(n backend.Neighbours) {
					printLinks(n, "Child", "children", func(r bom.Relationship) string { return r.Child })
				})
			})
		},
	}
}

func (c *CLI) parentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "parents <part-number>",
		Short:             "List the direct parents of a part",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.ParentsOf(cmd.Context(), args[0]), func(n backend.Neighbours) {
					printLinks(n, "Parent", "parents", func(r bom.Relationship) string { return r.Parent })
				})
			})
		},
	}
}

func printLinks(n backend.Neighbours, role, none string, far func(bom.Relationship) string) {
	if len(n.Links) == 0 {
		printInfo("%s has no %s", n.PartNumber, none)
		return
	}
	rows := make([][]string, len(n.Links))
	for i, l := range n.Links {
		name := StyleWarning.Render("(missing)")
		if l.Part != nil {
			name = l.Part.Name
		}
		rows[i] = []string{far(l.Relationship), name, formatFloat(l.Relationship.Qty), l.Relationship.RelID}
	}
	printTable([]string{role, "Name", "Qty", "Rel id"}, rows)
}

func (c *CLI) subgraphCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:               "subgraph <root>",
		Short:             "Show or export everything reachable from a part",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				res := b.Subgraph(cmd.Context(), args[0])
				if output != "" && res.OK {
					if err := writeJSONFile(output, res.Data); err != nil {
						return err
					}
				}
				return emit(c, res, func(sub traverse.Result) {
					printSuccess("Subgraph of %s", StyleValue.Render(sub.Root))
					printStats(plural(len(sub.Nodes), "node"), plural(len(sub.Relationships), "relationship"), plural(len(sub.Missing), "missing part"))
					if output != "" {
						printFile(output)
						return
					}
					rows := make([][]string, len(sub.Relationships))
					for i, r := range sub.Relationships {
						rows[i] = []string{r.Parent, r.Child, formatFloat(r.Qty), r.RelID}
					}
					if len(rows) > 0 {
						printTable([]string{"Parent", "Child", "Qty", "Rel id"}, rows)
					}
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the subgraph as JSON to this file")
	return cmd
}

// writeJSONFile writes v as indented JSON, atomically.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", path)
	}
	if err := storage.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	return nil
}
