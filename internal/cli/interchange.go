package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/interchange"
	"github.com/mbuck21/BOM-Manager/pkg/result"
)

// importCommand creates the import command for loading CSV files.
func (c *CLI) importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load parts or relationships from CSV",
		Long: `Load parts or relationships from CSV. Rows that fail validation are
reported and skipped; the remaining rows are applied in one write.
Use - as the file name to read from stdin.`,
	}
	cmd.AddCommand(c.importPartsCommand())
	cmd.AddCommand(c.importRelsCommand())
	return cmd
}

func (c *CLI) importPartsCommand() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "parts <file.csv>",
		Short: "Import parts (part_number,name[,attributes_json][,attr...])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				res := c.runImport(cmd.Context(), args[0], "parts", func(ctx context.Context) result.Result[interchange.ImportReport] {
					if args[0] == "-" {
						return b.ImportParts(ctx, os.Stdin, "stdin", replace)
					}
					return b.ImportPartsCSV(ctx, args[0], replace)
				})
				return emit(c, res, printImportReport)
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace attributes instead of merging")
	return cmd
}

func (c *CLI) importRelsCommand() *cobra.Command {
	var replace, allowDangling bool
	cmd := &cobra.Command{
		Use:     "rels <file.csv>",
		Aliases: []string{"relationships"},
		Short:   "Import relationships (parent_part_number,child_part_number,qty[,rel_id][,...])",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				res := c.runImport(cmd.Context(), args[0], "relationships", func(ctx context.Context) result.Result[interchange.ImportReport] {
					if args[0] == "-" {
						return b.ImportRelationships(ctx, os.Stdin, "stdin", allowDangling, replace)
					}
					return b.ImportRelationshipsCSV(ctx, args[0], allowDangling, replace)
				})
				return emit(c, res, printImportReport)
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace attributes instead of merging")
	cmd.Flags().BoolVar(&allowDangling, "allow-dangling", false, "accept references to unknown parts")
	return cmd
}

func (c *CLI) runImport(ctx context.Context, file, kind string, fn func(context.Context) result.Result[interchange.ImportReport]) result.Result[interchange.ImportReport] {
	step := startStep(log.FromContext(ctx), "import")
	spin := c.spin(ctx, fmt.Sprintf("Importing %s from %s", kind, file))
	res := fn(ctx)
	spin.Stop()
	if res.OK {
		step.done("Imported "+kind,
			"file", file,
			"created", res.Data.Created,
			"updated", res.Data.Updated,
			"failed", res.Data.FailedRows)
	}
	return res
}

func printImportReport(r interchange.ImportReport) {
	if r.FailedRows == 0 {
		printSuccess("Imported %s", StyleValue.Render(r.File))
	} else {
		printWarning("Imported %s with %s", r.File, plural(r.FailedRows, "failed row"))
	}
	printStats(fmt.Sprintf("%d created", r.Created), fmt.Sprintf("%d updated", r.Updated), fmt.Sprintf("%d failed", r.FailedRows))
	for _, e := range r.RowErrors {
		printDetail("%s", e)
	}
}

// exportCommand creates the export command for writing CSV files.
func (c *CLI) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write parts or relationships to CSV",
	}
	cmd.AddCommand(c.exportSubcommand("parts", "Export the catalog", func(ctx context.Context, b *backend.Backend, path string, opts interchange.ExportOptions) result.Result[interchange.ExportReport] {
		return b.ExportPartsCSV(ctx, path, opts)
	}))
	rels := c.exportSubcommand("rels", "Export every relationship", func(ctx context.Context, b *backend.Backend, path string, opts interchange.ExportOptions) result.Result[interchange.ExportReport] {
		return b.ExportRelationshipsCSV(ctx, path, opts)
	})
	rels.Aliases = []string{"relationships"}
	cmd.AddCommand(rels)
	return cmd
}

type exportFunc func(context.Context, *backend.Backend, string, interchange.ExportOptions) result.Result[interchange.ExportReport]

func (c *CLI) exportSubcommand(name, short string, fn exportFunc) *cobra.Command {
	var opts interchange.ExportOptions
	cmd := &cobra.Command{
		Use:   name + " <file.csv>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, fn(cmd.Context(), b, args[0], opts), func(r interchange.ExportReport) {
					printSuccess("Exported %s", plural(r.Rows, "row"))
					printDetail("Columns: %s", strings.Join(r.Columns, ", "))
					printFile(r.File)
				})
			})
		},
	}
	cmd.Flags().StringSliceVar(&opts.Attributes, "attr", nil, "attribute to export as its own column (repeatable)")
	cmd.Flags().BoolVar(&opts.IncludeAttributesJSON, "attributes-json", false, "add an attributes_json column with every attribute")
	return cmd
}
