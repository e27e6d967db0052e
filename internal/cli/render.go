package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/render"
	"github.com/mbuck21/BOM-Manager/pkg/render/nodelink"
	"github.com/mbuck21/BOM-Manager/pkg/result"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file path; "-" writes to stdout
	format     string   // dot, svg, pdf or png
	detailed   bool     // show part names and attributes in nodes
	attributes []string // attribute whitelist for detailed labels
	scale      float64  // PNG scale factor
}

// renderCommand creates the render command for drawing the subgraph under a
// part as a node-link diagram.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{scale: 2}

	cmd := &cobra.Command{
		Use:   "render <root>",
		Short: "Draw the structure under a part",
		Long: `Draw everything reachable from a part as a Graphviz node-link diagram.

Edges are labelled with quantities. Parts missing from the catalog are drawn
dashed. PDF and PNG output require rsvg-convert (librsvg).`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(cmdFormat(opts))
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return c.runRender(cmd.Context(), b, args[0], format, &opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <root>.<format>, - for stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: svg (default), dot, pdf, png; inferred from -o when omitted")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show part names and attributes")
	cmd.Flags().StringSliceVar(&opts.attributes, "attr", nil, "attributes to show with --detailed (repeatable)")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")

	return cmd
}

// cmdFormat returns the requested format, falling back to the output
// file's extension.
func cmdFormat(opts renderOpts) string {
	if opts.format != "" || opts.output == "" || opts.output == "-" {
		return opts.format
	}
	ext := strings.TrimPrefix(filepath.Ext(opts.output), ".")
	if _, err := render.ParseFormat(ext); err == nil {
		return ext
	}
	return ""
}

func (c *CLI) runRender(ctx context.Context, b *backend.Backend, root string, format render.Format, opts *renderOpts) error {
	logger := log.FromContext(ctx)
	step := startStep(logger, "render")

	res := b.Subgraph(ctx, root)
	if !res.OK {
		return emit(c, res, nil)
	}
	sub := res.Data
	if len(sub.Parts) == 0 && len(sub.Relationships) == 0 {
		if part := b.GetPart(ctx, root); !part.OK {
			return emit(c, part, nil)
		}
	}
	logger.Debugf("Loaded subgraph: %d nodes, %d edges", len(sub.Nodes), len(sub.Relationships))

	dot := nodelink.ToDOT(sub, nodelink.Options{Detailed: opts.detailed, Attributes: opts.attributes})

	spin := c.spin(ctx, fmt.Sprintf("Rendering %s", format))
	data, err := nodelink.Render(ctx, dot, format, opts.scale)
	spin.Stop()
	if err != nil {
		return err
	}

	if opts.output == "-" {
		_, err := stdout.Write(data)
		return err
	}
	path := opts.output
	if path == "" {
		path = outputName(sub.Root, format)
	}
	if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	step.done("Rendered "+sub.Root, "file", path, "format", format, "bytes", len(data))

	return emit(c, renderedResult(path, format, sub, res.Warnings), func(r renderReport) {
		printSuccess("Rendered %s", StyleValue.Render(r.Root))
		printStats(plural(r.Nodes, "node"), plural(r.Edges, "edge"), string(r.Format))
		printFile(r.File)
	})
}

// renderReport is the JSON payload of a successful render.
type renderReport struct {
	Root   string        `json:"root_part_number"`
	File   string        `json:"file"`
	Format render.Format `json:"format"`
	Nodes  int           `json:"nodes"`
	Edges  int           `json:"edges"`
}

func renderedResult(path string, format render.Format, sub traverse.Result, warnings []string) result.Result[renderReport] {
	return result.Ok(renderReport{
		Root:   sub.Root,
		File:   path,
		Format: format,
		Nodes:  len(sub.Nodes),
		Edges:  len(sub.Relationships),
	}, warnings...)
}

// outputName derives a file name from a part number. Path separators are
// replaced so the file lands in the working directory.
func outputName(root string, format render.Format) string {
	name := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(root)
	return name + "." + string(format)
}
