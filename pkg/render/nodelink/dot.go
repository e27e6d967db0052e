package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/render"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the part name and attributes to node labels.
	// When false, only the part number is shown.
	Detailed bool
	// Attributes restricts the attributes shown in detailed labels.
	// Empty shows every attribute.
	Attributes []string
}

// ToDOT converts a subgraph to Graphviz DOT. Nodes appear in part number
// order and edges in (parent, child, rel id) order, so the output is stable.
//
// The root is drawn bold. Part numbers missing from the catalog are drawn
// with dashed outlines and grey fill. Edges are labelled with their quantity.
func ToDOT(sub traverse.Result, opts Options) string {
	parts := make(map[string]bom.Part, len(sub.Parts))
	for _, p := range sub.Parts {
		parts[p.PartNumber] = p
	}

	var buf bytes.Buffer
	buf.WriteString("digraph BOM {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=12];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, id := range sub.Nodes {
		p, ok := parts[id]
		label := fmtLabel(id, p, ok, opts)
		attrs := fmtAttrs(label, ok, id == sub.Root)
		fmt.Fprintf(&buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, r := range sub.Relationships {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", r.Parent, r.Child, "×"+strconv.FormatFloat(r.Qty, 'f', -1, 64))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(id string, p bom.Part, known bool, opts Options) string {
	if !opts.Detailed || !known {
		return id
	}
	lines := []string{id}
	if p.Name != "" && p.Name != id {
		lines = append(lines, p.Name)
	}
	for _, k := range p.Attributes.Keys() {
		if len(opts.Attributes) > 0 && !slices.Contains(opts.Attributes, k) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, p.Attributes[k]))
	}
	return strings.Join(lines, "\n")
}

func fmtAttrs(label string, known, root bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case !known:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	case root:
		attrs = append(attrs, "penwidth=2", "fillcolor=\"#e8f0fe\"")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// Render produces the requested format from DOT source. scale only applies
// to PNG.
func Render(ctx context.Context, dot string, format render.Format, scale float64) ([]byte, error) {
	if format == render.FormatDOT {
		return []byte(dot), nil
	}
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	switch format {
	case render.FormatPDF:
		return render.ToPDF(ctx, svg)
	case render.FormatPNG:
		return render.ToPNG(ctx, svg, scale)
	}
	return svg, nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root svg tag so the drawing scales from a
// zero origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
