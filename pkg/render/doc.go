// Package render holds output-format helpers shared by the BOM renderers.
//
// The [nodelink] subpackage turns a BOM subgraph into Graphviz DOT and SVG.
// [ToPDF] and [ToPNG] convert that SVG further using the external
// rsvg-convert tool (from librsvg):
//
//	dot := nodelink.ToDOT(sub, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//
// [nodelink]: github.com/mbuck21/BOM-Manager/pkg/render/nodelink
package render
