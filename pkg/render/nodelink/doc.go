// Package nodelink renders BOM subgraphs as node-link diagrams.
//
// Parts appear as boxes and relationships as arrows labelled with their
// quantity. [ToDOT] produces Graphviz DOT source; [RenderSVG] lays it out
// in-process with [github.com/goccy/go-graphviz]:
//
//	sub := traverse.Subgraph(g, "BIKE")
//	dot := nodelink.ToDOT(sub, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// [Render] dispatches on a [render.Format]; PDF and PNG output require
// librsvg (rsvg-convert).
package nodelink
