// Package rollup aggregates numeric part attributes over the BOM graph.
//
// Every rollup enumerates paths from a root with package traverse. A path's
// multiplier is the product of edge quantities along it, so a part used
// twice by an assembly that is itself used three times counts six times.
//
// [Numeric] sums one attribute over every path terminal. [Weight] is the
// weight-specific variant with override semantics: a node that declares its
// own unit weight stands for its whole sub-assembly, and the walk does not
// descend below it on that path.
//
// Non-fatal anomalies (missing parts, missing or non-numeric attributes,
// unresolved leaves) are reported as warnings on the result. Only invalid
// options produce an error.
package rollup
