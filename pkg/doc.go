// Package pkg holds the libraries behind the bom command and HTTP API.
//
// # Overview
//
// A bill of materials is a catalog of parts plus a quantity-weighted
// parent/child graph over them. The pkg directory is organized by concern:
//
//  1. [bom], [dag] - Data model and the acyclic edge index
//  2. [traverse], [rollup] - Path enumeration and attribute/weight rollups
//  3. [snapshot], [diff] - Content-addressed captures and their comparison
//  4. [backend] - The thread-safe facade every surface calls
//  5. [storage], [cache] - Persistence and rollup caching
//  6. [interchange], [render] - CSV import/export and Graphviz diagrams
//  7. [config], [server], [observability] - Wiring, HTTP, metrics hooks
//
// # Architecture
//
// Every mutation flows through the backend:
//
//	CLI / HTTP request
//	         ↓
//	    [backend] (validate, lock, apply to an in-memory [bom.Graph])
//	         ↓
//	    [storage] (persist the whole state atomically, revert on failure)
//	         ↓
//	    [result] envelope {ok, data, errors, warnings}
//
// Reads take a shared lock and never observe a partially applied mutation.
//
// # Quick Start
//
//	b, _ := backend.Open(ctx, backend.Options{})
//	defer b.Close()
//
//	b.CreatePart(ctx, bom.PartInput{PartNumber: "BIKE", Name: "Bike"})
//	b.CreatePart(ctx, bom.PartInput{PartNumber: "WHEEL", Name: "Wheel",
//	    Attributes: bom.Attributes{"unit_weight": bom.Number(2)}})
//	b.UpsertRelationship(ctx, bom.RelationshipInput{Parent: "BIKE", Child: "WHEEL", Qty: 2})
//
//	res := b.WeightRollup(ctx, b.WeightDefaults("BIKE"))
//	fmt.Println(res.Data.Total) // 4
//
// [bom]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/bom
// [dag]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/dag
// [traverse]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/traverse
// [rollup]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/rollup
// [snapshot]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/snapshot
// [diff]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/diff
// [backend]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/backend
// [storage]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/storage
// [cache]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/cache
// [interchange]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/interchange
// [render]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/render
// [config]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/config
// [server]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/server
// [observability]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/observability
//
// [result]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/result
// [bom.Graph]: https://pkg.go.dev/github.com/mbuck21/BOM-Manager/pkg/bom#Graph
package pkg
