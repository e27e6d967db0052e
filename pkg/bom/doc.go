// Package bom defines the bill-of-materials data model and the mutable
// part/relationship graph.
//
// # Data Model
//
// A [Part] is a catalog record keyed by its part number. A [Relationship] is
// a parent→child edge with a positive quantity: "one bicycle uses two
// wheels". Both carry free-form [Attributes] whose values are a closed
// tagged union ([Number], [Bool], [Text]); rollups only read numbers.
//
// A [Snapshot] is a frozen, canonically ordered copy of the subgraph under a
// root part; see package snapshot for how snapshots are created.
//
// # Graph
//
// [Graph] combines a [Catalog] with the relationship edges. Relationship
// upserts are validated (ids, quantity, endpoint existence) and cycle
// checked before anything changes:
//
//	g := bom.NewGraph()
//	g.UpsertPart(bom.PartInput{PartNumber: "BIKE", Name: "Bicycle"})
//	g.UpsertPart(bom.PartInput{PartNumber: "WHEEL", Name: "Wheel"})
//	g.UpsertRelationship(bom.RelationshipInput{Parent: "BIKE", Child: "WHEEL", Qty: 2})
//
// Mutations return the previous value so callers that persist after
// applying a change can roll it back with [Graph.RestorePart] or
// [Graph.RestoreRelationship].
package bom
