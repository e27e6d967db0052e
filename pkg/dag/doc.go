// Package dag provides the edge index behind the BOM relationship graph.
//
// # Overview
//
// A bill of materials is a directed acyclic graph: assemblies point at the
// parts they consume, and the same part may be consumed by several
// assemblies. This package stores the structure of that graph (edge IDs and
// endpoints only; quantities and attributes live in package bom) and keeps
// it acyclic.
//
// # Cycle Prevention
//
// [DAG.Put] is the only way to add an edge during normal operation. It runs
// a downward reachability search from the new child before inserting; if the
// parent is reachable the insertion is rejected with a cycle path and nothing
// changes. Because every insertion is checked, the graph is a DAG at all
// times and traversals built on it always terminate.
//
// [DAG.Validate] performs a full scan and is only needed by [DAG.Load], when
// edges come from persisted state that may have been edited by hand.
//
// # Basic Usage
//
//	g := dag.New()
//	_ = g.Put(dag.Edge{ID: "r1", From: "bike", To: "wheel"})
//	_ = g.Put(dag.Edge{ID: "r2", From: "wheel", To: "spoke"})
//	err := g.Put(dag.Edge{ID: "r3", From: "spoke", To: "bike"}) // cycle
//
// # Concurrency
//
// DAG instances are not safe for concurrent use. The backend package guards
// the graph with a reader/writer lock.
package dag
