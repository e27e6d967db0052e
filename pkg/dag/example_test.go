package dag_test

import (
	"fmt"

	"github.com/mbuck21/BOM-Manager/pkg/dag"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

func ExampleDAG_Put() {
	// bike -> wheel -> spoke
	g := dag.New()
	_ = g.Put(dag.Edge{ID: "r1", From: "bike", To: "wheel"})
	_ = g.Put(dag.Edge{ID: "r2", From: "wheel", To: "spoke"})

	err := g.Put(dag.Edge{ID: "r3", From: "spoke", To: "bike"})
	fmt.Println(errors.UserMessage(err))
	fmt.Println("Edges:", g.EdgeCount())
	// Output:
	// Cycle detected: spoke -> bike -> wheel -> spoke
	// Edges: 2
}

func ExampleDAG_Reachable() {
	g := dag.New()
	_ = g.Put(dag.Edge{ID: "r1", From: "frame", To: "tube"})
	_ = g.Put(dag.Edge{ID: "r2", From: "frame", To: "bolt"})
	_ = g.Put(dag.Edge{ID: "r3", From: "tube", To: "bolt"})

	fmt.Println(g.Reachable("frame"))
	fmt.Println(g.Reachable("tube"))
	// Output:
	// [bolt frame tube]
	// [bolt tube]
}
