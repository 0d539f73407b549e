// Package lineage builds asset- and column-level lineage from a pipeline
// parse response and projects it into renderable graphs.
//
// Every function here is pure: inputs are never mutated, outputs are freshly
// allocated, and nothing is cached between calls, so concurrent use needs no
// locking. Traversals carry visited sets and terminate on cyclic data.
//
// # Basic Usage
//
//	raw, err := pipeline.Decode(data)
//	if err != nil {
//	    return err
//	}
//
//	l := lineage.Build(raw)
//	view := lineage.Project(l, "mart.orders").WithColumnEdges(l)
//
//	for _, node := range view.Nodes {
//	    fmt.Println(node.ID, node.Data.IsFocusAsset)
//	}
package lineage
