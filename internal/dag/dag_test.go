package dag

import (
	"reflect"
	"testing"
)

func newChain(ids ...string) *Graph {
	g := NewGraph()
	for _, id := range ids {
		g.AddNode(id, nil)
	}
	for i := 0; i+1 < len(ids); i++ {
		_ = g.AddEdge(ids[i], ids[i+1])
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := newChain("a", "b", "c")

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}

	// Duplicate edges are ignored
	if err := g.AddEdge("a", "b"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected duplicate edge to be ignored, got %d edges", g.EdgeCount())
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent downstream node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent upstream node")
	}
}

func TestGraph_AddEdge_SelfLoopAllowed(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "a"); err != nil {
		t.Errorf("self-loop should be accepted, got %v", err)
	}
	if cycle := g.FindCycle(); !reflect.DeepEqual(cycle, []string{"a", "a"}) {
		t.Errorf("expected self-loop cycle [a a], got %v", cycle)
	}
}

func TestGraph_ParentsAndChildren(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	// c depends on both a and b
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")

	if parents := g.Parents("c"); len(parents) != 2 {
		t.Errorf("expected c to have 2 parents, got %d", len(parents))
	}
	if children := g.Children("a"); !reflect.DeepEqual(children, []string{"b", "c"}) {
		t.Errorf("expected children [b c] in insertion order, got %v", children)
	}
}

func TestGraph_Nodes_InsertionOrder(t *testing.T) {
	g := newChain("z", "m", "a")

	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	if !reflect.DeepEqual(ids, []string{"z", "m", "a"}) {
		t.Errorf("expected insertion order, got %v", ids)
	}
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := newChain("a", "b", "c", "d")

	if got := g.Upstream("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Upstream(c) = %v", got)
	}
	if got := g.Downstream("b"); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("Downstream(b) = %v", got)
	}
	if got := g.Upstream("a"); len(got) != 0 {
		t.Errorf("Upstream(a) should be empty, got %v", got)
	}
	if got := g.Downstream("unknown"); len(got) != 0 {
		t.Errorf("Downstream(unknown) should be empty, got %v", got)
	}
}

func TestGraph_ClosureTerminatesOnCycle(t *testing.T) {
	g := newChain("a", "b", "c")
	_ = g.AddEdge("c", "a")

	want := []string{"a", "b", "c"}
	if got := g.Upstream("b"); !reflect.DeepEqual(got, want) {
		t.Errorf("Upstream(b) on cycle = %v, want %v", got, want)
	}
	if got := g.Downstream("b"); !reflect.DeepEqual(got, want) {
		t.Errorf("Downstream(b) on cycle = %v, want %v", got, want)
	}
}

func TestGraph_FindCycle(t *testing.T) {
	acyclic := newChain("a", "b", "c")
	if cycle := acyclic.FindCycle(); cycle != nil {
		t.Errorf("expected no cycle, got %v", cycle)
	}

	cyclic := newChain("a", "b", "c")
	_ = cyclic.AddEdge("c", "a")
	cycle := cyclic.FindCycle()
	if len(cycle) != 4 {
		t.Fatalf("expected closed cycle path of 4 entries, got %v", cycle)
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle path should be closed, got %v", cycle)
	}
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "d")

	if roots := g.Roots(); !reflect.DeepEqual(roots, []string{"a", "b"}) {
		t.Errorf("Roots() = %v", roots)
	}
	if leaves := g.Leaves(); !reflect.DeepEqual(leaves, []string{"d"}) {
		t.Errorf("Leaves() = %v", leaves)
	}
}
