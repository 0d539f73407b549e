// Package dag provides a directed dependency graph over pipeline assets.
// Unlike an execution DAG it tolerates cycles: real pipelines contain them,
// and every traversal here carries a visited set so it always terminates.
package dag

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/assetlineage/pkg/core"
)

// Node represents an asset in the graph.
type Node struct {
	// ID is the asset name
	ID string
	// Asset is the asset the node stands for
	Asset *core.Asset
}

// Graph is a directed graph with edges oriented upstream -> downstream.
type Graph struct {
	nodes    map[string]*Node
	order    []string            // insertion order of node IDs
	children map[string][]string // upstream -> downstreams
	parents  map[string][]string // downstream -> upstreams
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node, replacing the asset if the node already exists.
func (g *Graph) AddNode(id string, asset *core.Asset) {
	if n, exists := g.nodes[id]; exists {
		n.Asset = asset
		return
	}
	g.nodes[id] = &Node{ID: id, Asset: asset}
	g.order = append(g.order, id)
	g.children[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from upstream to downstream.
// Both nodes must exist. Duplicate edges are ignored; self-loops are kept,
// since an asset can legitimately list itself.
func (g *Graph) AddEdge(upstreamID, downstreamID string) error {
	if _, exists := g.nodes[upstreamID]; !exists {
		return fmt.Errorf("upstream node %q does not exist", upstreamID)
	}
	if _, exists := g.nodes[downstreamID]; !exists {
		return fmt.Errorf("downstream node %q does not exist", downstreamID)
	}

	if !contains(g.children[upstreamID], downstreamID) {
		g.children[upstreamID] = append(g.children[upstreamID], downstreamID)
	}
	if !contains(g.parents[downstreamID], upstreamID) {
		g.parents[downstreamID] = append(g.parents[downstreamID], upstreamID)
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Parents returns the direct upstreams of a node.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct downstreams of a node.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.children {
		count += len(children)
	}
	return count
}

// Upstream returns every node the given node transitively depends on,
// sorted. The node itself is included only if it sits on a cycle.
func (g *Graph) Upstream(id string) []string {
	return g.closure(id, g.parents)
}

// Downstream returns every node that transitively depends on the given
// node, sorted. The node itself is included only if it sits on a cycle.
func (g *Graph) Downstream(id string) []string {
	return g.closure(id, g.children)
}

func (g *Graph) closure(id string, next map[string][]string) []string {
	seen := make(map[string]bool)
	stack := append([]string(nil), next[id]...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[current] {
			continue
		}
		seen[current] = true
		stack = append(stack, next[current]...)
	}

	result := make([]string, 0, len(seen))
	for nodeID := range seen {
		result = append(result, nodeID)
	}
	sort.Strings(result)
	return result
}

// FindCycle returns one cycle as a closed path (first and last element
// equal), or nil if the graph is acyclic. Nodes are visited in sorted
// order so the reported cycle is stable.
func (g *Graph) FindCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	from := make(map[string]string)

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, childID := range g.children[id] {
			if !visited[childID] {
				from[childID] = id
				if dfs(childID) {
					return true
				}
			} else if onStack[childID] {
				cycle = []string{childID}
				for curr := id; curr != childID; curr = from[curr] {
					cycle = append([]string{curr}, cycle...)
				}
				cycle = append([]string{childID}, cycle...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return cycle
		}
	}
	return nil
}

// Roots returns nodes with no upstreams, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.sortedIDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes with no downstreams, sorted.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.sortedIDs() {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

func (g *Graph) sortedIDs() []string {
	ids := append([]string(nil), g.order...)
	sort.Strings(ids)
	return ids
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
