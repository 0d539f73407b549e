// Package impact computes transitive upstream and downstream reachability
// over a rendered edge set, used to highlight everything connected to a
// hovered or focused node.
package impact

import (
	"sort"

	"github.com/leapstack-labs/assetlineage/pkg/core"
)

// Result is the set of nodes and edges reachable from a seed node.
type Result struct {
	Nodes map[string]struct{}
	Edges map[string]struct{}
}

// HasNode reports whether id is in the result.
func (r Result) HasNode(id string) bool {
	_, ok := r.Nodes[id]
	return ok
}

// HasEdge reports whether the edge with the given ID is in the result.
func (r Result) HasEdge(id string) bool {
	_, ok := r.Edges[id]
	return ok
}

// SortedNodes returns the node IDs in lexical order.
func (r Result) SortedNodes() []string {
	return sortedKeys(r.Nodes)
}

// Upstream returns every node that reaches nodeID by following edges
// backward, together with the edges walked. nodeID is always included.
func Upstream(nodeID string, edges []core.GraphEdge) Result {
	byTarget := make(map[string][]core.GraphEdge)
	for _, e := range edges {
		byTarget[e.Target] = append(byTarget[e.Target], e)
	}
	return walk(nodeID, byTarget, func(e core.GraphEdge) string { return e.Source })
}

// Downstream returns every node reachable from nodeID by following edges
// forward, together with the edges walked. nodeID is always included.
func Downstream(nodeID string, edges []core.GraphEdge) Result {
	bySource := make(map[string][]core.GraphEdge)
	for _, e := range edges {
		bySource[e.Source] = append(bySource[e.Source], e)
	}
	return walk(nodeID, bySource, func(e core.GraphEdge) string { return e.Target })
}

// walk is a breadth-first search from seed over adj. The visited set is
// shared by the whole traversal, so each node is enqueued at most once.
func walk(seed string, adj map[string][]core.GraphEdge, next func(core.GraphEdge) string) Result {
	res := Result{
		Nodes: map[string]struct{}{seed: {}},
		Edges: make(map[string]struct{}),
	}
	queue := []string{seed}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range adj[cur] {
			res.Edges[e.ID] = struct{}{}
			n := next(e)
			if _, seen := res.Nodes[n]; seen {
				continue
			}
			res.Nodes[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return res
}

// Highlight partitions a view around a seed node.
type Highlight struct {
	Seed       string   `json:"seed"`
	Upstream   []string `json:"upstream"`
	Downstream []string `json:"downstream"`
	Connected  []string `json:"connected"`
	Faded      []string `json:"faded"`
	Edges      []string `json:"edges"`
}

// Analyze computes the highlight for nodeID. Connected is the union of its
// upstream and downstream sets; every other entry of nodeIDs is faded. Edges
// lists the IDs of edges walked in either direction. All slices are sorted.
func Analyze(nodeID string, nodeIDs []string, edges []core.GraphEdge) Highlight {
	up := Upstream(nodeID, edges)
	down := Downstream(nodeID, edges)

	connected := make(map[string]struct{}, len(up.Nodes)+len(down.Nodes))
	for id := range up.Nodes {
		connected[id] = struct{}{}
	}
	for id := range down.Nodes {
		connected[id] = struct{}{}
	}

	walked := make(map[string]struct{}, len(up.Edges)+len(down.Edges))
	for id := range up.Edges {
		walked[id] = struct{}{}
	}
	for id := range down.Edges {
		walked[id] = struct{}{}
	}

	faded := map[string]struct{}{}
	for _, id := range nodeIDs {
		if _, ok := connected[id]; !ok {
			faded[id] = struct{}{}
		}
	}

	return Highlight{
		Seed:       nodeID,
		Upstream:   up.SortedNodes(),
		Downstream: down.SortedNodes(),
		Connected:  sortedKeys(connected),
		Faded:      sortedKeys(faded),
		Edges:      sortedKeys(walked),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
