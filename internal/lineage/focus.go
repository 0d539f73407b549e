package lineage

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/assetlineage/pkg/core"
)

// Direction selects which neighbors of a node to materialize.
type Direction string

// Direction constants.
const (
	DirectionUpstream   Direction = "upstream"
	DirectionDownstream Direction = "downstream"
	DirectionBoth       Direction = "both"
)

// ParseDirection parses a direction name. The empty string means both.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case "":
		return DirectionBoth, nil
	case DirectionUpstream, DirectionDownstream, DirectionBoth:
		return d, nil
	default:
		return "", fmt.Errorf("invalid direction %q (want upstream, downstream or both)", s)
	}
}

// ParseExpand splits an expansion request of the form name[:direction].
func ParseExpand(spec string) (string, Direction, error) {
	name, dir, _ := strings.Cut(spec, ":")
	if name == "" {
		return "", "", fmt.Errorf("invalid expansion %q: missing asset name", spec)
	}
	d, err := ParseDirection(dir)
	if err != nil {
		return "", "", err
	}
	return name, d, nil
}

// View is a renderable node/edge set.
type View struct {
	Nodes []core.GraphNode `json:"nodes"`
	Edges []core.GraphEdge `json:"edges"`
}

// NodeSet returns the names of the materialized nodes.
func (v *View) NodeSet() NameSet {
	set := make(NameSet, len(v.Nodes))
	for _, n := range v.Nodes {
		set[n.ID] = struct{}{}
	}
	return set
}

// WithColumnEdges returns a copy of the view with column lineage edges added
// for the materialized nodes.
func (v *View) WithColumnEdges(l *Lineage) *View {
	out := &View{
		Nodes: append([]core.GraphNode{}, v.Nodes...),
		Edges: append([]core.GraphEdge{}, v.Edges...),
	}
	out.Edges = append(out.Edges, SynthesizeColumnEdges(v.NodeSet(), l.ColumnLineage, l.AssetMap)...)
	return out
}

// Project builds the focus view of an asset: the focus node, its direct
// asset-type upstreams and downstreams, and one edge per relation touching
// the focus, oriented upstream -> downstream. Order follows the focus
// asset's upstream list, then its downstream list. An unknown focus yields
// an empty view.
func Project(l *Lineage, focus string) *View {
	vb := newViewBuilder(l)

	focusAsset, ok := l.AssetMap[focus]
	if !ok {
		return vb.view()
	}

	vb.addNode(focusAsset, true)
	vb.addNeighbors(focusAsset, DirectionBoth)
	return vb.view()
}

// Full returns the view of the whole snapshot: every asset in declaration
// order and one edge per resolved asset-type upstream.
func Full(l *Lineage) *View {
	vb := newViewBuilder(l)
	for _, a := range l.Assets {
		vb.addNode(a, false)
	}
	for _, a := range l.Assets {
		for _, name := range a.AssetUpstreams() {
			if up, ok := l.AssetMap[name]; ok && up != a {
				vb.addEdge(assetEdge(up.Name, a.Name))
			}
		}
	}
	return vb.view()
}

// Expand returns a copy of view with the direct neighbors of the named node
// materialized in the given direction, the way a click on a node's expand
// handle grows the graph. Expanding a node that is not in the view returns
// an unchanged copy.
func Expand(view *View, l *Lineage, name string, dir Direction) *View {
	vb := newViewBuilder(l)
	for _, n := range view.Nodes {
		vb.addNodeData(n)
	}
	for _, e := range view.Edges {
		vb.addEdge(e)
	}

	if _, inView := vb.index[name]; inView {
		if a, ok := l.AssetMap[name]; ok {
			vb.addNeighbors(a, dir)
		}
	}
	return vb.view()
}

type viewBuilder struct {
	lineage *Lineage
	nodes   []core.GraphNode
	index   map[string]int
	edges   []core.GraphEdge
	edgeIDs map[string]struct{}
}

func newViewBuilder(l *Lineage) *viewBuilder {
	return &viewBuilder{
		lineage: l,
		nodes:   []core.GraphNode{},
		index:   make(map[string]int),
		edges:   []core.GraphEdge{},
		edgeIDs: make(map[string]struct{}),
	}
}

func (vb *viewBuilder) addNode(a *core.Asset, focus bool) {
	vb.addNodeData(core.GraphNode{
		ID:   a.Name,
		Data: core.GraphNodeData{Asset: a, IsFocusAsset: focus},
	})
}

func (vb *viewBuilder) addNodeData(n core.GraphNode) {
	if _, exists := vb.index[n.ID]; exists {
		return
	}
	vb.index[n.ID] = len(vb.nodes)
	vb.nodes = append(vb.nodes, n)
}

func (vb *viewBuilder) addEdge(e core.GraphEdge) {
	if _, exists := vb.edgeIDs[e.ID]; exists {
		return
	}
	vb.edgeIDs[e.ID] = struct{}{}
	vb.edges = append(vb.edges, e)
}

func (vb *viewBuilder) addNeighbors(a *core.Asset, dir Direction) {
	if dir == DirectionUpstream || dir == DirectionBoth {
		for _, name := range a.AssetUpstreams() {
			up, ok := vb.lineage.AssetMap[name]
			if !ok || up == a {
				continue
			}
			vb.addNode(up, false)
			vb.addEdge(assetEdge(up.Name, a.Name))
		}
	}
	if dir == DirectionDownstream || dir == DirectionBoth {
		for _, name := range a.AssetDownstreams() {
			down, ok := vb.lineage.AssetMap[name]
			if !ok {
				continue
			}
			vb.addNode(down, false)
			vb.addEdge(assetEdge(a.Name, down.Name))
		}
	}
}

// view finalizes the builder, recomputing the expand-handle flags against
// the materialized node set.
func (vb *viewBuilder) view() *View {
	for i := range vb.nodes {
		n := &vb.nodes[i]
		a, ok := vb.lineage.AssetMap[n.ID]
		if !ok {
			continue
		}
		n.Data.HasUpstreamForClicking = vb.hasHidden(a.AssetUpstreams())
		n.Data.HasDownstreamForClicking = vb.hasHidden(a.AssetDownstreams())
	}
	return &View{Nodes: vb.nodes, Edges: vb.edges}
}

func (vb *viewBuilder) hasHidden(names []string) bool {
	for _, name := range names {
		if _, known := vb.lineage.AssetMap[name]; !known {
			continue
		}
		if _, shown := vb.index[name]; !shown {
			return true
		}
	}
	return false
}

// AssetEdgeID returns the ID of the asset edge from source to target.
func AssetEdgeID(source, target string) string {
	return fmt.Sprintf("asset-%s-to-%s", source, target)
}

func assetEdge(source, target string) core.GraphEdge {
	return core.GraphEdge{
		ID:     AssetEdgeID(source, target),
		Source: source,
		Target: target,
		Data: core.GraphEdgeData{
			Type:        core.EdgeTypeAsset,
			SourceAsset: source,
			TargetAsset: target,
		},
	}
}
