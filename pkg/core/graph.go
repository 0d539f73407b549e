package core

// EdgeType distinguishes asset dependency edges from column lineage edges.
type EdgeType string

// Edge type constants.
const (
	EdgeTypeAsset         EdgeType = "asset"
	EdgeTypeColumnLineage EdgeType = "column-lineage"
)

// GraphNodeData is the render payload attached to a node.
type GraphNodeData struct {
	Asset        *Asset `json:"asset"`
	IsFocusAsset bool   `json:"isFocusAsset"`
	// HasUpstreamForClicking is set when the asset has upstreams that are
	// not materialized in the current view.
	HasUpstreamForClicking bool `json:"hasUpstreamForClicking"`
	// HasDownstreamForClicking mirrors HasUpstreamForClicking for dependents.
	HasDownstreamForClicking bool `json:"hasDownstreamForClicking"`
}

// GraphNode is a renderable asset node. ID is the asset name.
type GraphNode struct {
	ID   string        `json:"id"`
	Data GraphNodeData `json:"data"`
}

// GraphEdgeData is the render payload attached to an edge.
type GraphEdgeData struct {
	Type         EdgeType `json:"type"`
	SourceAsset  string   `json:"sourceAsset,omitempty"`
	TargetAsset  string   `json:"targetAsset,omitempty"`
	SourceColumn string   `json:"sourceColumn,omitempty"`
	TargetColumn string   `json:"targetColumn,omitempty"`
}

// GraphEdge is a directed, renderable edge oriented upstream -> downstream.
type GraphEdge struct {
	ID     string        `json:"id"`
	Source string        `json:"source"`
	Target string        `json:"target"`
	Data   GraphEdgeData `json:"data"`
}
