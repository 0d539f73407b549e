package core

import "encoding/json"

// UpstreamType classifies what an upstream reference points at.
type UpstreamType string

// Upstream type constants.
const (
	// UpstreamAsset references another asset by name. Only these take part
	// in downstream derivation and asset-graph edges.
	UpstreamAsset UpstreamType = "asset"
	// UpstreamURI references something outside the pipeline (a query, a bucket).
	UpstreamURI UpstreamType = "uri"
)

// UpstreamRef is one declared dependency of an asset.
type UpstreamRef struct {
	Type  UpstreamType `json:"type"`
	Value string       `json:"value"`
}

// UnmarshalJSON accepts either the object form {"type","value"} or a bare
// string, which is read as an asset reference. A missing type also means asset.
func (r *UpstreamRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = UpstreamRef{Type: UpstreamAsset, Value: name}
		return nil
	}

	var obj struct {
		Type  UpstreamType `json:"type"`
		Value string       `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Type == "" {
		obj.Type = UpstreamAsset
	}
	*r = UpstreamRef(obj)
	return nil
}

// IsAsset reports whether the reference points at another asset.
func (r UpstreamRef) IsAsset() bool {
	return r.Type == UpstreamAsset
}

// ColumnUpstream is a column-level source as declared on a column.
type ColumnUpstream struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Column describes a single column of an asset.
type Column struct {
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Upstreams []ColumnUpstream `json:"upstreams,omitempty"`
}

// Asset is a pipeline-managed data unit (table, file, etc.).
//
// Downstreams, HasUpstreams and HasDownstreams are always derived while
// building lineage; values supplied by the parser are never trusted.
type Asset struct {
	// ID is the parser-assigned identifier; empty for external references
	ID string `json:"id,omitempty"`
	// Name is the unique key among all assets of one snapshot
	Name string `json:"name"`
	// Type is the asset kind (e.g., "bq.sql", "python")
	Type string `json:"type"`
	// Pipeline is the name of the owning pipeline
	Pipeline string `json:"pipeline"`
	// Path is the definition file path
	Path           string        `json:"path"`
	Columns        []Column      `json:"columns"`
	Upstreams      []UpstreamRef `json:"upstreams"`
	Downstreams    []UpstreamRef `json:"downstreams"`
	HasUpstreams   bool          `json:"hasUpstreams"`
	HasDownstreams bool          `json:"hasDownstreams"`
}

// Key returns the canonical identifier of the asset: its ID when set,
// otherwise its name.
func (a *Asset) Key() string {
	if a.ID != "" {
		return a.ID
	}
	return a.Name
}

// AssetUpstreams returns the names of asset-type upstreams in declaration order.
func (a *Asset) AssetUpstreams() []string {
	return assetValues(a.Upstreams)
}

// AssetDownstreams returns the names of asset-type downstreams in derivation order.
func (a *Asset) AssetDownstreams() []string {
	return assetValues(a.Downstreams)
}

func assetValues(refs []UpstreamRef) []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.IsAsset() {
			names = append(names, ref.Value)
		}
	}
	return names
}

// SourceColumn identifies one column that feeds a target column.
type SourceColumn struct {
	Asset  string `json:"asset"`
	Column string `json:"column"`
}

// ColumnLineageEntry maps a target column to the columns that produced it.
type ColumnLineageEntry struct {
	Column        string         `json:"column"`
	SourceColumns []SourceColumn `json:"source_columns"`
}

// ColumnLineageMap holds column lineage entries keyed by target asset name.
// It is sparse: assets without lineage-bearing columns have no key.
type ColumnLineageMap map[string][]ColumnLineageEntry
