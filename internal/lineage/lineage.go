package lineage

import (
	"errors"

	"github.com/leapstack-labs/assetlineage/internal/dag"
	"github.com/leapstack-labs/assetlineage/pkg/core"
)

// ErrAssetNotFound is returned by lookups for names that are not in the snapshot.
var ErrAssetNotFound = errors.New("asset not found")

// Lineage is the programmatic payload built from one parse response.
type Lineage struct {
	// Pipeline is the name of the parsed pipeline
	Pipeline string `json:"pipeline,omitempty"`
	// Assets in declaration order, one per unique name
	Assets []*core.Asset `json:"assets"`
	// AssetMap indexes Assets by name
	AssetMap map[string]*core.Asset `json:"assetMap"`
	// AssetsByID indexes Assets by parser ID; assets without an ID are absent
	AssetsByID map[string]*core.Asset `json:"-"`
	// ColumnLineage holds column lineage entries keyed by target asset name
	ColumnLineage core.ColumnLineageMap `json:"columnLineageMap"`

	graph *dag.Graph
}

// Build builds the lineage for a parse response. A nil pipeline yields an
// empty lineage.
//
// Downstreams are always derived from the asset-type upstreams of the other
// assets and the HasUpstreams/HasDownstreams flags are recomputed. When the
// response carries no column lineage, it is rebuilt from column upstreams.
func Build(raw *core.RawPipeline) *Lineage {
	l := &Lineage{
		Assets:        []*core.Asset{},
		AssetMap:      make(map[string]*core.Asset),
		AssetsByID:    make(map[string]*core.Asset),
		ColumnLineage: core.ColumnLineageMap{},
		graph:         dag.NewGraph(),
	}
	if raw == nil {
		return l
	}
	l.Pipeline = raw.Name

	// Pass 1: one asset per unique name, downstreams empty.
	for i := range raw.Assets {
		ra := &raw.Assets[i]
		if ra.Name == "" {
			continue
		}
		if _, dup := l.AssetMap[ra.Name]; dup {
			continue
		}

		a := &core.Asset{
			ID:          ra.ID,
			Name:        ra.Name,
			Type:        ra.Type,
			Pipeline:    raw.Name,
			Path:        ra.FilePath(),
			Columns:     copyColumns(ra.Columns),
			Upstreams:   append([]core.UpstreamRef{}, ra.Upstreams...),
			Downstreams: []core.UpstreamRef{},
		}
		l.Assets = append(l.Assets, a)
		l.AssetMap[a.Name] = a
		if a.ID != "" {
			if _, seen := l.AssetsByID[a.ID]; !seen {
				l.AssetsByID[a.ID] = a
			}
		}
		l.graph.AddNode(a.Name, a)
	}

	// Pass 2: derive downstreams from asset-type upstreams.
	for _, a := range l.Assets {
		for _, up := range a.Upstreams {
			if !up.IsAsset() {
				continue
			}
			target, ok := l.AssetMap[up.Value]
			if !ok {
				continue
			}
			// A self-reference stays in the graph so Cycle reports it, but an
			// asset is never its own downstream.
			_ = l.graph.AddEdge(target.Name, a.Name)
			if target == a {
				continue
			}
			ref := core.UpstreamRef{Type: core.UpstreamAsset, Value: a.Name}
			if !containsRef(target.Downstreams, ref) {
				target.Downstreams = append(target.Downstreams, ref)
			}
		}
	}

	for _, a := range l.Assets {
		a.HasUpstreams = len(a.Upstreams) > 0
		a.HasDownstreams = len(a.Downstreams) > 0
	}

	if len(raw.ColumnLineage) > 0 {
		l.ColumnLineage = copyColumnLineage(raw.ColumnLineage)
	} else {
		l.ColumnLineage = deriveColumnLineage(l.Assets)
	}

	return l
}

// Asset returns the asset with the given name.
func (l *Lineage) Asset(name string) (*core.Asset, bool) {
	a, ok := l.AssetMap[name]
	return a, ok
}

// AssetByID returns the asset with the given parser ID.
func (l *Lineage) AssetByID(id string) (*core.Asset, bool) {
	a, ok := l.AssetsByID[id]
	return a, ok
}

// Resolve looks an asset up by name first, then by ID.
func (l *Lineage) Resolve(key string) (*core.Asset, error) {
	if a, ok := l.AssetMap[key]; ok {
		return a, nil
	}
	if a, ok := l.AssetsByID[key]; ok {
		return a, nil
	}
	return nil, ErrAssetNotFound
}

// Graph returns the asset dependency graph. Callers must not modify it.
func (l *Lineage) Graph() *dag.Graph {
	if l.graph == nil {
		return dag.NewGraph()
	}
	return l.graph
}

// DependentsOf returns every asset that transitively depends on name.
func (l *Lineage) DependentsOf(name string) ([]string, error) {
	if _, ok := l.AssetMap[name]; !ok {
		return nil, ErrAssetNotFound
	}
	return l.Graph().Downstream(name), nil
}

// DependenciesOf returns every asset name transitively depends on.
func (l *Lineage) DependenciesOf(name string) ([]string, error) {
	if _, ok := l.AssetMap[name]; !ok {
		return nil, ErrAssetNotFound
	}
	return l.Graph().Upstream(name), nil
}

// Cycle returns one dependency cycle as a closed path, or nil.
func (l *Lineage) Cycle() []string {
	return l.Graph().FindCycle()
}

// UnresolvedRef is an asset-type upstream naming no asset in the snapshot,
// typically an asset of another pipeline.
type UnresolvedRef struct {
	Asset    string `json:"asset"`
	Upstream string `json:"upstream"`
}

// Unresolved lists the asset-type upstreams that match no asset, in
// declaration order.
func (l *Lineage) Unresolved() []UnresolvedRef {
	out := []UnresolvedRef{}
	for _, a := range l.Assets {
		for _, name := range a.AssetUpstreams() {
			if _, ok := l.AssetMap[name]; !ok {
				out = append(out, UnresolvedRef{Asset: a.Name, Upstream: name})
			}
		}
	}
	return out
}

// Report summarizes the consistency of a snapshot.
type Report struct {
	Pipeline   string          `json:"pipeline,omitempty"`
	Assets     int             `json:"assets"`
	Roots      []string        `json:"roots"`
	Leaves     []string        `json:"leaves"`
	Unresolved []UnresolvedRef `json:"unresolved"`
	Cycle      []string        `json:"cycle,omitempty"`
}

// Check reports unresolved references and one dependency cycle, if any,
// along with the assets nothing feeds and the assets nothing reads.
func (l *Lineage) Check() Report {
	g := l.Graph()
	return Report{
		Pipeline:   l.Pipeline,
		Assets:     len(l.Assets),
		Roots:      g.Roots(),
		Leaves:     g.Leaves(),
		Unresolved: l.Unresolved(),
		Cycle:      l.Cycle(),
	}
}

// deriveColumnLineage rebuilds the column lineage map from column upstreams.
// Only columns with at least one upstream contribute an entry.
func deriveColumnLineage(assets []*core.Asset) core.ColumnLineageMap {
	out := core.ColumnLineageMap{}
	for _, a := range assets {
		for _, col := range a.Columns {
			if len(col.Upstreams) == 0 {
				continue
			}
			sources := make([]core.SourceColumn, 0, len(col.Upstreams))
			for _, up := range col.Upstreams {
				sources = append(sources, core.SourceColumn{Asset: up.Table, Column: up.Column})
			}
			out[a.Name] = append(out[a.Name], core.ColumnLineageEntry{
				Column:        col.Name,
				SourceColumns: sources,
			})
		}
	}
	return out
}

func copyColumnLineage(in core.ColumnLineageMap) core.ColumnLineageMap {
	out := make(core.ColumnLineageMap, len(in))
	for assetName, entries := range in {
		if len(entries) == 0 {
			continue
		}
		copied := make([]core.ColumnLineageEntry, 0, len(entries))
		for _, e := range entries {
			copied = append(copied, core.ColumnLineageEntry{
				Column:        e.Column,
				SourceColumns: append([]core.SourceColumn{}, e.SourceColumns...),
			})
		}
		out[assetName] = copied
	}
	return out
}

func copyColumns(in []core.Column) []core.Column {
	out := make([]core.Column, 0, len(in))
	for _, c := range in {
		c.Upstreams = append([]core.ColumnUpstream(nil), c.Upstreams...)
		out = append(out, c)
	}
	return out
}

func containsRef(refs []core.UpstreamRef, ref core.UpstreamRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}
