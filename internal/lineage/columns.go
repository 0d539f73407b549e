package lineage

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/assetlineage/pkg/core"
)

// NameSet is a set of asset names.
type NameSet map[string]struct{}

// NewNameSet creates a set from the given names.
func NewNameSet(names ...string) NameSet {
	set := make(NameSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// ColumnEdgeID returns the deterministic ID of a column lineage edge.
func ColumnEdgeID(sourceAsset, sourceColumn, targetAsset, targetColumn string) string {
	return fmt.Sprintf("column-%s.%s-to-%s.%s", sourceAsset, sourceColumn, targetAsset, targetColumn)
}

// SynthesizeColumnEdges turns column lineage entries into renderable edges
// among the processed (materialized) assets.
//
// An edge is emitted only when both its target asset and its source asset
// are in processed, which keeps a partially expanded view consistent. When
// assets is non-nil both ends must also name an asset in it, so lineage
// supplied for assets missing from the snapshot yields nothing.
// Fan-in and fan-out each yield independent edges. Targets are visited in
// name order and entries in source order; an ID seen twice is emitted once.
func SynthesizeColumnEdges(processed NameSet, columnLineage core.ColumnLineageMap, assets map[string]*core.Asset) []core.GraphEdge {
	known := func(name string) bool {
		if !processed.Has(name) {
			return false
		}
		if assets == nil {
			return true
		}
		_, ok := assets[name]
		return ok
	}

	edges := []core.GraphEdge{}
	if len(processed) == 0 || len(columnLineage) == 0 {
		return edges
	}

	targets := make([]string, 0, len(columnLineage))
	for name := range columnLineage {
		if known(name) {
			targets = append(targets, name)
		}
	}
	sort.Strings(targets)

	seen := make(map[string]struct{})
	for _, target := range targets {
		for _, entry := range columnLineage[target] {
			for _, src := range entry.SourceColumns {
				if !known(src.Asset) {
					continue
				}
				id := ColumnEdgeID(src.Asset, src.Column, target, entry.Column)
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				edges = append(edges, core.GraphEdge{
					ID:     id,
					Source: src.Asset,
					Target: target,
					Data: core.GraphEdgeData{
						Type:         core.EdgeTypeColumnLineage,
						SourceAsset:  src.Asset,
						TargetAsset:  target,
						SourceColumn: src.Column,
						TargetColumn: entry.Column,
					},
				})
			}
		}
	}
	return edges
}
