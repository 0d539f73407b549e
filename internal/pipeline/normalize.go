package pipeline

import "github.com/leapstack-labs/assetlineage/pkg/core"

// NormalizedAsset is the name-level view of an asset: upstream values as
// declared and downstream names derived from the other assets.
type NormalizedAsset struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Path       string   `json:"path"`
	Upstreams  []string `json:"upstreams"`
	Downstream []string `json:"downstream"`
}

// Normalized is the result of Normalize.
type Normalized struct {
	Assets []NormalizedAsset `json:"assets"`
}

// Normalize converts a raw parse response into a normalized asset list.
// A nil pipeline, or one without assets, yields an empty list.
//
// Pass one creates an entry per named asset (the first occurrence of a name
// wins). Pass two records every declared upstream value and, when the value
// names a known asset, appends the declaring asset to that asset's
// downstream list. Values that match no asset stay in Upstreams only.
func Normalize(raw *core.RawPipeline) *Normalized {
	out := &Normalized{Assets: []NormalizedAsset{}}
	if raw == nil || len(raw.Assets) == 0 {
		return out
	}

	index := make(map[string]int, len(raw.Assets))
	sources := make([]*core.RawAsset, 0, len(raw.Assets))
	for i := range raw.Assets {
		a := &raw.Assets[i]
		if a.Name == "" {
			continue
		}
		if _, dup := index[a.Name]; dup {
			continue
		}
		index[a.Name] = len(out.Assets)
		sources = append(sources, a)
		out.Assets = append(out.Assets, NormalizedAsset{
			ID:         a.ID,
			Name:       a.Name,
			Type:       a.Type,
			Path:       a.FilePath(),
			Upstreams:  []string{},
			Downstream: []string{},
		})
	}

	for i, src := range sources {
		current := &out.Assets[i]
		for _, up := range src.Upstreams {
			current.Upstreams = append(current.Upstreams, up.Value)
			// An asset is never its own downstream.
			if j, ok := index[up.Value]; ok && j != i {
				target := &out.Assets[j]
				if !contains(target.Downstream, current.Name) {
					target.Downstream = append(target.Downstream, current.Name)
				}
			}
		}
	}

	return out
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
