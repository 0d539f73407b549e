package pipeline

import (
	"testing"

	"github.com/leapstack-labs/assetlineage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assetRefs(names ...string) []core.UpstreamRef {
	refs := make([]core.UpstreamRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, core.UpstreamRef{Type: core.UpstreamAsset, Value: n})
	}
	return refs
}

func findAsset(t *testing.T, n *Normalized, name string) NormalizedAsset {
	t.Helper()
	for _, a := range n.Assets {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("asset %q not found", name)
	return NormalizedAsset{}
}

func TestNormalize_EmptyInputs(t *testing.T) {
	tests := []struct {
		name string
		raw  *core.RawPipeline
	}{
		{name: "nil pipeline", raw: nil},
		{name: "missing assets", raw: &core.RawPipeline{Name: "p"}},
		{name: "empty assets", raw: &core.RawPipeline{Assets: []core.RawAsset{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			require.NotNil(t, got)
			assert.NotNil(t, got.Assets)
			assert.Empty(t, got.Assets)
		})
	}
}

func TestNormalize_DerivesDownstream(t *testing.T) {
	raw := &core.RawPipeline{
		Assets: []core.RawAsset{
			{Name: "test"},
			{Name: "test2", Upstreams: assetRefs("test5")},
			{Name: "test3", Upstreams: assetRefs("test", "test2", "test4", "asset_uri")},
			{Name: "test4", Upstreams: []core.UpstreamRef{
				{Type: core.UpstreamAsset, Value: "test6"},
				{Type: core.UpstreamURI, Value: "bigquery://some-query"},
			}},
		},
	}

	got := Normalize(raw)
	require.Len(t, got.Assets, 4)

	assert.Equal(t, []string{"test", "test2", "test4", "asset_uri"}, findAsset(t, got, "test3").Upstreams)
	assert.Equal(t, []string{"test3"}, findAsset(t, got, "test4").Downstream)
	assert.Equal(t, []string{"test3"}, findAsset(t, got, "test2").Downstream)
	assert.Equal(t, []string{"test3"}, findAsset(t, got, "test").Downstream)

	// Unresolved upstreams are kept but produce no downstream anywhere.
	assert.Equal(t, []string{"test6", "bigquery://some-query"}, findAsset(t, got, "test4").Upstreams)
	assert.Empty(t, findAsset(t, got, "test3").Downstream)
}

func TestNormalize_MissingSlicesAreEmpty(t *testing.T) {
	got := Normalize(&core.RawPipeline{Assets: []core.RawAsset{{Name: "solo", ID: "1"}}})

	require.Len(t, got.Assets, 1)
	assert.NotNil(t, got.Assets[0].Upstreams)
	assert.NotNil(t, got.Assets[0].Downstream)
	assert.Empty(t, got.Assets[0].Upstreams)
	assert.Empty(t, got.Assets[0].Downstream)
}

func TestNormalize_DuplicateAndNamelessAssets(t *testing.T) {
	raw := &core.RawPipeline{
		Assets: []core.RawAsset{
			{Name: "a", Type: "first"},
			{Name: ""},
			{Name: "a", Type: "second"},
			{Name: "b", Upstreams: assetRefs("a", "a")},
		},
	}

	got := Normalize(raw)
	require.Len(t, got.Assets, 2)
	assert.Equal(t, "first", findAsset(t, got, "a").Type)
	assert.Equal(t, []string{"b"}, findAsset(t, got, "a").Downstream)
}

func TestNormalize_SelfReference(t *testing.T) {
	got := Normalize(&core.RawPipeline{
		Assets: []core.RawAsset{
			{Name: "loop", Upstreams: assetRefs("loop")},
			{Name: "next", Upstreams: assetRefs("loop")},
		},
	})

	loop := findAsset(t, got, "loop")
	assert.Equal(t, []string{"loop"}, loop.Upstreams)
	assert.Equal(t, []string{"next"}, loop.Downstream)
}

func TestNormalize_PathFallsBackToDefinitionFile(t *testing.T) {
	raw := &core.RawPipeline{
		Assets: []core.RawAsset{
			{Name: "a", DefinitionFile: &core.DefinitionFile{Path: "assets/a.sql"}},
			{Name: "b", Path: "explicit.py", DefinitionFile: &core.DefinitionFile{Path: "ignored.py"}},
		},
	}

	got := Normalize(raw)
	assert.Equal(t, "assets/a.sql", findAsset(t, got, "a").Path)
	assert.Equal(t, "explicit.py", findAsset(t, got, "b").Path)
}
