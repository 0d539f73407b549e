package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/assetlineage/internal/impact"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/leapstack-labs/assetlineage/internal/source"
	"github.com/leapstack-labs/assetlineage/internal/testutil"
	"github.com/leapstack-labs/assetlineage/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "name": "analytics",
  "assets": [
    {"id": "1", "name": "raw.orders", "type": "bq.sql",
     "columns": [{"name": "id", "type": "int"}]},
    {"id": "2", "name": "stg.orders", "type": "bq.sql",
     "upstreams": [{"type": "asset", "value": "raw.orders"}, {"type": "uri", "value": "gs://landing"}],
     "columns": [{"name": "order_id", "type": "int", "upstreams": [{"table": "raw.orders", "column": "id"}]}]},
    {"id": "3", "name": "mart.revenue", "type": "python",
     "upstreams": ["stg.orders", "finance.fx"]}
  ]
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.NewTestLogger(t)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func viewNodeIDs(v lineage.View) []string {
	ids := make([]string, 0, len(v.Nodes))
	for _, n := range v.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_SharedRegistryConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := source.NewFileSource(writeFixture(t, fixture))

	newTestServer(t, Config{Source: src, Registry: reg})
	_, err := New(Config{Source: src, Registry: reg})
	assert.Error(t, err)
}

func TestHandler_Health(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})

	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_Lineage(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})
	h := s.Handler()

	rec := get(t, h, "/api/lineage")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var payload struct {
		Pipeline      string                     `json:"pipeline"`
		Assets        []core.Asset               `json:"assets"`
		AssetMap      map[string]core.Asset      `json:"assetMap"`
		ColumnLineage map[string]json.RawMessage `json:"columnLineageMap"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "analytics", payload.Pipeline)
	assert.Len(t, payload.Assets, 3)
	assert.Equal(t, []core.UpstreamRef{{Type: core.UpstreamAsset, Value: "stg.orders"}}, payload.AssetMap["raw.orders"].Downstreams)
	assert.Contains(t, payload.ColumnLineage, "stg.orders")

	// Same revision: not modified.
	rec = get(t, h, "/api/lineage", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = get(t, h, "/api/lineage", "If-None-Match", `"stale"`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_Graph(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})
	h := s.Handler()

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantNodes []string
		wantEdges int
	}{
		{name: "full", target: "/api/graph", wantCode: http.StatusOK,
			wantNodes: []string{"raw.orders", "stg.orders", "mart.revenue"}, wantEdges: 2},
		{name: "focus by name", target: "/api/graph?focus=mart.revenue", wantCode: http.StatusOK,
			wantNodes: []string{"mart.revenue", "stg.orders"}, wantEdges: 1},
		{name: "focus by id", target: "/api/graph?focus=3", wantCode: http.StatusOK,
			wantNodes: []string{"mart.revenue", "stg.orders"}, wantEdges: 1},
		{name: "with columns", target: "/api/graph?columns=true", wantCode: http.StatusOK,
			wantNodes: []string{"raw.orders", "stg.orders", "mart.revenue"}, wantEdges: 3},
		{name: "expand upstream", target: "/api/graph?focus=mart.revenue&expand=stg.orders:upstream", wantCode: http.StatusOK,
			wantNodes: []string{"mart.revenue", "stg.orders", "raw.orders"}, wantEdges: 2},
		{name: "expand defaults to both", target: "/api/graph?focus=mart.revenue&expand=stg.orders", wantCode: http.StatusOK,
			wantNodes: []string{"mart.revenue", "stg.orders", "raw.orders"}, wantEdges: 2},
		{name: "unknown focus", target: "/api/graph?focus=nope", wantCode: http.StatusNotFound},
		{name: "bad columns", target: "/api/graph?columns=maybe", wantCode: http.StatusBadRequest},
		{name: "bad direction", target: "/api/graph?expand=stg.orders:sideways", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				assert.Contains(t, decode[map[string]string](t, rec), "error")
				return
			}
			v := decode[lineage.View](t, rec)
			assert.Equal(t, tt.wantNodes, viewNodeIDs(v))
			assert.Len(t, v.Edges, tt.wantEdges)
		})
	}
}

func TestHandler_GraphClickingFlags(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})

	v := decode[lineage.View](t, get(t, s.Handler(), "/api/graph?focus=mart.revenue"))
	for _, n := range v.Nodes {
		switch n.ID {
		case "mart.revenue":
			assert.True(t, n.Data.IsFocusAsset)
		case "stg.orders":
			assert.True(t, n.Data.HasUpstreamForClicking, "raw.orders is not materialized yet")
		}
	}
}

func TestHandler_Tree(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})
	h := s.Handler()

	rec := get(t, h, "/api/tree/3")
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[lineage.Tree](t, rec)
	assert.Equal(t, "mart.revenue", tree.Name)
	require.Len(t, tree.Upstreams, 2)
	assert.Equal(t, "stg.orders", tree.Upstreams[0].Name)
	assert.Equal(t, "finance.fx", tree.Upstreams[1].Name)

	rec = get(t, h, "/api/tree/3?depth=1")
	require.Equal(t, http.StatusOK, rec.Code)
	tree = decode[lineage.Tree](t, rec)
	assert.Empty(t, tree.Upstreams[0].Upstreams)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/tree/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/tree/3?depth=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/tree/3?depth=x").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/tree/3?max_nodes=-5").Code)

	rec = get(t, h, "/api/tree/3?max_nodes=2")
	require.Equal(t, http.StatusOK, rec.Code)
	tree = decode[lineage.Tree](t, rec)
	assert.True(t, tree.Truncated)
	assert.Equal(t, 2, tree.Size())
}

func TestHandler_Impact(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})
	h := s.Handler()

	rec := get(t, h, "/api/impact/stg.orders")
	require.Equal(t, http.StatusOK, rec.Code)
	hl := decode[impact.Highlight](t, rec)
	assert.Equal(t, "stg.orders", hl.Seed)
	assert.Equal(t, []string{"raw.orders", "stg.orders"}, hl.Upstream)
	assert.Equal(t, []string{"mart.revenue", "stg.orders"}, hl.Downstream)
	assert.Empty(t, hl.Faded)

	// Within the focus view of mart.revenue, raw.orders is not materialized.
	rec = get(t, h, "/api/impact/mart.revenue?focus=mart.revenue")
	require.Equal(t, http.StatusOK, rec.Code)
	hl = decode[impact.Highlight](t, rec)
	assert.Equal(t, []string{"mart.revenue", "stg.orders"}, hl.Upstream)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/impact/raw.orders?focus=mart.revenue").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/impact/nope").Code)
}

func TestHandler_Check(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})

	rec := get(t, s.Handler(), "/api/check")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[lineage.Report](t, rec)
	assert.Equal(t, 3, report.Assets)
	assert.Equal(t, []lineage.UnresolvedRef{{Asset: "mart.revenue", Upstream: "finance.fx"}}, report.Unresolved)
	assert.Empty(t, report.Cycle)
}

func TestHandler_SourceFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	s := newTestServer(t, Config{Source: source.NewFileSource(missing)})

	rec := get(t, s.Handler(), "/api/lineage")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "failed to load snapshot")
}

func TestHandler_Metrics(t *testing.T) {
	s := newTestServer(t, Config{Source: source.NewFileSource(writeFixture(t, fixture))})
	h := s.Handler()

	get(t, h, "/api/lineage")
	get(t, h, "/api/lineage")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "assetlineage_cache_hits_total 1")
	assert.Contains(t, body, "assetlineage_cache_misses_total 1")
	assert.Contains(t, body, `assetlineage_http_requests_total{method="GET",route="/api/lineage",status="200"} 2`)
}

func TestServer_WatchInvalidatesAndStreams(t *testing.T) {
	path := writeFixture(t, fixture)
	s := newTestServer(t, Config{Source: source.NewFileSource(path), Watch: true})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/updates", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitForRevision := func() string {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed early")
				if _, after, found := strings.Cut(line, `"revision":"`); found {
					rev, _, _ := strings.Cut(after, `"`)
					return rev
				}
			case <-deadline:
				t.Fatal("no signals received")
				return ""
			}
		}
	}

	first := waitForRevision()
	require.NotEmpty(t, first)
	entry, ok := s.Cache().Peek(source.NewFileSource(path).Key())
	require.True(t, ok)
	assert.Equal(t, first, entry.Revision)

	updated := strings.Replace(fixture, `"finance.fx"]}`, `"finance.fx"]},
    {"id": "4", "name": "report", "upstreams": ["mart.revenue"]}`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	second := waitForRevision()
	assert.NotEqual(t, first, second)

	rec := get(t, s.Handler(), "/api/check")
	assert.Equal(t, 4, decode[lineage.Report](t, rec).Assets)
}

func TestServer_ServeShutsDown(t *testing.T) {
	s := newTestServer(t, Config{
		Host:   "127.0.0.1",
		Source: source.NewFileSource(writeFixture(t, fixture)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_ServeListenError(t *testing.T) {
	s := newTestServer(t, Config{
		Host:   "127.0.0.1",
		Port:   -1,
		Source: source.NewFileSource(writeFixture(t, fixture)),
	})

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
