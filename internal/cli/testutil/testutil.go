// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/assetlineage/internal/cli/output"
)

// Pipeline is the snapshot written by SetupTestProject:
//
//	raw.orders -> stg.orders -> mart.revenue <- finance.fx (unresolved)
//
// with column lineage raw.orders.id -> stg.orders.order_id and a URI
// upstream on stg.orders.
const Pipeline = `{
  "name": "analytics",
  "assets": [
    {"id": "a1", "name": "raw.orders", "type": "ingestr",
     "definition_file": {"path": "assets/raw_orders.asset.yml"},
     "columns": [{"name": "id", "type": "integer"}]},
    {"id": "a2", "name": "stg.orders", "type": "bq.sql",
     "path": "assets/stg_orders.sql",
     "upstreams": [{"type": "asset", "value": "raw.orders"}, {"type": "uri", "value": "gs://landing/orders"}],
     "columns": [{"name": "order_id", "type": "integer",
                  "upstreams": [{"table": "raw.orders", "column": "id"}]}]},
    {"id": "a3", "name": "mart.revenue", "type": "python",
     "upstreams": ["stg.orders", "finance.fx"]}
  ]
}`

// SetupTestProject creates a temporary project with a snapshot file and an
// assetlineage.yaml pointing at it.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "pipeline.json"), []byte(Pipeline), 0o600); err != nil {
		t.Fatalf("failed to create pipeline.json: %v", err)
	}

	cfg := "source:\n  file: pipeline.json\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "assetlineage.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to create assetlineage.yaml: %v", err)
	}

	return tmpDir
}

// TestRenderer is a Renderer writing into buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer in the given mode. isTTY only matters
// for ModeAuto.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns everything written to the primary output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails the test if s contains terminal escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for balanced code fences and empty headings.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
