package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/assetlineage/internal/cache"
	"github.com/leapstack-labs/assetlineage/internal/impact"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/starfederation/datastar-go/datastar"
)

// routes mounts every endpoint on r.
func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// The event stream must not be buffered by the compressor.
		r.Get("/updates", s.handleUpdates)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))
			r.Get("/lineage", s.handleLineage)
			r.Get("/graph", s.handleGraph)
			r.Get("/tree/{asset}", s.handleTree)
			r.Get("/impact/{node}", s.handleImpact)
			r.Get("/check", s.handleCheck)
		})
	})
}

// UpdateSignals is the payload patched into subscribers on every change.
type UpdateSignals struct {
	Revision string `json:"revision"`
	Pipeline string `json:"pipeline"`
	Assets   int    `json:"assets"`
	LoadedAt string `json:"loadedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*cache.Entry, bool) {
	e, err := s.cache.Get(r.Context(), s.src)
	if err != nil {
		s.logger.Error("failed to load snapshot", "source", s.src.Key(), "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("failed to load snapshot: %w", err))
		return nil, false
	}
	return e, true
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	e, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	etag := strconv.Quote(e.Revision)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, e.Lineage)
}

// handleGraph returns the full view, or the focus view when ?focus= is set.
// Each ?expand=name:direction grows the view as a click on that node would;
// the direction defaults to both.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	e, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	withColumns, err := parseColumns(query.Get("columns"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, status, err := buildView(e.Lineage, query.Get("focus"))
	if err != nil {
		writeError(w, status, err)
		return
	}

	for _, spec := range query["expand"] {
		name, dir, err := lineage.ParseExpand(spec)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view = lineage.Expand(view, e.Lineage, name, dir)
	}
	// Column edges depend on the final node set.
	if withColumns {
		view = view.WithColumnEdges(e.Lineage)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	e, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	asset := urlParam(r, "asset")
	opts := lineage.TreeOptions{}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"depth", &opts.MaxDepth},
		{"max_nodes", &opts.MaxNodes},
	} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s %q", p.name, raw))
			return
		}
		*p.dst = n
	}

	tree := lineage.BuildTreeWithOptions(asset, e.Lineage.Assets, opts)
	if tree == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", lineage.ErrAssetNotFound, asset))
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// handleImpact highlights what the node reaches within a view, the same view
// /api/graph returns for the given focus and columns parameters.
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	e, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	withColumns, err := parseColumns(query.Get("columns"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, status, err := buildView(e.Lineage, query.Get("focus"))
	if err != nil {
		writeError(w, status, err)
		return
	}
	if withColumns {
		view = view.WithColumnEdges(e.Lineage)
	}

	node := urlParam(r, "node")
	ids := make([]string, 0, len(view.Nodes))
	found := false
	for _, n := range view.Nodes {
		ids = append(ids, n.ID)
		found = found || n.ID == node
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("node %q is not in the view", node))
		return
	}
	writeJSON(w, http.StatusOK, impact.Analyze(node, ids, view.Edges))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	e, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Lineage.Check())
}

// handleUpdates streams the snapshot revision to the webview. The current
// revision is sent first and again after every change to the source.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	if err := s.sendSignals(sse, r); err != nil {
		_ = sse.ConsoleError(err)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := s.sendSignals(sse, r); err != nil {
				_ = sse.ConsoleError(err)
				// keep streaming, the next change may fix the source
			}
		}
	}
}

func (s *Server) sendSignals(sse *datastar.ServerSentEventGenerator, r *http.Request) error {
	e, err := s.cache.Get(r.Context(), s.src)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	return sse.MarshalAndPatchSignals(UpdateSignals{
		Revision: e.Revision,
		Pipeline: e.Lineage.Pipeline,
		Assets:   len(e.Lineage.Assets),
		LoadedAt: e.LoadedAt.UTC().Format(time.RFC3339),
	})
}

// buildView returns the full view, or the focus view when focus is set.
// The focus may be an asset name or ID.
func buildView(l *lineage.Lineage, focus string) (*lineage.View, int, error) {
	if focus == "" {
		return lineage.Full(l), http.StatusOK, nil
	}
	a, err := l.Resolve(focus)
	if err != nil {
		return nil, http.StatusNotFound, fmt.Errorf("%w: %s", err, focus)
	}
	return lineage.Project(l, a.Name), http.StatusOK, nil
}

func parseColumns(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid columns value %q", raw)
	}
	return v, nil
}

func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
