// Package server exposes lineage snapshots over HTTP for the graph webview.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/assetlineage/internal/cache"
	"github.com/leapstack-labs/assetlineage/internal/server/notifier"
	"github.com/leapstack-labs/assetlineage/internal/source"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Config holds configuration for the server.
type Config struct {
	Host string
	// Port to listen on. Zero picks a free port.
	Port int
	// Watch invalidates the snapshot when a file-backed source changes and
	// pushes the new revision to /api/updates subscribers.
	Watch  bool
	Source source.Source
	// CacheSize and CacheTTL configure the snapshot cache.
	CacheSize int
	CacheTTL  time.Duration
	// Registry receives cache and HTTP metrics and backs /metrics. Nil
	// creates a private registry.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// Server serves one snapshot source.
type Server struct {
	src      source.Source
	host     string
	port     int
	cache    *cache.Cache
	registry *prometheus.Registry
	metrics  *httpMetrics
	notifier *notifier.Notifier
	logger   *slog.Logger

	mu   sync.Mutex
	addr string
}

// New creates a server and its snapshot cache.
func New(cfg Config) (*Server, error) {
	if cfg.Source == nil {
		return nil, errors.New("server requires a source")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		src:      cfg.Source,
		host:     cfg.Host,
		port:     cfg.Port,
		registry: cfg.Registry,
		notifier: notifier.New(),
		logger:   cfg.Logger,
	}

	policy, err := s.newPolicy(cfg)
	if err != nil {
		return nil, err
	}

	s.cache, err = cache.New(cache.Config{
		Size:       cfg.CacheSize,
		Policy:     policy,
		Registerer: cfg.Registry,
		Logger:     cfg.Logger,
	})
	if err != nil {
		_ = policy.Close()
		return nil, err
	}

	s.metrics = newHTTPMetrics()
	if err := s.metrics.register(cfg.Registry); err != nil {
		_ = s.cache.Close()
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}
	return s, nil
}

// newPolicy watches file-backed sources when Watch is set and falls back to
// plain expiry otherwise.
func (s *Server) newPolicy(cfg Config) (cache.Policy, error) {
	if _, fileBacked := cfg.Source.(source.FileBacked); !cfg.Watch || !fileBacked {
		return cache.TTLPolicy{MaxAge: cfg.CacheTTL}, nil
	}
	policy, err := cache.NewWatchPolicy(cache.WatchConfig{
		MaxAge: cfg.CacheTTL,
		OnChange: func(key string) {
			s.logger.Info("snapshot source changed", "key", key)
			s.notifier.Notify(key)
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	return policy, nil
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		s.metrics.middleware,
	)
	s.routes(r)
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled.
// The snapshot is loaded once before accepting requests so that watching
// starts immediately.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	if _, err := s.cache.Get(ctx, s.src); err != nil {
		s.logger.Warn("initial snapshot load failed", "source", s.src.Key(), "error", err)
	}
	s.logger.Info("starting lineage server", "addr", "http://"+s.Addr(), "source", s.src.Key())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		// Streaming handlers hold their connections open until notified.
		s.notifier.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down lineage server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Addr returns the listen address once Serve has started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Notifier returns the server's change notifier.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Cache returns the server's snapshot cache.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// Close releases the cache and its watcher.
func (s *Server) Close() error {
	s.notifier.Close()
	return s.cache.Close()
}
