// Package cache keeps built lineage snapshots keyed by their source.
//
// A Cache is an explicit object owned by its caller; there is no
// process-wide instance. When an entry goes stale is decided by an injected
// Policy: TTLPolicy expires entries by age, WatchPolicy drops file-backed
// entries as soon as the file changes on disk.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/leapstack-labs/assetlineage/internal/source"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the number of snapshots kept when Config.Size is unset.
const DefaultSize = 16

// ErrInvalidKey is returned for a nil source or one with an empty key.
var ErrInvalidKey = errors.New("invalid cache key")

// Entry is one built snapshot.
type Entry struct {
	Key string
	// Revision changes every time the snapshot is rebuilt.
	Revision string
	Lineage  *lineage.Lineage
	LoadedAt time.Time
}

// Config configures a Cache.
type Config struct {
	// Size caps the number of entries. Zero means DefaultSize.
	Size int
	// Policy decides invalidation. Nil means entries never expire.
	Policy Policy
	// Registerer receives the cache metrics. Nil disables registration.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Cache holds built snapshots. It is safe for concurrent use; concurrent
// misses for one key share a single load.
type Cache struct {
	entries *lru.LRU[string, *Entry]
	policy  Policy
	metrics *Metrics
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time

	// mu orders entry insertion against invalidation. gens counts
	// invalidations per key and purges counts Purge calls, so a load can
	// tell whether it was invalidated while in flight.
	mu     sync.Mutex
	gens   map[string]uint64
	purges uint64
}

// New creates a Cache and registers its metrics.
func New(cfg Config) (*Cache, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Policy == nil {
		cfg.Policy = TTLPolicy{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	metrics := NewMetrics()
	if cfg.Registerer != nil {
		if err := metrics.Register(cfg.Registerer); err != nil {
			return nil, fmt.Errorf("failed to register cache metrics: %w", err)
		}
	}

	c := &Cache{
		policy:  cfg.Policy,
		metrics: metrics,
		logger:  cfg.Logger,
		now:     time.Now,
		gens:    make(map[string]uint64),
	}
	c.entries = lru.NewLRU[string, *Entry](cfg.Size, nil, cfg.Policy.TTL())
	return c, nil
}

// Get returns the snapshot for src, loading and building it on a miss.
func (c *Cache) Get(ctx context.Context, src source.Source) (*Entry, error) {
	if src == nil || src.Key() == "" {
		return nil, ErrInvalidKey
	}
	key := src.Key()

	if e, ok := c.entries.Get(key); ok {
		c.metrics.Hits.Inc()
		return e, nil
	}
	c.metrics.Misses.Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have finished the load while we waited.
		if e, ok := c.entries.Peek(key); ok {
			return e, nil
		}
		return c.load(ctx, key, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *Cache) load(ctx context.Context, key string, src source.Source) (*Entry, error) {
	gen := c.generation(key)
	start := c.now()
	raw, err := src.Load(ctx)
	if err != nil {
		c.metrics.LoadErrors.Inc()
		return nil, err
	}

	e := &Entry{
		Key:      key,
		Revision: uuid.NewString(),
		Lineage:  lineage.Build(raw),
		LoadedAt: c.now(),
	}
	c.metrics.LoadDuration.Observe(e.LoadedAt.Sub(start).Seconds())

	if err := c.policy.Track(key, src, c.invalidateStale); err != nil {
		// Still serve the snapshot; it will only expire by age or eviction.
		c.logger.Warn("failed to track snapshot source", "key", key, "error", err)
	}

	c.mu.Lock()
	current := c.generationLocked(key) == gen
	if current {
		c.entries.Add(key, e)
	}
	c.mu.Unlock()

	// An invalidation that raced the load means the source changed under
	// it; hand the snapshot to this caller but do not keep it.
	if !current {
		c.logger.Debug("snapshot invalidated during load, not cached", "key", key, "revision", e.Revision)
		return e, nil
	}
	c.metrics.Entries.Set(float64(c.entries.Len()))
	c.logger.Debug("snapshot built",
		"key", key,
		"revision", e.Revision,
		"assets", len(e.Lineage.Assets))
	return e, nil
}

// Peek returns the cached entry for key without loading or touching recency.
func (c *Cache) Peek(key string) (*Entry, bool) {
	return c.entries.Peek(key)
}

// Invalidate drops the entry for key. It reports whether one was present.
func (c *Cache) Invalidate(key string) bool {
	return c.invalidate(key, "manual")
}

func (c *Cache) invalidateStale(key string) {
	c.invalidate(key, "policy")
}

func (c *Cache) invalidate(key, reason string) bool {
	c.mu.Lock()
	c.gens[key]++
	removed := c.entries.Remove(key)
	c.mu.Unlock()
	if removed {
		c.metrics.Invalidations.WithLabelValues(reason).Inc()
		c.logger.Debug("snapshot invalidated", "key", key, "reason", reason)
	}
	c.metrics.Entries.Set(float64(c.entries.Len()))
	return removed
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.purges++
	c.entries.Purge()
	c.mu.Unlock()
	c.metrics.Entries.Set(0)
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(key)
}

// generationLocked changes whenever key is invalidated or the cache is
// purged. Both counters only grow, so their sum does too.
func (c *Cache) generationLocked(key string) uint64 {
	return c.gens[key] + c.purges
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Metrics returns the cache's collectors.
func (c *Cache) Metrics() *Metrics {
	return c.metrics
}

// Close purges the cache and releases the policy.
func (c *Cache) Close() error {
	c.Purge()
	return c.policy.Close()
}
