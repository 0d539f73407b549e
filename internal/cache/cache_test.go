package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/assetlineage/internal/source"
	"github.com/leapstack-labs/assetlineage/internal/testutil"
	"github.com/leapstack-labs/assetlineage/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	key   string
	delay time.Duration
	err   error
	loads atomic.Int32
	// during runs inside Load, after the source has been read.
	during func()
}

func (s *countingSource) Key() string { return s.key }

func (s *countingSource) Load(context.Context) (*core.RawPipeline, error) {
	s.loads.Add(1)
	time.Sleep(s.delay)
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &core.RawPipeline{
		Name: s.key,
		Assets: []core.RawAsset{
			{Name: "a"},
			{Name: "b", Upstreams: []core.UpstreamRef{{Type: core.UpstreamAsset, Value: "a"}}},
		},
	}, nil
}

func newCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.NewTestLogger(t)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_MissThenHit(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newCache(t, Config{Registerer: reg})
	src := &countingSource{key: "p"}

	first, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "p", first.Key)
	assert.NotEmpty(t, first.Revision)
	assert.Equal(t, []string{"b"}, first.Lineage.AssetMap["a"].AssetDownstreams())

	second, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, first, second)

	assert.Equal(t, int32(1), src.loads.Load())
	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().Hits))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().Misses))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().Entries))
}

func TestCache_InvalidKey(t *testing.T) {
	c := newCache(t, Config{})

	_, err := c.Get(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = c.Get(context.Background(), &countingSource{})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCache_InvalidateRebuildsWithNewRevision(t *testing.T) {
	c := newCache(t, Config{})
	src := &countingSource{key: "p"}

	first, err := c.Get(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, c.Invalidate("p"))
	assert.False(t, c.Invalidate("p"))
	_, ok := c.Peek("p")
	assert.False(t, ok)

	second, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)
	assert.Equal(t, int32(2), src.loads.Load())
	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().Invalidations.WithLabelValues("manual")))
}

func TestCache_LogsInvalidation(t *testing.T) {
	logger, logs := testutil.NewCapturingLogger()
	c := newCache(t, Config{Logger: logger})

	_, err := c.Get(context.Background(), &countingSource{key: "p"})
	require.NoError(t, err)
	require.True(t, c.Invalidate("p"))

	assert.True(t, logs.Contains("snapshot invalidated"))
	assert.True(t, logs.Contains("reason=manual"))
}

func TestCache_InvalidateDuringLoadIsNotCached(t *testing.T) {
	c := newCache(t, Config{})
	src := &countingSource{key: "p"}
	src.during = func() { c.Invalidate("p") }

	first, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	require.NotNil(t, first)

	_, cached := c.Peek("p")
	assert.False(t, cached)
	assert.Equal(t, 0, c.Len())

	// The next read rebuilds from the changed source.
	src.during = nil
	second, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)
	assert.Equal(t, int32(2), src.loads.Load())

	third, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, second, third)
}

func TestCache_PurgeDuringLoadIsNotCached(t *testing.T) {
	c := newCache(t, Config{})
	src := &countingSource{key: "p"}
	src.during = c.Purge

	_, err := c.Get(context.Background(), src)
	require.NoError(t, err)

	_, cached := c.Peek("p")
	assert.False(t, cached)
}

func TestCache_LoadErrorNotCached(t *testing.T) {
	c := newCache(t, Config{})
	boom := errors.New("parser crashed")
	src := &countingSource{key: "p", err: boom}

	_, err := c.Get(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	_, err = c.Get(context.Background(), src)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int32(2), src.loads.Load())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 2.0, promtest.ToFloat64(c.Metrics().LoadErrors))
}

func TestCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	c := newCache(t, Config{})
	src := &countingSource{key: "p", delay: 50 * time.Millisecond}

	var wg sync.WaitGroup
	revisions := make([]string, 10)
	for i := range revisions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.Get(context.Background(), src)
			if assert.NoError(t, err) {
				revisions[i] = e.Revision
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.loads.Load())
	for _, rev := range revisions {
		assert.Equal(t, revisions[0], rev)
	}
}

func TestCache_SizeBound(t *testing.T) {
	c := newCache(t, Config{Size: 1})

	_, err := c.Get(context.Background(), &countingSource{key: "one"})
	require.NoError(t, err)
	_, err = c.Get(context.Background(), &countingSource{key: "two"})
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Peek("two")
	assert.True(t, ok)
}

func TestCache_TTLPolicy(t *testing.T) {
	c := newCache(t, Config{Policy: TTLPolicy{MaxAge: 50 * time.Millisecond}})

	_, err := c.Get(context.Background(), &countingSource{key: "p"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := c.Peek("p")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCache_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = newCache(t, Config{Registerer: reg})

	_, err := New(Config{Registerer: reg})
	assert.Error(t, err)
}

func TestCache_PurgeAndClose(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), &countingSource{key: "p"})
	require.NoError(t, err)

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.Close())
}

func TestWatchPolicy_InvalidatesOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"assets":[{"name":"a"}]}`), 0o600))

	changed := make(chan string, 4)
	policy, err := NewWatchPolicy(WatchConfig{
		Debounce: 50 * time.Millisecond,
		OnChange: func(key string) { changed <- key },
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	c := newCache(t, Config{Policy: policy})
	src := source.NewFileSource(path)

	first, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, first.Lineage.Assets, 1)
	assert.Equal(t, 1, policy.Tracked())

	require.NoError(t, os.WriteFile(path, []byte(`{"assets":[{"name":"a"},{"name":"b"}]}`), 0o600))

	select {
	case key := <-changed:
		assert.Equal(t, src.Key(), key)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	_, ok := c.Peek(src.Key())
	assert.False(t, ok)
	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().Invalidations.WithLabelValues("policy")))

	second, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, second.Lineage.Assets, 2)
	assert.NotEqual(t, first.Revision, second.Revision)
}

func TestWatchPolicy_IgnoresNonFileSources(t *testing.T) {
	policy, err := NewWatchPolicy(WatchConfig{})
	require.NoError(t, err)
	defer func() { _ = policy.Close() }()

	require.NoError(t, policy.Track("k", &countingSource{key: "k"}, func(string) {}))
	assert.Equal(t, 0, policy.Tracked())
}

func TestWatchPolicy_CloseIsIdempotent(t *testing.T) {
	policy, err := NewWatchPolicy(WatchConfig{})
	require.NoError(t, err)

	assert.NoError(t, policy.Close())
	assert.NoError(t, policy.Close())
	assert.NoError(t, policy.Track("k", source.NewFileSource("x.json"), func(string) {}))
}
