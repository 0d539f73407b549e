package cache

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/assetlineage/internal/source"
)

// Policy decides when cached snapshots go stale.
type Policy interface {
	// TTL is the maximum age of an entry. Zero means no age limit.
	TTL() time.Duration
	// Track is called after every load of key. A policy that detects
	// staleness itself calls invalidate with the key.
	Track(key string, src source.Source, invalidate func(key string)) error
	// Close releases the policy's resources.
	Close() error
}

// TTLPolicy expires entries by age only.
type TTLPolicy struct {
	MaxAge time.Duration
}

// TTL implements Policy.
func (p TTLPolicy) TTL() time.Duration { return p.MaxAge }

// Track implements Policy.
func (TTLPolicy) Track(string, source.Source, func(string)) error { return nil }

// Close implements Policy.
func (TTLPolicy) Close() error { return nil }

// DefaultDebounce is how long WatchPolicy waits for a burst of file events
// to settle.
const DefaultDebounce = 100 * time.Millisecond

// WatchConfig configures a WatchPolicy.
type WatchConfig struct {
	// MaxAge optionally bounds entry age as well.
	MaxAge   time.Duration
	Debounce time.Duration
	// OnChange is called after a key was invalidated by a file change.
	OnChange func(key string)
	Logger   *slog.Logger
}

type trackedFile struct {
	key        string
	invalidate func(string)
}

// WatchPolicy invalidates file-backed snapshots when their file is written,
// replaced or removed. Sources that are not file-backed are left to MaxAge.
type WatchPolicy struct {
	cfg     WatchConfig
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	files  map[string]trackedFile
	dirs   map[string]struct{}
	timers map[string]*time.Timer
	closed bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatchPolicy starts a file watcher.
func NewWatchPolicy(cfg WatchConfig) (*WatchPolicy, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	p := &WatchPolicy{
		cfg:     cfg,
		watcher: watcher,
		files:   make(map[string]trackedFile),
		dirs:    make(map[string]struct{}),
		timers:  make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p, nil
}

// TTL implements Policy.
func (p *WatchPolicy) TTL() time.Duration { return p.cfg.MaxAge }

// Track implements Policy.
func (p *WatchPolicy) Track(key string, src source.Source, invalidate func(string)) error {
	fb, ok := src.(source.FileBacked)
	if !ok {
		return nil
	}
	path := filepath.Clean(fb.FilePath())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}

	// Editors often replace files rather than write them, so the parent
	// directory is watched and events are matched by path.
	dir := filepath.Dir(path)
	if _, ok := p.dirs[dir]; !ok {
		if err := p.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		p.dirs[dir] = struct{}{}
	}
	p.files[path] = trackedFile{key: key, invalidate: invalidate}
	return nil
}

// Tracked returns the number of files being watched.
func (p *WatchPolicy) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

func (p *WatchPolicy) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.schedule(filepath.Clean(event.Name))

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.cfg.Logger.Error("watcher error", "error", err)
		}
	}
}

// schedule debounces invalidation of path.
func (p *WatchPolicy) schedule(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if _, ok := p.files[path]; !ok {
		return
	}
	if t, ok := p.timers[path]; ok {
		t.Stop()
	}
	p.timers[path] = time.AfterFunc(p.cfg.Debounce, func() { p.fire(path) })
}

func (p *WatchPolicy) fire(path string) {
	p.mu.Lock()
	tracked, ok := p.files[path]
	delete(p.timers, path)
	closed := p.closed
	p.mu.Unlock()

	if !ok || closed {
		return
	}

	p.cfg.Logger.Debug("snapshot file changed", "file", path, "key", tracked.key)
	tracked.invalidate(tracked.key)
	if p.cfg.OnChange != nil {
		p.cfg.OnChange(tracked.key)
	}
}

// Close implements Policy.
func (p *WatchPolicy) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		for _, t := range p.timers {
			t.Stop()
		}
		p.mu.Unlock()

		close(p.done)
		err = p.watcher.Close()
		p.wg.Wait()
	})
	return err
}
