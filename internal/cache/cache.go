// Package cache implements the generic single-flight cache (C3) shared by
// the lyrics and art resolvers: at most one fetch runs per key at a time,
// concurrent callers for the same key join the in-flight fetch, and
// resolved values persist to disk so a restart does not re-fetch.
//
// The single-flight discipline is hand-rolled rather than built on
// golang.org/x/sync/singleflight because callers need individually
// cancellable waits without aborting the underlying fetch: once a fetch for
// a key has started, it always runs to completion and populates the cache
// for whichever caller (if any) is still waiting, or for the next caller if
// none are. See GetOrFetch for the exact policy.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// entry is one resolved, cached value alongside its bookkeeping.
type entry[V any] struct {
	value     V
	negative  bool
	fetchedAt time.Time
}

func (e entry[V]) expired(now time.Time, negativeTTL time.Duration) bool {
	if !e.negative || negativeTTL <= 0 {
		return false
	}
	return now.Sub(e.fetchedAt) > negativeTTL
}

// call tracks one in-flight fetch so concurrent GetOrFetch callers for the
// same key join it instead of starting their own.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// IsNegative, when implemented by V, lets GetOrFetch distinguish a
// successful-but-empty result (cached briefly) from a real value (cached
// indefinitely). Types that don't implement it are always treated as
// positive results.
type IsNegative interface {
	CacheNegative() bool
}

// Cache is a generic single-flight, disk-backed cache keyed by K. Zero value
// is not usable; construct with New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	calls   map[K]*call[V]

	dir         string
	keyID       func(K) string
	negativeTTL time.Duration

	logger *slog.Logger
}

// Option configures a Cache at construction time.
type Option[K comparable, V any] func(*Cache[K, V])

// WithNegativeTTL sets how long a cached "not found" result is considered
// fresh before the next GetOrFetch re-runs the fetch. Zero disables
// expiry of negative entries (they become permanent, like positive ones).
func WithNegativeTTL[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) { c.negativeTTL = d }
}

// WithLogger attaches a logger; defaults to slog.Default().
func WithLogger[K comparable, V any](l *slog.Logger) Option[K, V] {
	return func(c *Cache[K, V]) { c.logger = l }
}

// New constructs a Cache persisting entries under dir (created if absent),
// addressing each key's file by keyID(key) run through SHA-256 so arbitrary
// key shapes (track keys, artist keys) produce filesystem-safe names.
func New[K comparable, V any](dir string, keyID func(K) string, opts ...Option[K, V]) (*Cache[K, V], error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: create dir %q: %w", dir, err)
		}
	}
	c := &Cache[K, V]{
		entries: make(map[K]entry[V]),
		calls:   make(map[K]*call[V]),
		dir:     dir,
		keyID:   keyID,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache[K, V]) diskPath(key K) string {
	if c.dir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(c.keyID(key)))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// diskRecord is the on-disk envelope around a cached value, written
// write-temp-then-rename like the teacher's playlist store.
type diskRecord[V any] struct {
	Value     V         `json:"value"`
	Negative  bool      `json:"negative"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (c *Cache[K, V]) loadFromDisk(key K) (entry[V], bool) {
	path := c.diskPath(key)
	if path == "" {
		return entry[V]{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return entry[V]{}, false
	}
	var rec diskRecord[V]
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logger.Warn("cache: discarding corrupt disk entry", "path", path, "error", err)
		return entry[V]{}, false
	}
	return entry[V]{value: rec.Value, negative: rec.Negative, fetchedAt: rec.FetchedAt}, true
}

func (c *Cache[K, V]) persist(key K, e entry[V]) {
	path := c.diskPath(key)
	if path == "" {
		return
	}
	raw, err := json.Marshal(diskRecord[V]{Value: e.value, Negative: e.negative, FetchedAt: e.fetchedAt})
	if err != nil {
		c.logger.Warn("cache: failed to marshal entry", "error", err)
		return
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "cache-*.json.tmp")
	if err != nil {
		c.logger.Warn("cache: failed to create temp file", "error", err)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		c.logger.Warn("cache: failed to write temp file", "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		c.logger.Warn("cache: failed to close temp file", "error", err)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		c.logger.Warn("cache: failed to rename temp file", "path", path, "error", err)
	}
}

// Get returns a cached value without triggering a fetch. The second return
// is false on a miss (including an expired negative entry).
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if !ok {
		if loaded, found := c.loadFromDisk(key); found {
			c.mu.Lock()
			c.entries[key] = loaded
			c.mu.Unlock()
			e, ok = loaded, true
		}
	}
	if !ok || e.expired(time.Now(), c.negativeTTL) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// FetchFunc produces a fresh value for a key. Implementations should honor
// ctx cancellation for their own I/O, but note that GetOrFetch's "complete
// in background" policy means the fetch may keep running to populate the
// cache even after every original caller has stopped waiting on it.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// GetOrFetch returns a cached value if fresh, otherwise joins (or starts)
// the single in-flight fetch for key.
//
// Cancellation policy ("complete in background"): if ctx is cancelled while
// this particular call is waiting, GetOrFetch returns ctx.Err() to this
// caller immediately, but the underlying fetch — whether this caller
// started it or joined it — is never aborted. It keeps running so the
// result becomes available in cache for the next caller, or for any other
// caller still waiting on the same in-flight call. This was chosen over
// cancelling the fetch when all waiters leave because fetches here are
// typically a single bounded-timeout HTTP call to an external provider: the
// network cost has already been paid by the time any waiter would bail, so
// throwing the result away helps nobody and only guarantees the next
// request pays the cost again.
func (c *Cache[K, V]) GetOrFetch(ctx context.Context, key K, fetch FetchFunc[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	if inflight, ok := c.calls[key]; ok {
		c.mu.Unlock()
		return c.wait(ctx, inflight)
	}

	cl := &call[V]{done: make(chan struct{})}
	c.calls[key] = cl
	c.mu.Unlock()

	go c.run(key, cl, fetch)

	return c.wait(ctx, cl)
}

func (c *Cache[K, V]) run(key K, cl *call[V], fetch FetchFunc[V]) {
	value, err := fetch(context.Background())
	cl.value, cl.err = value, err

	c.mu.Lock()
	delete(c.calls, key)
	var written entry[V]
	if err == nil {
		written = entry[V]{value: value, fetchedAt: time.Now()}
		if neg, ok := any(value).(IsNegative); ok {
			written.negative = neg.CacheNegative()
		}
		c.entries[key] = written
	}
	c.mu.Unlock()

	// Persist the entry to disk, and only then unblock waiters, so a
	// GetOrFetch return is never observed before its write is durable.
	if err == nil {
		c.persist(key, written)
	}
	close(cl.done)
}

func (c *Cache[K, V]) wait(ctx context.Context, cl *call[V]) (V, error) {
	select {
	case <-cl.done:
		return cl.value, cl.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Invalidate drops any cached entry for key, in memory and on disk, without
// affecting an in-flight fetch.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	if path := c.diskPath(key); path != "" {
		os.Remove(path)
	}
}

// Len reports the number of in-memory entries, for diagnostics.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
