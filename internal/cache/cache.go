// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
)

// Default tuning values.
const (
	DefaultTTL           = 24 * time.Hour
	DefaultMaxEntries    = 10000
	DefaultSweepInterval = 5 * time.Minute
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
	// lastAccess is unix nanoseconds, updated under the read lock.
	lastAccess atomic.Int64
}

// Stats tracks cache performance metrics
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
	LastSweep time.Time
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	ttl           time.Duration
	maxEntries    int
	sweepInterval time.Duration
	now           func() time.Time
	name          string
}

// WithTTL sets the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithMaxEntries sets the entry count above which Sweep evicts
// least-recently-accessed entries. Zero disables size eviction.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithSweepInterval sets the Serve ticker period.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithName labels the cache in metrics and logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// TTLCache is a thread-safe key/value store with per-entry expiration and
// approximate LRU eviction.
//
// Expired entries are dropped lazily on Get and eagerly by Sweep. When the
// entry count exceeds the configured maximum, Sweep evicts the entries with
// the oldest last-access timestamps. A single cooperative ticker (Serve) drives
// Sweep; there are no other background goroutines.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]

	// missMu serializes GetOrAdd factory calls so at most one runs at a time.
	missMu sync.Mutex

	opts options

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	lastSweep atomic.Int64
}

// New creates a TTLCache. No goroutine is started; run Serve (directly or under
// a supervisor) to enable periodic sweeping.
//
// Example:
//
//	fingerprints := cache.New[string, models.FileFingerprint](
//	    cache.WithTTL(24*time.Hour),
//	    cache.WithMaxEntries(10000),
//	)
func New[K comparable, V any](opts ...Option) *TTLCache[K, V] {
	o := options{
		ttl:           DefaultTTL,
		maxEntries:    DefaultMaxEntries,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		name:          "cache",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	if o.sweepInterval <= 0 {
		o.sweepInterval = DefaultSweepInterval
	}
	if o.now == nil {
		o.now = time.Now
	}

	c := &TTLCache[K, V]{
		entries: make(map[K]*entry[V]),
		opts:    o,
	}
	c.lastSweep.Store(o.now().UnixNano())
	return c
}

// Get returns the value for key if present and not expired.
// A successful lookup refreshes the entry's last-access time.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lookup(key)
	if ok {
		c.hits.Add(1)
		metrics.CacheHits.WithLabelValues(c.opts.name).Inc()
	} else {
		c.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(c.opts.name).Inc()
	}
	return v, ok
}

// lookup is Get without statistics.
func (c *TTLCache[K, V]) lookup(key K) (V, bool) {
	var zero V
	now := c.opts.now()

	c.mu.RLock()
	e, exists := c.entries[key]
	if exists && now.Before(e.expiresAt) {
		e.lastAccess.Store(now.UnixNano())
		v := e.value
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	if exists {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, ok := c.entries[key]; ok && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
			c.recordEvictions(1)
		}
		c.mu.Unlock()
	}
	return zero, false
}

// Set stores value with the default TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.opts.ttl)
}

// SetWithTTL stores value with a custom TTL.
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.ttl
	}
	now := c.opts.now()
	e := &entry[V]{value: value, expiresAt: now.Add(ttl)}
	e.lastAccess.Store(now.UnixNano())

	c.mu.Lock()
	c.entries[key] = e
	n := len(c.entries)
	c.mu.Unlock()

	metrics.CacheEntries.WithLabelValues(c.opts.name).Set(float64(n))
}

// Delete removes key. It is a no-op for absent keys.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if existed {
		c.recordEvictions(1)
	}
}

// Clear removes every entry.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[K]*entry[V])
	c.mu.Unlock()

	c.recordEvictions(int64(n))
	metrics.CacheEntries.WithLabelValues(c.opts.name).Set(0)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrAdd returns the cached value for key, or calls factory and caches its
// result. At most one factory runs at a time per cache: the miss path takes a
// cache-wide mutex and re-checks before calling factory. Factory errors are
// returned and nothing is cached.
func (c *TTLCache[K, V]) GetOrAdd(key K, factory func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.missMu.Lock()
	defer c.missMu.Unlock()

	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err := factory()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Snapshot returns a copy of all unexpired entries.
func (c *TTLCache[K, V]) Snapshot() map[K]V {
	now := c.opts.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[K]V, len(c.entries))
	for k, e := range c.entries {
		if now.Before(e.expiresAt) {
			out[k] = e.value
		}
	}
	return out
}

// Sweep removes entries expired at now, then evicts least-recently-accessed
// entries until the count is within the configured maximum.
// It returns the number of entries removed.
func (c *TTLCache[K, V]) Sweep(now time.Time) int {
	c.mu.Lock()

	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}

	if limit := c.opts.maxEntries; limit > 0 && len(c.entries) > limit {
		type aged struct {
			key        K
			lastAccess int64
		}
		candidates := make([]aged, 0, len(c.entries))
		for k, e := range c.entries {
			candidates = append(candidates, aged{key: k, lastAccess: e.lastAccess.Load()})
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].lastAccess < candidates[j].lastAccess
		})
		excess := len(c.entries) - limit
		for _, cand := range candidates[:excess] {
			delete(c.entries, cand.key)
			removed++
		}
	}

	remaining := len(c.entries)
	c.mu.Unlock()

	c.lastSweep.Store(now.UnixNano())
	c.recordEvictions(int64(removed))
	metrics.CacheEntries.WithLabelValues(c.opts.name).Set(float64(remaining))

	return removed
}

// Serve runs Sweep every sweep interval until ctx is cancelled.
// It implements suture.Service.
func (c *TTLCache[K, V]) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := c.Sweep(c.opts.now()); n > 0 {
				logging.Debug().Str("cache", c.opts.name).Int("removed", n).Int("remaining", c.Len()).Msg("Cache sweep")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (c *TTLCache[K, V]) String() string {
	return c.opts.name + "-sweeper"
}

// GetStats returns a snapshot of current cache statistics.
func (c *TTLCache[K, V]) GetStats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		TotalKeys: int64(c.Len()),
		LastSweep: time.Unix(0, c.lastSweep.Load()),
	}
}

// HitRate returns the cache hit rate as a percentage
func (c *TTLCache[K, V]) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (c *TTLCache[K, V]) recordEvictions(n int64) {
	if n <= 0 {
		return
	}
	c.evictions.Add(n)
	metrics.CacheEvictions.WithLabelValues(c.opts.name).Add(float64(n))
}
