// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCacheBasicOperations(t *testing.T) {
	c := New[string, string](WithName("test-basic"))

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	if _, exists = c.Get("key2"); exists {
		t.Error("Expected key2 to not exist")
	}

	c.Delete("key1")
	if _, exists = c.Get("key1"); exists {
		t.Error("Expected key1 to be deleted")
	}
	c.Delete("missing")
}

func TestCacheExpiration(t *testing.T) {
	clock := newFakeClock()
	c := New[string, int](WithTTL(time.Minute), WithClock(clock.Now), WithName("test-expiry"))

	c.Set("a", 1)
	c.SetWithTTL("b", 2, 10*time.Minute)

	clock.Advance(2 * time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("Expected a to be expired")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Expected b=2 to survive custom TTL, got %v %v", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after lazy expiry", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c := New[string, string](WithName("test-clear"))
	for _, k := range []string{"key1", "key2", "key3"} {
		c.Set(k, k)
	}

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
	if stats := c.GetStats(); stats.Evictions != 3 {
		t.Errorf("Evictions = %d, want 3", stats.Evictions)
	}
}

func TestCacheSweep(t *testing.T) {
	tests := []struct {
		name       string
		maxEntries int
		setup      func(c *TTLCache[string, int], clock *fakeClock)
		wantKeys   []string
		wantGone   []string
	}{
		{
			name:       "removes expired entries",
			maxEntries: 0,
			setup: func(c *TTLCache[string, int], clock *fakeClock) {
				c.SetWithTTL("short", 1, time.Minute)
				c.SetWithTTL("long", 2, time.Hour)
				clock.Advance(5 * time.Minute)
			},
			wantKeys: []string{"long"},
			wantGone: []string{"short"},
		},
		{
			name:       "evicts least recently accessed above max",
			maxEntries: 2,
			setup: func(c *TTLCache[string, int], clock *fakeClock) {
				c.Set("oldest", 1)
				clock.Advance(time.Second)
				c.Set("middle", 2)
				clock.Advance(time.Second)
				c.Set("newest", 3)
				clock.Advance(time.Second)
				// Touching oldest makes middle the least recently accessed.
				c.Get("oldest")
			},
			wantKeys: []string{"oldest", "newest"},
			wantGone: []string{"middle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			c := New[string, int](
				WithTTL(time.Hour),
				WithMaxEntries(tt.maxEntries),
				WithClock(clock.Now),
				WithName("test-sweep"),
			)
			tt.setup(c, clock)

			c.Sweep(clock.Now())

			for _, k := range tt.wantKeys {
				if _, ok := c.lookup(k); !ok {
					t.Errorf("expected %q to remain", k)
				}
			}
			for _, k := range tt.wantGone {
				if _, ok := c.lookup(k); ok {
					t.Errorf("expected %q to be removed", k)
				}
			}
		})
	}
}

func TestGetOrAdd_SingleFactoryInvocation(t *testing.T) {
	c := New[string, int](WithName("test-getoradd"))

	var calls atomic.Int32
	release := make(chan struct{})
	factory := func() (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	const goroutines = 16
	var wg sync.WaitGroup
	results := make([]int, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrAdd("k", factory)
			if err != nil {
				t.Errorf("GetOrAdd error: %v", err)
			}
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1", calls.Load())
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("result[%d] = %d, want 7", i, v)
		}
	}
}

func TestGetOrAdd_ErrorNotCached(t *testing.T) {
	c := New[string, int](WithName("test-getoradd-err"))
	boom := errors.New("boom")

	if _, err := c.GetOrAdd("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Error("failed factory result should not be cached")
	}

	v, err := c.GetOrAdd("k", func() (int, error) { return 3, nil })
	if err != nil || v != 3 {
		t.Errorf("GetOrAdd = %d, %v; want 3, nil", v, err)
	}
}

func TestSnapshotSkipsExpired(t *testing.T) {
	clock := newFakeClock()
	c := New[string, int](WithTTL(time.Minute), WithClock(clock.Now), WithName("test-snapshot"))
	c.Set("old", 1)
	clock.Advance(2 * time.Minute)
	c.Set("fresh", 2)

	snap := c.Snapshot()
	if len(snap) != 1 || snap["fresh"] != 2 {
		t.Errorf("Snapshot() = %v, want only fresh", snap)
	}
}

func TestHitRate(t *testing.T) {
	c := New[string, int](WithName("test-hitrate"))
	if c.HitRate() != 0 {
		t.Error("HitRate should be 0 with no lookups")
	}
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	if got := c.HitRate(); got != 75.0 {
		t.Errorf("HitRate() = %v, want 75", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	c := New[string, int](WithSweepInterval(5*time.Millisecond), WithName("test-serve"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int](WithMaxEntries(50), WithName("test-concurrent"))
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (id*200+j)%100)
				c.Set(key, j)
				c.Get(key)
				if j%50 == 0 {
					c.Sweep(time.Now())
				}
			}
		}(i)
	}
	wg.Wait()

	c.Sweep(time.Now())
	if c.Len() > 50 {
		t.Errorf("Len() = %d after sweep, want <= 50", c.Len())
	}
}
