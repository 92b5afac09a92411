// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := New[string](ttl, 0)
	c.now = clock.Now
	t.Cleanup(c.Close)
	return c, clock
}

func TestCacheGetSet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get() = %q, %v; want v, true", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("missing key should not be found")
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestCacheExpiry(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	c.Set("k", "v")
	clock.Advance(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should not be returned")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expired entry should be removed on read", c.Len())
	}
}

func TestCacheSetIfAbsent(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	if v, won := c.SetIfAbsent("k", "first"); !won || v != "first" {
		t.Fatalf("first SetIfAbsent = %q, %v", v, won)
	}
	if v, won := c.SetIfAbsent("k", "second"); won || v != "first" {
		t.Fatalf("second SetIfAbsent = %q, %v; want first, false", v, won)
	}

	clock.Advance(2 * time.Minute)
	if v, won := c.SetIfAbsent("k", "third"); !won || v != "third" {
		t.Fatalf("SetIfAbsent after expiry = %q, %v; want third, true", v, won)
	}
}

func TestCachePrune(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	c.Set("a", "1")
	c.SetWithTTL("b", "2", time.Hour)
	clock.Advance(5 * time.Minute)

	if removed := c.Prune(); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("long-lived entry should survive prune")
	}
}

func TestGenerateKeyStable(t *testing.T) {
	t.Parallel()

	a := GenerateKey("price", map[string]string{"venue": "v1", "sku": "burger"})
	b := GenerateKey("price", map[string]string{"sku": "burger", "venue": "v1"})
	if a != b {
		t.Errorf("keys differ for equal params: %s vs %s", a, b)
	}
}
