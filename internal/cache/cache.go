// Package cache provides the in-memory TTL memoization that keeps
// repeated report requests from re-hitting the upstream search API.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL memoizes compute results per key for a bounded time window. The
// clock is injected so tests can control expiry deterministically.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
}

// New returns a TTL cache using the supplied clock. A nil clock means
// time.Now.
func New[V any](now func() time.Time) *TTL[V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[V]{entries: make(map[string]entry[V]), now: now}
}

// GetOrCompute returns the cached value for key when it is younger
// than ttl, reporting hit=true. Otherwise it runs compute, stores the
// result, and returns it. A failed compute writes nothing: the error
// propagates unchanged and the next call computes again.
//
// The lock is not held during compute, so a slow upstream fetch never
// blocks unrelated keys. Two concurrent misses for the same key may
// both compute; the later write wins, which is harmless because
// writes are wholesale replacements.
func (c *TTL[V]) GetOrCompute(key string, ttl time.Duration, compute func() (V, error)) (value V, hit bool, err error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) < ttl {
		c.mu.Unlock()
		return e.value, true, nil
	}
	c.mu.Unlock()

	value, err = compute()
	if err != nil {
		var zero V
		return zero, false, err
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
	return value, false, nil
}

// InvalidateAll drops every entry.
func (c *TTL[V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len reports the number of stored entries, fresh or stale.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
