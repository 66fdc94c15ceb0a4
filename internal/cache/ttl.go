package cache

import (
	"sync"
	"time"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
)

// Key identifies a cached payload. Entries of different chains never collide.
type Key struct {
	Chain   string
	Purpose string
}

type entry[V any] struct {
	payload    V
	insertedAt time.Time
	ttl        time.Duration
}

// TTL is a process-local cache whose entries expire lazily on read.
// There is no background eviction.
type TTL[V any] struct {
	mu    sync.Mutex
	name  string
	ttl   time.Duration
	items map[Key]entry[V]
	nowFn func() time.Time
}

// NewTTL creates a cache whose entries live for ttl. The name labels metrics.
func NewTTL[V any](name string, ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		name:  name,
		ttl:   ttl,
		items: make(map[Key]entry[V]),
		nowFn: time.Now,
	}
}

// WithClock replaces the clock. Used by tests.
func (c *TTL[V]) WithClock(now func() time.Time) *TTL[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFn = now
	return c
}

// Get returns the payload if it is younger than its TTL. An expired entry is removed.
func (c *TTL[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
		var zero V
		return zero, false
	}
	if c.nowFn().Sub(e.insertedAt) > e.ttl {
		delete(c.items, key)
		metrics.CacheLookups.WithLabelValues(c.name, "expired").Inc()
		var zero V
		return zero, false
	}
	metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	return e.payload, true
}

// Set stores the payload with the cache's default TTL.
func (c *TTL[V]) Set(key Key, payload V) {
	c.SetWithTTL(key, payload, c.ttl)
}

func (c *TTL[V]) SetWithTTL(key Key, payload V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{payload: payload, insertedAt: c.nowFn(), ttl: ttl}
}

func (c *TTL[V]) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear drops every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[Key]entry[V])
}

// Len counts stored entries, including expired ones not read yet.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
