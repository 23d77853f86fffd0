package cache

import "sync"

// Local is the process-local cache tier: a bounded map with insertion-order
// eviction. Entries never expire; they are dropped when capacity forces out
// the oldest insertion or when the owner clears the tier wholesale during
// invalidation. Safe for concurrent use.
type Local[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]V
	order    []string
}

// DefaultCapacity bounds a local tier when the owner does not choose one.
const DefaultCapacity = 512

// NewLocal creates a local tier holding at most capacity entries.
// Non-positive capacities fall back to DefaultCapacity.
func NewLocal[V any](capacity int) *Local[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Local[V]{
		capacity: capacity,
		entries:  make(map[string]V, capacity),
	}
}

// Get returns the cached value for key.
func (c *Local[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	return v, ok
}

// Set stores value under key, evicting the oldest insertion if the tier is
// full. Updating an existing key keeps its original position. Reports
// whether an eviction happened.
func (c *Local[V]) Set(key string, value V) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return false
	}

	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		evicted = true
	}

	c.entries[key] = value
	c.order = append(c.order, key)
	return evicted
}

// Clear drops every entry.
func (c *Local[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]V, c.capacity)
	c.order = c.order[:0]
}

// Len returns the current number of entries.
func (c *Local[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
