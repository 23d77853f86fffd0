// Package cache implements the two-tier caching used by the storage guard:
// a bounded process-local tier in front of an optional shared tier reachable
// by every instance guarding the same folder.
//
// The local tier answers repeat lookups within one instance; the shared tier
// lets instances benefit from each other's rule resolutions and carries
// cross-process invalidation. Shared-tier failures are never fatal: a failed
// read is a miss and a failed write is dropped, so caching degrades to
// recomputation instead of breaking the operation.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/marmos91/aclgate/internal/logger"
)

// DefaultTTL bounds shared-tier staleness when the owner does not choose one.
const DefaultTTL = 300 * time.Second

// Config contains the settings for a TwoTier cache.
type Config struct {
	// Name labels the entry type in logs and metrics, e.g. "permissions".
	Name string

	// Capacity bounds the local tier. Non-positive means DefaultCapacity.
	Capacity int

	// TTL is the shared-tier entry lifetime. Non-positive means DefaultTTL.
	TTL time.Duration

	// Shared is the shared tier. Nil disables it: the cache degrades to a
	// purely local tier.
	Shared Provider

	// Metrics receives hit/miss/eviction observations. Nil disables
	// collection.
	Metrics Metrics
}

// TwoTier is a read-through cache over a local and an optional shared tier.
// Values cross the shared tier as JSON.
type TwoTier[V any] struct {
	name    string
	local   *Local[V]
	shared  Provider
	ttl     time.Duration
	metrics Metrics
}

// NewTwoTier creates a cache from the given configuration.
func NewTwoTier[V any](cfg Config) *TwoTier[V] {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TwoTier[V]{
		name:    cfg.Name,
		local:   NewLocal[V](cfg.Capacity),
		shared:  cfg.Shared,
		ttl:     ttl,
		metrics: cfg.Metrics,
	}
}

// Get returns the cached value for key, consulting the local tier first and
// falling back to the shared tier. A shared hit is backfilled into the local
// tier. Shared-tier failures count as misses.
func (c *TwoTier[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := c.local.Get(key); ok {
		c.recordHit("local")
		return v, true
	}

	var zero V
	if c.shared == nil {
		c.recordMiss()
		return zero, false
	}

	data, found, err := c.shared.Get(ctx, key)
	if err != nil {
		logger.Debug("shared cache read failed, treating as miss",
			"cache", c.name, "key", key, "error", err)
		c.recordMiss()
		return zero, false
	}
	if !found {
		c.recordMiss()
		return zero, false
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Debug("shared cache entry undecodable, treating as miss",
			"cache", c.name, "key", key, "error", err)
		c.recordMiss()
		return zero, false
	}

	if c.local.Set(key, v) {
		c.recordEviction()
	}
	c.recordHit("shared")
	return v, true
}

// Set stores value in both tiers, the shared one with the configured TTL.
// Shared-tier write failures are logged and dropped.
func (c *TwoTier[V]) Set(ctx context.Context, key string, value V) {
	if c.local.Set(key, value) {
		c.recordEviction()
	}

	if c.shared == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger.Debug("shared cache entry unencodable, skipping shared write",
			"cache", c.name, "key", key, "error", err)
		return
	}
	if err := c.shared.Set(ctx, key, data, c.ttl); err != nil {
		logger.Debug("shared cache write failed",
			"cache", c.name, "key", key, "error", err)
	}
}

// ClearLocal drops every entry from the local tier. Shared entries are
// untouched; invalidation removes those by key.
func (c *TwoTier[V]) ClearLocal() {
	c.local.Clear()
}

// RemoveShared deletes key from the shared tier, if one is configured.
func (c *TwoTier[V]) RemoveShared(ctx context.Context, key string) error {
	if c.shared == nil {
		return nil
	}
	return c.shared.Remove(ctx, key)
}

// LocalLen returns the number of entries in the local tier.
func (c *TwoTier[V]) LocalLen() int {
	return c.local.Len()
}

func (c *TwoTier[V]) recordHit(tier string) {
	if c.metrics != nil {
		c.metrics.RecordHit(c.name, tier)
	}
}

func (c *TwoTier[V]) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordMiss(c.name)
	}
}

func (c *TwoTier[V]) recordEviction() {
	if c.metrics != nil {
		c.metrics.RecordEviction(c.name)
	}
}
