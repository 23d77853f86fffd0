package guard

import (
	"time"

	"github.com/marmos91/aclgate/pkg/cache"
)

// options collects the construction-time knobs for a guard scope.
type options struct {
	folderID      int64
	storageID     string
	inShare       bool
	cacheCapacity int
	cacheTTL      time.Duration
	shared        cache.Provider
	metrics       Metrics
	cacheMetrics  cache.Metrics
}

// Option configures New and NewAccessGate.
type Option func(*options)

func resolveOptions(opts []Option) options {
	o := options{
		cacheCapacity: cache.DefaultCapacity,
		cacheTTL:      cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithFolderID binds the scope to a rule folder. Rules bound to other
// folders never affect it.
func WithFolderID(folderID int64) Option {
	return func(o *options) { o.folderID = folderID }
}

// WithStorageID names the storage being guarded; the rule source maps it
// back to its folder for batched lookups.
func WithStorageID(storageID string) Option {
	return func(o *options) { o.storageID = storageID }
}

// WithInShare marks a scope reached through a share, where the SHARE bit
// satisfies the read requirement alongside READ.
func WithInShare(inShare bool) Option {
	return func(o *options) { o.inShare = inShare }
}

// WithCacheCapacity bounds each local cache tier. Non-positive values fall
// back to cache.DefaultCapacity.
func WithCacheCapacity(capacity int) Option {
	return func(o *options) { o.cacheCapacity = capacity }
}

// WithCacheTTL sets the shared-tier entry lifetime. Non-positive values
// fall back to cache.DefaultTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

// WithSharedCache plugs in the shared cache tier, already namespaced for
// this scope's (storageID, folderID). Without it the guard runs on its
// local tiers alone.
func WithSharedCache(provider cache.Provider) Option {
	return func(o *options) { o.shared = provider }
}

// WithMetrics wires authorization and invalidation observations. Nil
// disables collection.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCacheMetrics wires hit, miss and eviction observations for the cache
// tiers. Nil disables collection.
func WithCacheMetrics(m cache.Metrics) Option {
	return func(o *options) { o.cacheMetrics = m }
}
