package cache

// Metrics provides observability for two-tier cache operations.
//
// Implementations collect per-tier hit rates and eviction pressure. This is
// optional: a nil Metrics skips collection with zero overhead.
//
// Example implementations:
//   - Prometheus metrics (pkg/metrics/prometheus)
//   - In-memory counters for testing
type Metrics interface {
	// RecordHit records a cache hit. cache names the entry type
	// ("permissions", "listings"); tier is "local" or "shared".
	RecordHit(cache, tier string)

	// RecordMiss records a full miss across both tiers.
	RecordMiss(cache string)

	// RecordEviction records a capacity eviction from the local tier.
	RecordEviction(cache string)
}
