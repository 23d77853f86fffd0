// Package prometheus implements the module's metrics interfaces with
// Prometheus collectors.
//
// Importing this package registers its constructors with pkg/metrics, so a
// binary enables collection with a blank import plus metrics.InitRegistry:
//
//	import _ "github.com/marmos91/aclgate/pkg/metrics/prometheus"
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/aclgate/pkg/cache"
	"github.com/marmos91/aclgate/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(NewCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

var (
	cacheOnce     sync.Once
	cacheInstance *cacheMetrics
)

// NewCacheMetrics creates a Prometheus-backed cache.Metrics instance bound
// to the process-wide registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called). The
// collectors are registered once; repeated calls share one instance, with
// the cache name label keeping consumers apart.
func NewCacheMetrics() cache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	cacheOnce.Do(func() {
		cacheInstance = newCacheMetrics(metrics.GetRegistry())
	})
	return cacheInstance
}

func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	return &cacheMetrics{
		hits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "aclgate_cache_hits_total",
				Help: "Total number of cache hits by cache name and tier",
			},
			[]string{"cache", "tier"}, // tier: "local", "shared"
		),
		misses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "aclgate_cache_misses_total",
				Help: "Total number of full cache misses by cache name",
			},
			[]string{"cache"},
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "aclgate_cache_evictions_total",
				Help: "Total number of local-tier capacity evictions by cache name",
			},
			[]string{"cache"},
		),
	}
}

func (m *cacheMetrics) RecordHit(cache, tier string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(cache, tier).Inc()
}

func (m *cacheMetrics) RecordMiss(cache string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(cache).Inc()
}

func (m *cacheMetrics) RecordEviction(cache string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(cache).Inc()
}
