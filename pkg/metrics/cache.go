package metrics

import (
	"github.com/marmos91/aclgate/pkg/cache"
)

// NewCacheMetrics creates a Prometheus-backed cache.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or if
// the Prometheus implementation was not linked into the binary. Callers
// pass the result straight through; cache implementations treat a nil
// Metrics as disabled.
//
// Example usage:
//
//	metrics.InitRegistry()
//	guarded, err := guard.New(backend, source,
//		guard.WithCacheMetrics(metrics.NewCacheMetrics()),
//	)
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is implemented in pkg/metrics/prometheus.
// The indirection keeps the interface owner importable from there without
// an import cycle.
var newPrometheusCacheMetrics func() cache.Metrics

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics
// constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}
