package metrics

import (
	"github.com/marmos91/aclgate/pkg/guard"
)

// NewGuardMetrics creates a Prometheus-backed guard.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or if
// the Prometheus implementation was not linked into the binary. A nil
// guard.Metrics disables collection.
//
// Example usage:
//
//	metrics.InitRegistry()
//	guarded, err := guard.New(backend, source,
//		guard.WithMetrics(metrics.NewGuardMetrics()),
//	)
func NewGuardMetrics() guard.Metrics {
	if !IsEnabled() || newPrometheusGuardMetrics == nil {
		return nil
	}
	return newPrometheusGuardMetrics()
}

// newPrometheusGuardMetrics is implemented in pkg/metrics/prometheus.
var newPrometheusGuardMetrics func() guard.Metrics

// RegisterGuardMetricsConstructor registers the Prometheus guard metrics
// constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterGuardMetricsConstructor(constructor func() guard.Metrics) {
	newPrometheusGuardMetrics = constructor
}
