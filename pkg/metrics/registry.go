// Package metrics manages the process-wide Prometheus registry and the
// constructors for component metrics.
//
// Metrics are opt-in: nothing is collected until InitRegistry is called.
// Component constructors (NewCacheMetrics, NewGuardMetrics) return nil when
// the registry is not initialized, and every consumer treats a nil metrics
// sink as disabled, so the disabled path has zero overhead.
//
// The concrete Prometheus implementations live in pkg/metrics/prometheus and
// register themselves here at init time. Importing that package (usually via
// a blank import in the main package) is what makes the constructors live.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registryMu sync.RWMutex
	registry   *prometheus.Registry
)

// InitRegistry creates the process-wide registry and seeds it with the
// standard Go runtime and process collectors. Calling it more than once is
// a no-op.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry != nil {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format. When metrics are disabled the handler answers 404 so
// a scrape target misconfiguration is visible instead of silently empty.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg := GetRegistry()
		if reg == nil {
			http.NotFound(w, r)
			return
		}
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
