package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/aclgate/pkg/guard"
	"github.com/marmos91/aclgate/pkg/metrics"
)

func init() {
	metrics.RegisterGuardMetricsConstructor(NewGuardMetrics)
}

// guardMetrics is the Prometheus implementation of guard.Metrics.
type guardMetrics struct {
	denials        *prometheus.CounterVec
	ruleResolution prometheus.Histogram
	invalidations  prometheus.Counter
}

var (
	guardOnce     sync.Once
	guardInstance *guardMetrics
)

// NewGuardMetrics creates a Prometheus-backed guard.Metrics instance bound
// to the process-wide registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called). The
// collectors are registered once; repeated calls share one instance.
func NewGuardMetrics() guard.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	guardOnce.Do(func() {
		guardInstance = newGuardMetrics(metrics.GetRegistry())
	})
	return guardInstance
}

func newGuardMetrics(reg prometheus.Registerer) *guardMetrics {
	return &guardMetrics{
		denials: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "aclgate_guard_denials_total",
				Help: "Total number of authorization denials by storage operation",
			},
			[]string{"operation"},
		),
		ruleResolution: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "aclgate_guard_rule_resolution_duration_milliseconds",
				Help: "Duration of rule source round trips in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - in-memory stores
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms - embedded databases
					10,   // 10ms
					50,   // 50ms - remote SQL
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
				},
			},
		),
		invalidations: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "aclgate_guard_invalidations_total",
				Help: "Total number of cache invalidations after mutations",
			},
		),
	}
}

func (m *guardMetrics) RecordDenial(operation string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(operation).Inc()
}

func (m *guardMetrics) ObserveRuleResolution(duration time.Duration) {
	if m == nil {
		return
	}
	m.ruleResolution.Observe(duration.Seconds() * 1000)
}

func (m *guardMetrics) RecordInvalidation() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}
