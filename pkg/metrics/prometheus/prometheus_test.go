package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherValue sums all samples of the named metric family.
func gatherValue(t *testing.T, reg *prometheus.Registry, name string) (float64, bool) {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return total, true
	}
	return 0, false
}

func TestCacheMetrics_RecordsHitsMissesEvictions(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newCacheMetrics(registry)

	m.RecordHit("permissions", "local")
	m.RecordHit("permissions", "shared")
	m.RecordHit("listings", "local")
	m.RecordMiss("permissions")
	m.RecordEviction("listings")

	hits, ok := gatherValue(t, registry, "aclgate_cache_hits_total")
	if !ok {
		t.Fatal("aclgate_cache_hits_total not registered")
	}
	if hits != 3 {
		t.Errorf("hits = %v, want 3", hits)
	}

	misses, _ := gatherValue(t, registry, "aclgate_cache_misses_total")
	if misses != 1 {
		t.Errorf("misses = %v, want 1", misses)
	}

	evictions, _ := gatherValue(t, registry, "aclgate_cache_evictions_total")
	if evictions != 1 {
		t.Errorf("evictions = %v, want 1", evictions)
	}
}

func TestGuardMetrics_RecordsDenialsAndInvalidations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newGuardMetrics(registry)

	m.RecordDenial("read_file")
	m.RecordDenial("read_file")
	m.RecordDenial("unlink")
	m.RecordInvalidation()

	denials, ok := gatherValue(t, registry, "aclgate_guard_denials_total")
	if !ok {
		t.Fatal("aclgate_guard_denials_total not registered")
	}
	if denials != 3 {
		t.Errorf("denials = %v, want 3", denials)
	}

	invalidations, _ := gatherValue(t, registry, "aclgate_guard_invalidations_total")
	if invalidations != 1 {
		t.Errorf("invalidations = %v, want 1", invalidations)
	}
}

func TestGuardMetrics_ObservesResolutionDuration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newGuardMetrics(registry)

	m.ObserveRuleResolution(2 * time.Millisecond)
	m.ObserveRuleResolution(40 * time.Millisecond)

	samples, ok := gatherValue(t, registry, "aclgate_guard_rule_resolution_duration_milliseconds")
	if !ok {
		t.Fatal("aclgate_guard_rule_resolution_duration_milliseconds not registered")
	}
	if samples != 2 {
		t.Errorf("histogram sample count = %v, want 2", samples)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var cm *cacheMetrics
	cm.RecordHit("permissions", "local")
	cm.RecordMiss("permissions")
	cm.RecordEviction("permissions")

	var gm *guardMetrics
	gm.RecordDenial("stat")
	gm.ObserveRuleResolution(time.Millisecond)
	gm.RecordInvalidation()
}
