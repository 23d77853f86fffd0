package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/aclgate/pkg/cache"
)

type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordHit(cache, tier string) {}
func (noopCacheMetrics) RecordMiss(cache string)      {}
func (noopCacheMetrics) RecordEviction(cache string)  {}

// The registry is process-wide state, so the whole lifecycle is asserted in
// one test to stay independent of test ordering.
func TestRegistryLifecycle(t *testing.T) {
	if IsEnabled() {
		t.Fatal("metrics enabled before InitRegistry")
	}
	if GetRegistry() != nil {
		t.Fatal("GetRegistry() non-nil before InitRegistry")
	}

	// Constructors return nil while disabled, even when registered.
	RegisterCacheMetricsConstructor(func() cache.Metrics { return noopCacheMetrics{} })
	if NewCacheMetrics() != nil {
		t.Error("NewCacheMetrics() non-nil while disabled")
	}
	if NewGuardMetrics() != nil {
		t.Error("NewGuardMetrics() non-nil without a registered constructor")
	}

	// The scrape handler answers 404 while disabled.
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled handler status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	InitRegistry()

	if !IsEnabled() {
		t.Fatal("IsEnabled() false after InitRegistry")
	}
	reg := GetRegistry()
	if reg == nil {
		t.Fatal("GetRegistry() nil after InitRegistry")
	}

	// Repeated calls keep the same registry.
	InitRegistry()
	if GetRegistry() != reg {
		t.Error("InitRegistry() replaced the registry on a second call")
	}

	if NewCacheMetrics() == nil {
		t.Error("NewCacheMetrics() nil while enabled with a registered constructor")
	}

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("handler status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.Len() == 0 {
		t.Error("handler returned an empty exposition body")
	}
}
