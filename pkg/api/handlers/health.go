package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/aclgate/pkg/rules"
)

// HealthCheckTimeout is the maximum time allowed for the rule store probe
// behind the status endpoint, so a slow store cannot hang health checks.
const HealthCheckTimeout = 5 * time.Second

// ServiceInfo carries static facts about the running service for the
// status endpoint.
type ServiceInfo struct {
	// Version is the build version string.
	Version string

	// StoreType names the configured rule store backend.
	StoreType string

	// SharedCache reports whether a shared cache tier is configured.
	SharedCache bool
}

// HealthHandler handles the health and status endpoints.
//
// The health endpoint is unauthenticated and reports process liveness.
// The status endpoint is authenticated and additionally probes the rule
// store.
type HealthHandler struct {
	store     rules.Store
	info      ServiceInfo
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store rules.Store, info ServiceInfo) *HealthHandler {
	return &HealthHandler{
		store:     store,
		info:      info,
		startTime: time.Now(),
	}
}

// Health handles GET /api/v1/health - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for Kubernetes liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "aclgate",
		"version":    h.info.Version,
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Status handles GET /api/v1/status - authenticated service status.
//
// Probes the rule store by listing folders. Returns 200 OK with store and
// cache details when the store answers, 503 Service Unavailable when it
// does not.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	folders, err := h.store.ListFolders(ctx)
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable,
			unhealthyResponse("rule store unavailable: "+err.Error()))
		return
	}

	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"version": h.info.Version,
		"uptime":  uptime.Round(time.Second).String(),
		"store": map[string]any{
			"type":    h.info.StoreType,
			"folders": len(folders),
		},
		"shared_cache": h.info.SharedCache,
	}))
}
