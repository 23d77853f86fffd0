package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/aclgate/internal/logger"
	"github.com/marmos91/aclgate/pkg/api/auth"
	"github.com/marmos91/aclgate/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/aclgate/pkg/api/middleware"
)

// healthPath is the unauthenticated liveness endpoint; requests to it are
// logged at DEBUG level to keep probe noise out of the logs.
const healthPath = "/api/v1/health"

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /api/v1/health - Liveness probe (public)
//   - POST /api/v1/auth/login - Admin authentication (public)
//   - GET /api/v1/status - Service and rule store status
//   - GET /api/v1/folders/{folderID}/rules - List rules
//   - PUT /api/v1/folders/{folderID}/rules - Set rules
//   - DELETE /api/v1/folders/{folderID}/rules - Delete a rule
//   - POST /api/v1/folders/{folderID}/check - Resolve effective permissions
//   - POST /api/v1/cache/invalidate - Shared cache invalidation
//     (registered only when a shared cache is configured)
func NewRouter(cfg Config, deps Deps, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	healthHandler := handlers.NewHealthHandler(deps.Store, handlers.ServiceInfo{
		Version:     deps.Version,
		StoreType:   deps.StoreType,
		SharedCache: deps.SharedCache != nil,
	})
	authHandler := handlers.NewAuthHandler(deps.Admin, jwtService)
	rulesHandler := handlers.NewRulesHandler(deps.Store)

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, healthPath, http.StatusTemporaryRedirect)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Get("/health", healthHandler.Health)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes - require a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))

			r.Get("/status", healthHandler.Status)

			r.Route("/folders/{folderID}", func(r chi.Router) {
				r.Get("/rules", rulesHandler.List)
				r.Put("/rules", rulesHandler.Set)
				r.Delete("/rules", rulesHandler.Delete)
				r.Post("/check", rulesHandler.Check)
			})

			// Shared cache invalidation - only when a shared tier exists
			if deps.SharedCache != nil {
				cacheHandler := handlers.NewCacheHandler(deps.SharedCache)
				r.Post("/cache/invalidate", cacheHandler.Invalidate)
			}
		})
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.RequestID(requestID),
			logger.Method(r.Method),
			logger.Route(r.URL.Path),
			logger.ClientIP(r.RemoteAddr),
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.RequestID(requestID),
			logger.Method(r.Method),
			logger.Route(r.URL.Path),
			logger.Status(ww.Status()),
			logger.Bytes(int64(ww.BytesWritten())),
			logger.DurationMs(logger.Duration(start)),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if r.URL.Path == healthPath {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
