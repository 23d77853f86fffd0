package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/aclgate/internal/logger"
	"github.com/marmos91/aclgate/pkg/api/auth"
	"github.com/marmos91/aclgate/pkg/api/handlers"
	"github.com/marmos91/aclgate/pkg/rules"
)

// Deps carries the runtime dependencies the API serves.
type Deps struct {
	// Store is the rule persistence backend behind the rules endpoints.
	Store rules.Store

	// Admin is the identity the login endpoint checks against.
	Admin handlers.Credentials

	// SharedCache builds a provider scoped to one (storage, folder) pair.
	// Nil when no shared tier is configured; the cache invalidation
	// endpoint is not registered in that case.
	SharedCache handlers.ProviderFunc

	// StoreType names the configured rule store backend in status output.
	StoreType string

	// Version is reported by the health and status endpoints.
	Version string
}

// Server provides an HTTP server for the admin REST API.
//
// The server exposes rule management, permission check, cache invalidation
// and health endpoints, and supports graceful shutdown.
type Server struct {
	server       *http.Server
	jwtService   *auth.JWTService
	deps         Deps
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// The JWT service is created internally from the config. The JWT secret must
// be configured via config.JWT.Secret or the ACLGATE_API_SECRET environment
// variable and must be at least 32 characters.
func NewServer(config Config, deps Deps) (*Server, error) {
	config.ApplyDefaults()

	if deps.Store == nil {
		return nil, fmt.Errorf("rule store is required")
	}

	// Get JWT secret from config (prefers env var)
	jwtSecret := config.GetJWTSecret()
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvAPISecret)
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        jwtSecret,
		Issuer:        "aclgate",
		TokenDuration: config.JWT.AccessTokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	router := NewRouter(config, deps, jwtService)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server:     server,
		jwtService: jwtService,
		deps:       deps,
		config:     config,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil. A listen failure returns the underlying error.
func (s *Server) Start(ctx context.Context) error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/api/v1/health", s.config.Port),
			"login", fmt.Sprintf("http://localhost:%d/api/v1/auth/login", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.Err(err))
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
