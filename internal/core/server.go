// Package core provides the API chassis for the FloodLoop service.
// It creates a chi router and enforces cross-cutting concerns -- security,
// logging, observability, and error handling -- before requests reach
// domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"floodloop/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implemented by the observability package on top of Prometheus.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	RecordRequest(method, endpoint, status string, duration time.Duration)

	// Handler returns the HTTP handler that exposes the metrics endpoint.
	Handler() http.Handler
}

// KeyAuthenticator resolves a client API key to its stored record.
// Implemented by the handlers package against the API key repository.
type KeyAuthenticator interface {
	// Authenticate verifies the presented key and returns the matching key ID.
	Authenticate(ctx context.Context, presentedKey string) (string, error)
}

// V1RouteRegistrar registers a domain handler's routes under /v1. This
// indirection avoids import cycles between core and handler packages.
type V1RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the FloodLoop API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator KeyAuthenticator // Resolves client API keys; injected for testability.

	// V1RouteRegistrars is populated by the application entry point before
	// MountRoutes is called.
	V1RouteRegistrars []V1RouteRegistrar

	// AdminRouteRegistrars mount under /v1/admin behind the admin secret.
	AdminRouteRegistrars []V1RouteRegistrar

	// HealthProbes are the dependency checks run by GET /health.
	HealthProbes []HealthProbe

	// onShutdown are cleanup hooks run during Shutdown, in order.
	onShutdown []func()

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup hook (e.g. closing the connection pool) to
// run during graceful shutdown. Hooks run in registration order.
func (s *Server) OnShutdown(fn func()) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Shutdown performs a graceful termination of server resources by running the
// registered cleanup hooks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	for _, fn := range s.onShutdown {
		fn()
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
