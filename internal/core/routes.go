package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"floodloop/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to request contexts.
// Streaming endpoints (the live feed) opt out via chi inline middleware.
const defaultRequestTimeout = 29 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-API-Key",
	"X-Admin-Key",
}

// MountRoutes defines the top-level routing hierarchy.
// It registers the global middleware chain, API version groups, and top-level
// routes (health check, metrics).
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	// API Version Groups
	s.router.Route("/v1", s.mountV1)

	// Top-Level Routes (outside /v1 namespace)
	s.router.Get("/health", s.HandleHealth)
	if s.Metrics != nil {
		s.router.Handle("/metrics", s.Metrics.Handler())
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer       - Catches panics; outermost to catch all failures.
//  2. RequestID       - Generates/propagates correlation ID for tracing.
//  3. SecurityHeaders - Ensures all responses include security headers.
//  4. RequestLogger   - Structured logging (redacted headers).
//  5. CORS            - Browser security headers.
//  6. Gzip            - JSON response compression; skips the SSE stream
//     because only application/json responses are compressed.
//  7. Metrics         - Request latency and count recording.
//  8. Auth            - Resolves client API keys when enforcement is enabled.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(gzipMiddleware())
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(s.AuthMiddleware)
}

// mountV1 registers all v1 endpoints. Domain handler routes are registered via
// V1RouteRegistrars, which are populated by the application entry point
// (main.go). Admin routes mount under /v1/admin behind the admin secret.
func (s *Server) mountV1(r chi.Router) {
	// The soft deadline applies to plain request/response endpoints. The
	// live feed registrar mounts its own route group without it.
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}

	if len(s.AdminRouteRegistrars) > 0 {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(s.AdminAuthMiddleware)
			for _, registrar := range s.AdminRouteRegistrars {
				registrar(ar)
			}
		})
	}
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// that stream (SSE) must not be mounted behind it.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DefaultTimeout returns the standard per-request timeout middleware.
func DefaultTimeout() func(http.Handler) http.Handler {
	return ContextTimeoutMiddleware(defaultRequestTimeout)
}

// gzipMiddleware compresses JSON responses. The content-type allowlist keeps
// the SSE stream (text/event-stream) uncompressed so events flush promptly.
func gzipMiddleware() func(http.Handler) http.Handler {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.ContentTypes([]string{"application/json"}),
		gzhttp.MinSize(1024),
	)
	if err != nil {
		// Only reachable with invalid static options.
		panic(err)
	}
	return func(next http.Handler) http.Handler {
		return wrapper(next)
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs and traces. If the incoming request contains an
// X-Request-Id header, that value is reused; otherwise, a new random ID is
// generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)

		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random hex string suitable
// for use as a request correlation ID. It generates 16 random bytes encoded
// as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback: this should never happen in practice. If crypto/rand
		// fails, we still need a non-empty ID for correlation.
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// chiRouteContext returns the matched chi route pattern, if any.
func chiRouteContext(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}
