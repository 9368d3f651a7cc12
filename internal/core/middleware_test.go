package core

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"floodloop/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecoverer_CatchesPanic(t *testing.T) {
	srv := &Server{Logger: discardLogger()}
	handler := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/weather", nil)
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}

	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode recovered response: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected internal error code, got %q", body.Error.Code)
	}
	if strings.Contains(body.Error.Message, "boom") {
		t.Error("panic value leaked to client")
	}
}

func TestRecoverer_PassesThroughNormally(t *testing.T) {
	srv := &Server{Logger: discardLogger()}
	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("expected handler status preserved, got %d", w.Code)
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected a request ID in context")
	}
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(seen) {
		t.Errorf("expected 32 hex chars, got %q", seen)
	}
	if got := w.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("expected response header to match context ID, got %q", got)
	}
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "client-supplied-id")
	handler.ServeHTTP(w, r)

	if seen != "client-supplied-id" {
		t.Errorf("expected incoming ID reused, got %q", seen)
	}
}

func TestRequestLogger_RedactsSensitiveHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger, defaultRedactedHeaders)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/weather", nil)
	r.Header.Set("X-API-Key", "fl_live_supersecret")
	r.Header.Set("Accept", "application/json")
	handler.ServeHTTP(w, r)

	logged := buf.String()
	if strings.Contains(logged, "fl_live_supersecret") {
		t.Error("API key value leaked into request log")
	}
	if !strings.Contains(logged, "[REDACTED]") {
		t.Error("expected redaction marker in log")
	}
	if !strings.Contains(logged, "application/json") {
		t.Error("expected non-sensitive headers logged verbatim")
	}
}

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, `"level":"INFO"`},
		{http.StatusBadRequest, `"level":"WARN"`},
		{http.StatusInternalServerError, `"level":"ERROR"`},
	}

	for _, tc := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		handler := RequestLogger(logger, nil)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}),
		)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if !strings.Contains(buf.String(), tc.level) {
			t.Errorf("status %d: expected log level %s, got %s", tc.status, tc.level, buf.String())
		}
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	srv := &Server{}
	handler := srv.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY, got %q", got)
	}
}

func TestCORSMiddleware_AllowAll(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://example.com")
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestCORSMiddleware_AllowedListAndVary(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.floodloop.io"})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.floodloop.io")
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.floodloop.io" {
		t.Errorf("expected listed origin echoed, got %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("expected Vary: Origin for non-wildcard, got %q", got)
	}
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.floodloop.io"})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers for unlisted origin, got %q", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := NewCORSMiddleware([]string{"*"})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://example.com")
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for preflight, got %d", w.Code)
	}
	if called {
		t.Error("expected preflight to short-circuit the handler chain")
	}
}

func TestResponseCapture_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	if _, err := rc.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if rc.statusCode != http.StatusOK {
		t.Errorf("expected implicit 200 captured, got %d", rc.statusCode)
	}
}

func TestResponseCapture_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	rc.WriteHeader(http.StatusNotFound)
	rc.WriteHeader(http.StatusOK)

	if rc.statusCode != http.StatusNotFound {
		t.Errorf("expected first status captured, got %d", rc.statusCode)
	}
}

func TestResponseCapture_UnwrapExposesFlusher(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	ctrl := http.NewResponseController(rc)
	if err := ctrl.Flush(); err != nil {
		t.Errorf("expected Flush to reach the underlying recorder, got %v", err)
	}
	if !rec.Flushed {
		t.Error("expected underlying recorder to be flushed")
	}
}
