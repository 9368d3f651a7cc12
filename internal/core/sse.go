package core

import (
	"fmt"
	"net/http"
)

// SSEWriter provides Server-Sent Events writing capabilities for streaming
// endpoints. Flushing goes through http.ResponseController, which reaches the
// underlying connection via the middleware wrappers' Unwrap methods.
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSEWriter creates a new SSE writer and emits the required stream headers.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &SSEWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// SendData sends data without an event type (uses default "message" event).
// Format: data: <data>\n\n
func (s *SSEWriter) SendData(data string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// SendComment sends a comment (ignored by clients, useful for keepalive).
// Format: : <comment>\n\n
func (s *SSEWriter) SendComment(comment string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", comment); err != nil {
		return err
	}
	return s.rc.Flush()
}

// SendRetry tells the client to wait the specified milliseconds before reconnecting.
// Format: retry: <ms>\n\n
func (s *SSEWriter) SendRetry(milliseconds int) error {
	if _, err := fmt.Fprintf(s.w, "retry: %d\n\n", milliseconds); err != nil {
		return err
	}
	return s.rc.Flush()
}
