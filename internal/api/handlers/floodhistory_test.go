package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func makeFloodHistoryRouter() http.Handler {
	h := NewFloodHistoryHandler(slog.Default())
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func TestHandleFloodHistory_KnownCity(t *testing.T) {
	router := makeFloodHistoryRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/flood-history?city=Mumbai", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data floodHistoryResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.City != "Mumbai" {
		t.Errorf("expected echoed city name, got %q", resp.Data.City)
	}
	if resp.Data.Count != 3 || len(resp.Data.Events) != 3 {
		t.Fatalf("expected 3 Mumbai events, got %d", resp.Data.Count)
	}
	if resp.Data.Events[0].Year != 2005 {
		t.Errorf("expected 2005 floods first, got %d", resp.Data.Events[0].Year)
	}
}

func TestHandleFloodHistory_MissingCity(t *testing.T) {
	router := makeFloodHistoryRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/flood-history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestFloodEventsFor_PartialMatch(t *testing.T) {
	events := FloodEventsFor("Greater Mumbai Metropolitan")
	if len(events) != 3 {
		t.Fatalf("expected Mumbai bucket via partial match, got %d events", len(events))
	}
	if events[0].Event != "Mumbai Floods" {
		t.Errorf("unexpected first event %q", events[0].Event)
	}
}

func TestFloodEventsFor_CaseInsensitive(t *testing.T) {
	upper := FloodEventsFor("NEW ORLEANS")
	lower := FloodEventsFor("new orleans")
	if len(upper) != len(lower) || len(upper) != 2 {
		t.Errorf("expected identical buckets, got %d and %d", len(upper), len(lower))
	}
}

func TestFloodEventsFor_UnknownCityDefaults(t *testing.T) {
	events := FloodEventsFor("Ulaanbaatar")
	if len(events) != 2 {
		t.Fatalf("expected default bucket, got %d events", len(events))
	}
	if events[0].Deaths != nil {
		t.Error("default events carry no death figures")
	}
	if events[0].Source != "UNDRR" {
		t.Errorf("unexpected source %q", events[0].Source)
	}
}
