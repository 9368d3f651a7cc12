package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"floodloop/internal/core"
	"floodloop/internal/types"
)

// defaultHistoryLimit bounds listings when the client does not ask for a
// specific page size.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SearchStore defines the persistence contract for the search history feed.
type SearchStore interface {
	List(ctx context.Context, limit int) ([]*types.SearchRecord, error)
	Clear(ctx context.Context) (int64, error)
}

// SnapshotReader lists persisted weather snapshots.
type SnapshotReader interface {
	ListByCity(ctx context.Context, cityID string, limit int) ([]*types.WeatherSnapshot, error)
	ListRecent(ctx context.Context, limit int) ([]*types.WeatherSnapshot, error)
}

// HistoryHandler serves the search history feed and recorded snapshots.
type HistoryHandler struct {
	searches  SearchStore
	snapshots SnapshotReader
	logger    *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler with the provided dependencies.
func NewHistoryHandler(searches SearchStore, snapshots SnapshotReader, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{
		searches:  searches,
		snapshots: snapshots,
		logger:    logger,
	}
}

// RegisterRoutes mounts the history endpoints onto the mux.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(hr chi.Router) {
		hr.Use(core.DefaultTimeout())
		hr.Get("/", h.HandleListSearches)
		hr.Delete("/", h.HandleClearSearches)
		hr.Get("/weather", h.HandleListRecentSnapshots)
		hr.Get("/weather/{cityID}", h.HandleListCitySnapshots)
	})
}

// HandleListSearches handles GET /v1/history: most recent search records
// first, optionally limited with ?limit.
func (h *HistoryHandler) HandleListSearches(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	records, err := h.searches.List(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: records})
}

// clearResponse is the payload for DELETE /v1/history.
type clearResponse struct {
	Deleted int64 `json:"deleted"`
}

// HandleClearSearches handles DELETE /v1/history: drops all search records
// and reports how many were removed.
func (h *HistoryHandler) HandleClearSearches(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.searches.Clear(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "search history cleared", "deleted", deleted)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: clearResponse{Deleted: deleted}})
}

// HandleListRecentSnapshots handles GET /v1/history/weather: the latest
// snapshots across all cities.
func (h *HistoryHandler) HandleListRecentSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snaps, err := h.snapshots.ListRecent(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snaps})
}

// HandleListCitySnapshots handles GET /v1/history/weather/{cityID}.
func (h *HistoryHandler) HandleListCitySnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snaps, err := h.snapshots.ListByCity(r.Context(), chi.URLParam(r, "cityID"), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snaps})
}

// parseLimit reads the optional ?limit query param, bounded to
// [1, maxHistoryLimit], defaulting to defaultHistoryLimit.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidLimit,
			"limit must be an integer between 1 and 500",
			nil,
		)
	}
	return limit, nil
}
