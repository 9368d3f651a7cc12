package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"floodloop/internal/core"
	"floodloop/internal/observability"
	"floodloop/internal/types"
)

// AlertStore defines the persistence contract for the alert handler.
type AlertStore interface {
	Create(ctx context.Context, alert *types.Alert) error
	List(ctx context.Context) ([]*types.Alert, error)
	ListByCity(ctx context.Context, cityID string) ([]*types.Alert, error)
	SetActive(ctx context.Context, id string, active bool) (*types.Alert, error)
	Delete(ctx context.Context, id string) error
}

// CityFinder resolves a city for the alert-check flow.
type CityFinder interface {
	GetByID(ctx context.Context, id string) (*types.City, error)
}

// AlertHandler maps HTTP requests to alert CRUD and the one-shot
// fetch-evaluate-persist check.
type AlertHandler struct {
	store     AlertStore
	cities    CityFinder
	fetcher   WeatherFetcher
	recorder  SnapshotRecorder
	metrics   *observability.Metrics
	validator *core.Validator
	logger    *slog.Logger
}

// NewAlertHandler creates a new AlertHandler with the provided dependencies.
// metrics may be nil in tests.
func NewAlertHandler(
	store AlertStore,
	cities CityFinder,
	fetcher WeatherFetcher,
	recorder SnapshotRecorder,
	metrics *observability.Metrics,
	val *core.Validator,
	logger *slog.Logger,
) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{
		store:     store,
		cities:    cities,
		fetcher:   fetcher,
		recorder:  recorder,
		metrics:   metrics,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the alert endpoints onto the mux.
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(ar chi.Router) {
		ar.Use(core.DefaultTimeout())
		ar.Get("/", h.HandleList)
		ar.Post("/", h.HandleCreate)
		ar.Patch("/{id}/active", h.HandleSetActive)
		ar.Delete("/{id}", h.HandleDelete)
		ar.Get("/check/{cityID}", h.HandleCheck)
	})
}

// createAlertRequest is the body for POST /v1/alerts. Threshold is a flood
// score in [0, 100].
type createAlertRequest struct {
	CityID    string  `json:"city_id" validate:"required"`
	Label     string  `json:"label" validate:"omitempty,max=128"`
	Threshold float64 `json:"threshold"`
}

// setActiveRequest is the body for PATCH /v1/alerts/{id}/active.
type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// checkResponse is the payload for GET /v1/alerts/check/{cityID}.
type checkResponse struct {
	City      *types.City            `json:"city"`
	Snapshot  *types.WeatherSnapshot `json:"snapshot"`
	Triggered []*types.Alert         `json:"triggered_alerts"`
}

// HandleList handles GET /v1/alerts. An optional city_id query param narrows
// the listing to one city.
func (h *AlertHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		alerts []*types.Alert
		err    error
	)
	if cityID := r.URL.Query().Get("city_id"); cityID != "" {
		alerts, err = h.store.ListByCity(r.Context(), cityID)
	} else {
		alerts, err = h.store.List(r.Context())
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alerts})
}

// HandleCreate handles POST /v1/alerts. The referenced city must exist and
// the threshold must fall in [0, 100]. New alerts start active.
func (h *AlertHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Threshold < 0 || req.Threshold > 100 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationThresholdRange,
			"threshold must be between 0 and 100",
			nil,
		))
		return
	}

	if _, err := h.cities.GetByID(r.Context(), req.CityID); err != nil {
		core.Error(w, r, err)
		return
	}

	alert := &types.Alert{
		ID:        "alert_" + uuid.New().String(),
		CityID:    req.CityID,
		Label:     req.Label,
		Threshold: req.Threshold,
		IsActive:  true,
	}
	if err := h.store.Create(r.Context(), alert); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "alert created",
		"alert_id", alert.ID,
		"city_id", alert.CityID,
		"threshold", alert.Threshold,
	)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: alert})
}

// HandleSetActive handles PATCH /v1/alerts/{id}/active.
func (h *AlertHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	alert, err := h.store.SetActive(r.Context(), chi.URLParam(r, "id"), req.IsActive)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alert})
}

// HandleDelete handles DELETE /v1/alerts/{id}.
func (h *AlertHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleCheck handles GET /v1/alerts/check/{cityID}: fetches current
// conditions for the city, records a snapshot, and evaluates its alerts in
// one transaction. Returns the snapshot and any alerts that fired.
func (h *AlertHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	city, err := h.cities.GetByID(r.Context(), chi.URLParam(r, "cityID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	obs, err := h.fetcher.Fetch(r.Context(), city.Lat, city.Lon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snap, fired, err := h.recorder.Record(r.Context(), city.ID, obs)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SnapshotsTotal.Inc()
		h.metrics.AlertsFired.Add(float64(len(fired)))
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: checkResponse{
		City:      city,
		Snapshot:  snap,
		Triggered: fired,
	}})
}
