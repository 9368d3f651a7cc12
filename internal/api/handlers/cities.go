package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"floodloop/internal/core"
	"floodloop/internal/types"
)

// CityStore defines the persistence contract for the city handler.
type CityStore interface {
	Create(ctx context.Context, city *types.City) error
	GetByID(ctx context.Context, id string) (*types.City, error)
	GetByName(ctx context.Context, name string) (*types.City, error)
	List(ctx context.Context) ([]*types.City, error)
	SetFavorite(ctx context.Context, id string, favorite bool) (*types.City, error)
	Delete(ctx context.Context, id string) error
}

// CityHandler maps HTTP requests to the city repository.
type CityHandler struct {
	store     CityStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewCityHandler creates a new CityHandler with the provided dependencies.
func NewCityHandler(store CityStore, val *core.Validator, logger *slog.Logger) *CityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CityHandler{
		store:     store,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the city endpoints onto the mux.
func (h *CityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cities", func(cr chi.Router) {
		cr.Use(core.DefaultTimeout())
		cr.Get("/", h.HandleList)
		cr.Post("/", h.HandleCreate)
		cr.Get("/{id}", h.HandleGet)
		cr.Patch("/{id}/favorite", h.HandleSetFavorite)
		cr.Delete("/{id}", h.HandleDelete)
	})
}

// createCityRequest is the body for POST /v1/cities.
type createCityRequest struct {
	Name    string  `json:"name" validate:"required,min=1,max=128"`
	Country string  `json:"country" validate:"omitempty,max=64"`
	Lat     float64 `json:"lat" validate:"min=-90,max=90"`
	Lon     float64 `json:"lon" validate:"min=-180,max=180"`
}

// setFavoriteRequest is the body for PATCH /v1/cities/{id}/favorite.
type setFavoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

// HandleList handles GET /v1/cities. Favorites sort first.
func (h *CityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cities, err := h.store.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: cities})
}

// HandleGet handles GET /v1/cities/{id}.
func (h *CityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	city, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: city})
}

// HandleCreate handles POST /v1/cities. Creating a city whose name already
// exists (case-insensitive) returns the existing record with 200 instead of
// inserting a duplicate.
func (h *CityHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCityRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	existing, err := h.store.GetByName(r.Context(), req.Name)
	if err == nil {
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: existing})
		return
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundCity {
		core.Error(w, r, err)
		return
	}

	city := &types.City{
		ID:      "city_" + uuid.New().String(),
		Name:    req.Name,
		Country: req.Country,
		Lat:     req.Lat,
		Lon:     req.Lon,
	}
	if err := h.store.Create(r.Context(), city); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "city created", "city_id", city.ID, "name", city.Name)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: city})
}

// HandleSetFavorite handles PATCH /v1/cities/{id}/favorite.
func (h *CityHandler) HandleSetFavorite(w http.ResponseWriter, r *http.Request) {
	var req setFavoriteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	city, err := h.store.SetFavorite(r.Context(), chi.URLParam(r, "id"), req.IsFavorite)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: city})
}

// HandleDelete handles DELETE /v1/cities/{id}. Deleting a city cascades to
// its alerts and snapshots.
func (h *CityHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "city deleted", "city_id", id)

	w.WriteHeader(http.StatusNoContent)
}
