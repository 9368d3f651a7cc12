// Package handlers contains the HTTP handler implementations for the
// FloodLoop API. Each handler declares the service interfaces it consumes
// locally and is wired up by the application entry point.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"floodloop/internal/core"
	"floodloop/internal/observability"
	"floodloop/internal/risk"
	"floodloop/internal/types"
	"floodloop/internal/weather"
)

// WeatherFetcher retrieves a current observation for a coordinate.
// Matches weather.Fetcher but is defined locally to avoid tight coupling.
type WeatherFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (types.Observation, error)
}

// ForecastFetcher retrieves the scored 5-day outlook for a coordinate.
// Matches weather.Client.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, lat, lon float64) (types.Forecast, error)
}

// SnapshotRecorder persists an observation and evaluates the city's alerts in
// one transaction. Matches history.Recorder.
type SnapshotRecorder interface {
	Record(ctx context.Context, cityID string, obs types.Observation) (*types.WeatherSnapshot, []*types.Alert, error)
}

// SearchLogger appends a search record for the history feed.
type SearchLogger interface {
	Record(ctx context.Context, rec *types.SearchRecord) error
}

// FeedRunner drives the SSE live feed loop. Matches weather.LiveFeed.
type FeedRunner interface {
	ClampInterval(interval time.Duration) time.Duration
	Run(ctx context.Context, lat, lon float64, interval time.Duration, emit weather.EmitFunc) error
}

// WeatherHandler maps HTTP requests to the upstream weather client, the risk
// scorer, and the history recorder.
type WeatherHandler struct {
	fetcher   WeatherFetcher
	forecasts ForecastFetcher
	recorder  SnapshotRecorder
	searches  SearchLogger
	feed      FeedRunner
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewWeatherHandler creates a new WeatherHandler with the provided
// dependencies. metrics may be nil in tests.
func NewWeatherHandler(
	fetcher WeatherFetcher,
	forecasts ForecastFetcher,
	recorder SnapshotRecorder,
	searches SearchLogger,
	feed FeedRunner,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{
		fetcher:   fetcher,
		forecasts: forecasts,
		recorder:  recorder,
		searches:  searches,
		feed:      feed,
		metrics:   metrics,
		logger:    logger,
	}
}

// RegisterRoutes mounts the weather endpoints onto the mux. The stream route
// deliberately avoids the per-request timeout middleware; the other routes
// take the default deadline.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(core.DefaultTimeout())
		gr.Get("/weather", h.HandleGetWeather)
		gr.Get("/forecast", h.HandleForecast)
		gr.Get("/risk", h.HandleGetRisk)
	})
	r.Get("/weather/stream", h.HandleStream)
}

// weatherResponse is the payload for GET /v1/weather.
type weatherResponse struct {
	Observation types.Observation      `json:"observation"`
	FloodRisk   types.RiskScore        `json:"flood_risk"`
	Snapshot    *types.WeatherSnapshot `json:"snapshot,omitempty"`
	Triggered   []*types.Alert         `json:"triggered_alerts,omitempty"`
}

// HandleGetWeather handles GET /v1/weather.
//
// Query params: lat, lon (required), save_log, city_id. With save_log=true a
// search record is appended; if city_id is also set, the observation is
// persisted as a snapshot and the city's alerts are evaluated in the same
// transaction, returning any that fired.
func (h *WeatherHandler) HandleGetWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	obs, err := h.fetcher.Fetch(r.Context(), lat, lon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := weatherResponse{
		Observation: obs,
		FloodRisk:   risk.Score(obs),
	}

	q := r.URL.Query()
	saveLog := q.Get("save_log") == "true" || q.Get("save_log") == "1"

	if saveLog && h.searches != nil {
		query := q.Get("q")
		if query == "" {
			query = fmt.Sprintf("%.4f,%.4f", lat, lon)
		}
		rec := &types.SearchRecord{
			ID:    "search_" + uuid.New().String(),
			Query: query,
			Lat:   lat,
			Lon:   lon,
		}
		// Best effort: a failed history write must not fail the lookup.
		if err := h.searches.Record(r.Context(), rec); err != nil {
			h.logger.WarnContext(r.Context(), "search record write failed", "error", err)
		}
	}

	if cityID := q.Get("city_id"); saveLog && cityID != "" {
		snap, fired, err := h.recorder.Record(r.Context(), cityID, obs)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		resp.Snapshot = snap
		resp.Triggered = fired
		h.recordSnapshotMetrics(len(fired))
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// HandleForecast handles GET /v1/forecast: the upstream 5-day/3-hour outlook
// with every slot scored through the flood-risk formula.
func (h *WeatherHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	fc, err := h.forecasts.FetchForecast(r.Context(), lat, lon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: fc})
}

// HandleGetRisk handles GET /v1/risk: scores caller-supplied conditions
// without touching the upstream provider. All params are optional floats
// defaulting to zero.
func (h *WeatherHandler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var obs types.Observation
	fields := []struct {
		name string
		dst  *float64
	}{
		{"rain_1h", &obs.Rain1h},
		{"rain_3h", &obs.Rain3h},
		{"humidity", &obs.Humidity},
		{"wind_speed", &obs.WindSpeed},
		{"clouds", &obs.Clouds},
	}
	for _, f := range fields {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidPayload,
				f.name+" must be a valid number",
				nil,
			))
			return
		}
		*f.dst = v
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: risk.Score(obs)})
}

// streamEvent is the wire shape of a successful SSE message on
// /v1/weather/stream. Failed cycles send {"error": msg} instead.
type streamEvent struct {
	Temperature float64         `json:"temperature"`
	Humidity    float64         `json:"humidity"`
	WindSpeed   float64         `json:"wind_speed"`
	Rain1h      float64         `json:"rain_1h"`
	Rain3h      float64         `json:"rain_3h"`
	Clouds      float64         `json:"clouds"`
	Description string          `json:"description"`
	FloodRisk   types.RiskScore `json:"flood_risk"`
	Timestamp   string          `json:"timestamp"`
}

type streamError struct {
	Error string `json:"error"`
}

// HandleStream handles GET /v1/weather/stream: an SSE feed of scored
// observations for the requested coordinate. The interval query param is in
// seconds and is clamped into the configured window; the effective value is
// announced in an SSE comment. The stream ends when the client disconnects.
func (h *WeatherHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var requested time.Duration
	if raw := r.URL.Query().Get("interval"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidInterval,
				"interval must be an integer number of seconds",
				nil,
			))
			return
		}
		requested = time.Duration(secs) * time.Second
	}
	interval := h.feed.ClampInterval(requested)

	sse := core.NewSSEWriter(w)
	w.WriteHeader(http.StatusOK)
	if err := sse.SendComment(fmt.Sprintf("interval %ds", int(interval.Seconds()))); err != nil {
		return
	}
	// Reconnecting clients should wait one polling interval before retrying.
	if err := sse.SendRetry(int(interval.Milliseconds())); err != nil {
		return
	}

	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	// A failed send means the consumer is gone; cancel the feed.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	emit := func(ev weather.Event) {
		var payload any
		if ev.Err != nil {
			payload = streamError{Error: ev.Err.Error()}
		} else {
			payload = streamEvent{
				Temperature: ev.Observation.Temperature,
				Humidity:    ev.Observation.Humidity,
				WindSpeed:   ev.Observation.WindSpeed,
				Rain1h:      ev.Observation.Rain1h,
				Rain3h:      ev.Observation.Rain3h,
				Clouds:      ev.Observation.Clouds,
				Description: ev.Observation.Description,
				FloodRisk:   ev.Risk,
				Timestamp:   ev.Timestamp.UTC().Format(time.RFC3339),
			}
		}
		body, err := json.Marshal(payload)
		if err != nil {
			h.logger.ErrorContext(ctx, "stream event marshal failed", "error", err)
			return
		}
		if err := sse.SendData(string(body)); err != nil {
			cancel()
		}
	}

	if err := h.feed.Run(ctx, lat, lon, interval, emit); err != nil && ctx.Err() == nil {
		h.logger.WarnContext(r.Context(), "live feed terminated", "error", err)
	}
}

func (h *WeatherHandler) recordSnapshotMetrics(fired int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SnapshotsTotal.Inc()
	h.metrics.AlertsFired.Add(float64(fired))
}

// parseCoordinates extracts the required lat and lon query params and bounds
// them to valid geographic ranges.
func parseCoordinates(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()

	latStr := q.Get("lat")
	if latStr == "" {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lat query parameter is required",
			nil,
		)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"lat must be a number between -90 and 90",
			nil,
		)
	}

	lonStr := q.Get("lon")
	if lonStr == "" {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lon query parameter is required",
			nil,
		)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"lon must be a number between -180 and 180",
			nil,
		)
	}

	return lat, lon, nil
}
