package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"floodloop/internal/config"
	"floodloop/internal/risk"
	"floodloop/internal/types"
)

// userAgent identifies FloodLoop to the upstream provider.
const userAgent = "FloodLoop/1.0"

// maxResponseBytes caps how much of an upstream response body we will read.
const maxResponseBytes = 1 << 20 // 1 MB

// Fetcher retrieves a current weather observation for a coordinate.
// Implemented by Client; faked in tests and by the live feed's test doubles.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (types.Observation, error)
}

// Client fetches current conditions from the OpenWeather API.
type Client struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	units   string
	logger  *slog.Logger
}

// NewClient constructs a Client from the weather configuration.
func NewClient(cfg config.WeatherConfig, logger *slog.Logger, opts ...BaseClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	policy := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}

	return &Client{
		base:    NewBaseClient(httpClient, "openweather", policy, userAgent, opts...),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		units:   cfg.Units,
		logger:  logger,
	}
}

// currentConditions mirrors the subset of the OpenWeather current-weather
// response that FloodLoop consumes. Rain accumulations are absent entirely
// when there is no precipitation, so they decode through a nested struct
// with optional fields.
type currentConditions struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneH   float64 `json:"1h"`
		ThreeH float64 `json:"3h"`
	} `json:"rain"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Visibility int    `json:"visibility"`
	Name       string `json:"name"`
	Dt         int64  `json:"dt"`
}

// Fetch retrieves the current observation for the given coordinate.
// Transport-level failures, rate limits, and 5xx responses surface as
// upstream AppErrors via the BaseClient; unexpected payloads map to
// upstream_weather_unavailable.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (types.Observation, error) {
	endpoint := fmt.Sprintf("%s/weather", c.baseURL)

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("units", c.units)
	q.Set("appid", c.apiKey.Unmask())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return types.Observation{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build upstream weather request",
			err,
		)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return types.Observation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 4xx from the provider: bad key, malformed coords. The body is
		// drained but not logged; it may echo the API key.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		c.logger.WarnContext(ctx, "upstream weather returned non-200",
			"status", resp.StatusCode,
			"lat", lat,
			"lon", lon,
		)
		return types.Observation{}, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamWeather,
			"upstream weather provider rejected the request",
			nil,
			map[string]any{"status": resp.StatusCode},
		)
	}

	var raw currentConditions
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&raw); err != nil {
		return types.Observation{}, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to decode upstream weather response",
			err,
		)
	}

	obs := types.Observation{
		Temperature: raw.Main.Temp,
		FeelsLike:   raw.Main.FeelsLike,
		Humidity:    raw.Main.Humidity,
		Pressure:    raw.Main.Pressure,
		WindSpeed:   raw.Wind.Speed,
		WindDeg:     raw.Wind.Deg,
		Clouds:      raw.Clouds.All,
		Rain1h:      raw.Rain.OneH,
		Rain3h:      raw.Rain.ThreeH,
		Visibility:  raw.Visibility,
		StationName: raw.Name,
		ObservedAt:  time.Unix(raw.Dt, 0).UTC(),
	}
	if len(raw.Weather) > 0 {
		obs.Description = raw.Weather[0].Description
		obs.Icon = raw.Weather[0].Icon
	}
	if raw.Dt == 0 {
		obs.ObservedAt = time.Now().UTC()
	}

	return obs, nil
}

// forecastPayload mirrors the OpenWeather 5-day/3-hour forecast response.
// Forecast slots carry only a 3-hour rain accumulation; there is no 1-hour
// figure at this granularity.
type forecastPayload struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		Coord   struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Clouds struct {
			All float64 `json:"all"`
		} `json:"clouds"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	} `json:"list"`
}

// FetchForecast retrieves the 5-day/3-hour forecast for the given coordinate
// and scores every slot through the flood-risk formula. Slot scoring uses a
// zero 1-hour rain figure since the forecast only reports 3-hour accumulation.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64) (types.Forecast, error) {
	endpoint := fmt.Sprintf("%s/forecast", c.baseURL)

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("units", c.units)
	q.Set("appid", c.apiKey.Unmask())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return types.Forecast{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build upstream forecast request",
			err,
		)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return types.Forecast{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		c.logger.WarnContext(ctx, "upstream forecast returned non-200",
			"status", resp.StatusCode,
			"lat", lat,
			"lon", lon,
		)
		return types.Forecast{}, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamWeather,
			"upstream forecast provider rejected the request",
			nil,
			map[string]any{"status": resp.StatusCode},
		)
	}

	var raw forecastPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&raw); err != nil {
		return types.Forecast{}, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to decode upstream forecast response",
			err,
		)
	}

	fc := types.Forecast{
		City:    raw.City.Name,
		Country: raw.City.Country,
		Lat:     raw.City.Coord.Lat,
		Lon:     raw.City.Coord.Lon,
		Slots:   make([]types.ForecastSlot, 0, len(raw.List)),
	}
	if fc.Lat == 0 && fc.Lon == 0 {
		fc.Lat = lat
		fc.Lon = lon
	}

	for _, slot := range raw.List {
		s := types.ForecastSlot{
			At:          time.Unix(slot.Dt, 0).UTC(),
			Temperature: slot.Main.Temp,
			FeelsLike:   slot.Main.FeelsLike,
			Humidity:    slot.Main.Humidity,
			WindSpeed:   slot.Wind.Speed,
			Rain3h:      slot.Rain.ThreeH,
			Clouds:      slot.Clouds.All,
			Risk: risk.Score(types.Observation{
				Rain3h:    slot.Rain.ThreeH,
				Humidity:  slot.Main.Humidity,
				WindSpeed: slot.Wind.Speed,
				Clouds:    slot.Clouds.All,
			}),
		}
		if len(slot.Weather) > 0 {
			s.Description = slot.Weather[0].Description
			s.Icon = slot.Weather[0].Icon
		}
		fc.Slots = append(fc.Slots, s)
	}

	return fc, nil
}
