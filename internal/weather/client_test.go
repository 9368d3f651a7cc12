package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodloop/internal/config"
	"floodloop/internal/types"
)

const sampleConditions = `{
	"main": {"temp": 18.4, "feels_like": 17.9, "humidity": 87, "pressure": 1008},
	"wind": {"speed": 6.2, "deg": 210},
	"clouds": {"all": 90},
	"rain": {"1h": 4.5, "3h": 11.2},
	"weather": [{"description": "heavy intensity rain", "icon": "10d"}],
	"visibility": 6000,
	"name": "Rotterdam",
	"dt": 1748779200
}`

func testWeatherConfig(baseURL string) config.WeatherConfig {
	return config.WeatherConfig{
		APIKey:     types.SecretString("test-key"),
		BaseURL:    baseURL,
		Units:      "metric",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}
}

func noSleep() BaseClientOption {
	return WithSleepFunc(func(time.Duration) {})
}

func TestFetchParsesObservation(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleConditions))
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	obs, err := client.Fetch(context.Background(), 51.92, 4.48)
	require.NoError(t, err)

	assert.Equal(t, 18.4, obs.Temperature)
	assert.Equal(t, 87.0, obs.Humidity)
	assert.Equal(t, 6.2, obs.WindSpeed)
	assert.Equal(t, 4.5, obs.Rain1h)
	assert.Equal(t, 11.2, obs.Rain3h)
	assert.Equal(t, 90.0, obs.Clouds)
	assert.Equal(t, "heavy intensity rain", obs.Description)
	assert.Equal(t, "Rotterdam", obs.StationName)
	assert.Equal(t, time.Unix(1748779200, 0).UTC(), obs.ObservedAt)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "51.92", q.Get("lat"))
	assert.Equal(t, "4.48", q.Get("lon"))
	assert.Equal(t, "metric", q.Get("units"))
	assert.Equal(t, "test-key", q.Get("appid"))
}

func TestFetchMissingRainBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"main": {"temp": 25, "humidity": 40}, "weather": [], "dt": 1748779200}`))
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	obs, err := client.Fetch(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, obs.Rain1h)
	assert.Equal(t, 0.0, obs.Rain3h)
	assert.Empty(t, obs.Description)
}

func TestFetchRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleConditions))
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	obs, err := client.Fetch(context.Background(), 51.92, 4.48)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "Rotterdam", obs.StationName)
}

func TestFetchExhaustedRetriesMapsToUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	_, err := client.Fetch(context.Background(), 51.92, 4.48)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
}

func TestFetchRateLimitMapsTo429Code(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	_, err := client.Fetch(context.Background(), 51.92, 4.48)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestFetchClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod": 401, "message": "Invalid API key"}`))
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	_, err := client.Fetch(context.Background(), 51.92, 4.48)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
	assert.Equal(t, http.StatusUnauthorized, appErr.Details["status"])
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"main": `))
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	_, err := client.Fetch(context.Background(), 51.92, 4.48)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
}

const sampleForecast = `{
	"city": {"name": "Rotterdam", "country": "NL", "coord": {"lat": 51.92, "lon": 4.48}},
	"list": [
		{
			"dt": 1748779200,
			"main": {"temp": 18.4, "feels_like": 17.9, "humidity": 100},
			"wind": {"speed": 0},
			"clouds": {"all": 100},
			"rain": {"3h": 40},
			"weather": [{"description": "heavy intensity rain", "icon": "10d"}]
		},
		{
			"dt": 1748790000,
			"main": {"temp": 21.0, "feels_like": 20.5, "humidity": 50},
			"wind": {"speed": 3.1},
			"clouds": {"all": 20},
			"weather": [{"description": "few clouds", "icon": "02d"}]
		}
	]
}`

func TestFetchForecastScoresEverySlot(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	fc, err := client.FetchForecast(context.Background(), 51.92, 4.48)
	require.NoError(t, err)

	assert.Equal(t, "/forecast", gotPath.Load())
	assert.Equal(t, "Rotterdam", fc.City)
	assert.Equal(t, "NL", fc.Country)
	assert.Equal(t, 51.92, fc.Lat)
	require.Len(t, fc.Slots, 2)

	// 3h rain is the only precipitation input at forecast granularity:
	// 25*(40/40) + 20*((100-60)/40) + 10*0 + 5*(100/100) = 50.0.
	first := fc.Slots[0]
	assert.Equal(t, time.Unix(1748779200, 0).UTC(), first.At)
	assert.Equal(t, 40.0, first.Rain3h)
	assert.Equal(t, 50.0, first.Risk.Score)
	assert.Equal(t, types.RiskLevelMedium, first.Risk.Level)
	assert.Equal(t, "heavy intensity rain", first.Description)

	// Dry slot: missing rain block defaults to zero accumulation.
	second := fc.Slots[1]
	assert.Equal(t, 0.0, second.Rain3h)
	assert.Equal(t, types.RiskLevelLow, second.Risk.Level)
}

func TestFetchForecastUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(testWeatherConfig(srv.URL), nil, noSleep())

	_, err := client.FetchForecast(context.Background(), 51.92, 4.48)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
	assert.Equal(t, http.StatusUnauthorized, appErr.Details["status"])
}
