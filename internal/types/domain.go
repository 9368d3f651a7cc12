package types

import "time"

// RiskLevel classifies a flood risk score into one of three bands.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// Observation is a single point-in-time weather reading for a coordinate.
// Rain fields are millimetres of accumulation; Humidity and Clouds are
// percentages; WindSpeed is metres per second.
type Observation struct {
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	WindSpeed   float64 `json:"wind_speed"`
	WindDeg     float64 `json:"wind_deg"`
	Clouds      float64 `json:"clouds"`
	Rain1h      float64 `json:"rain_1h"`
	Rain3h      float64 `json:"rain_3h"`
	Visibility  int     `json:"visibility"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	StationName string  `json:"station_name,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// RiskScore is the result of scoring an Observation: a value in [0, 100]
// rounded to one decimal, its band, and the UI color associated with the band.
type RiskScore struct {
	Score float64   `json:"score"`
	Level RiskLevel `json:"level"`
	Color string    `json:"color"`
}

// City is a saved monitoring location.
type City struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Country    string    `json:"country,omitempty" db:"country"`
	Lat        float64   `json:"lat" db:"lat"`
	Lon        float64   `json:"lon" db:"lon"`
	IsFavorite bool      `json:"is_favorite" db:"is_favorite"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Alert is a per-city flood-score threshold. Every evaluation where the
// current score meets or exceeds Threshold fires the alert again; there is
// no debounce window.
type Alert struct {
	ID            string     `json:"id" db:"id"`
	CityID        string     `json:"city_id" db:"city_id"`
	Label         string     `json:"label" db:"label"`
	Threshold     float64    `json:"threshold" db:"threshold"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	TriggerCount  int        `json:"trigger_count" db:"trigger_count"`
	LastTriggered *time.Time `json:"last_triggered,omitempty" db:"last_triggered"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// WeatherSnapshot is a persisted observation plus the score computed from it.
// Snapshots are written together with alert evaluation in one transaction.
type WeatherSnapshot struct {
	ID          string      `json:"id" db:"id"`
	CityID      string      `json:"city_id" db:"city_id"`
	Observation Observation `json:"observation" db:"-"`
	FloodScore  float64     `json:"flood_score" db:"flood_score"`
	FloodLevel  RiskLevel   `json:"flood_level" db:"flood_level"`
	RecordedAt  time.Time   `json:"recorded_at" db:"recorded_at"`
}

// SearchRecord captures one lookup a client performed, for the history feed.
type SearchRecord struct {
	ID         string    `json:"id" db:"id"`
	Query      string    `json:"query" db:"query"`
	Lat        float64   `json:"lat" db:"lat"`
	Lon        float64   `json:"lon" db:"lon"`
	SearchedAt time.Time `json:"searched_at" db:"searched_at"`
}

// APIKey is a provisioned client credential. Only the bcrypt hash is stored;
// the plaintext key is returned exactly once at creation time.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"`
	KeyHash    string     `json:"-" db:"key_hash"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// ForecastSlot is one 3-hour slice of the upstream 5-day forecast. Rain1h
// does not exist at forecast granularity, so slot scoring treats it as zero.
type ForecastSlot struct {
	At          time.Time `json:"at"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Rain3h      float64   `json:"rain_3h"`
	Clouds      float64   `json:"clouds"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Risk        RiskScore `json:"flood_risk"`
}

// Forecast is the scored 5-day outlook for a coordinate. City metadata comes
// from the upstream response, not local storage.
type Forecast struct {
	City    string         `json:"city"`
	Country string         `json:"country"`
	Lat     float64        `json:"lat"`
	Lon     float64        `json:"lon"`
	Slots   []ForecastSlot `json:"slots"`
}

// FloodEvent is a static historical flood record served for context alongside
// live risk scores. Deaths and RainfallMM are nil where no reliable figure
// exists.
type FloodEvent struct {
	Year        int       `json:"year"`
	Event       string    `json:"event"`
	Deaths      *int      `json:"deaths"`
	Severity    RiskLevel `json:"severity"`
	RainfallMM  *float64  `json:"rainfall_mm"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
}

// StatsSummary aggregates service activity for the admin dashboard.
type StatsSummary struct {
	TotalCities    int        `json:"total_cities"`
	TotalSnapshots int        `json:"total_snapshots"`
	TotalSearches  int        `json:"total_searches"`
	TotalAlerts    int        `json:"total_alerts"`
	ActiveAlerts   int        `json:"active_alerts"`
	TotalAPIKeys   int        `json:"total_api_keys"`
	LastSnapshotAt *time.Time `json:"last_snapshot_at,omitempty"`
}
