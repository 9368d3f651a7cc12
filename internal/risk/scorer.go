// Package risk computes flood risk scores from weather observations.
//
// The score is a deterministic weighted sum of five saturating factors. Each
// factor contributes a capped share of the 100-point scale, so a single
// extreme input can never dominate beyond its weight:
//
//	rain (last hour)   up to 40 pts, saturates at 20 mm
//	rain (last 3h)     up to 25 pts, saturates at 40 mm
//	humidity excess    up to 20 pts, over a 60% baseline, saturates at 100%
//	wind speed         up to 10 pts, saturates at 25 m/s
//	cloud cover        up to  5 pts, saturates at 100%
//
// Scoring is pure: no clock, no I/O, no state. Equal observations always
// produce equal scores.
package risk

import (
	"math"

	"floodloop/internal/types"
)

// Factor weights (points contributed at full saturation).
const (
	weightRain1h   = 40.0
	weightRain3h   = 25.0
	weightHumidity = 20.0
	weightWind     = 10.0
	weightClouds   = 5.0
)

// Saturation points for each factor.
const (
	satRain1hMM      = 20.0 // mm in the last hour
	satRain3hMM      = 40.0 // mm in the last 3 hours
	humidityBaseline = 60.0 // % below which humidity contributes nothing
	humidityRange    = 40.0 // % span from baseline to full contribution
	satWindMS        = 25.0 // m/s
	satCloudsPct     = 100.0
)

// Level boundaries (inclusive lower bounds).
const (
	highThreshold   = 65.0
	mediumThreshold = 35.0
)

// UI colors associated with each risk band.
const (
	ColorHigh   = "#ef4444"
	ColorMedium = "#f59e0b"
	ColorLow    = "#22c55e"
)

// Score computes the flood risk for a single observation. The returned score
// is clamped to [0, 100] and rounded to one decimal place; Level and Color are
// derived from the rounded value so boundary scores classify consistently.
func Score(obs types.Observation) types.RiskScore {
	score := weightRain1h*saturate(obs.Rain1h/satRain1hMM) +
		weightRain3h*saturate(obs.Rain3h/satRain3hMM) +
		weightHumidity*saturate(math.Max(obs.Humidity-humidityBaseline, 0)/humidityRange) +
		weightWind*saturate(obs.WindSpeed/satWindMS) +
		weightClouds*saturate(obs.Clouds/satCloudsPct)

	score = math.Round(math.Min(score, 100)*10) / 10

	level := LevelFor(score)
	return types.RiskScore{
		Score: score,
		Level: level,
		Color: ColorFor(level),
	}
}

// LevelFor classifies a score into its risk band. Boundaries are inclusive:
// 65.0 is HIGH and 35.0 is MEDIUM.
func LevelFor(score float64) types.RiskLevel {
	switch {
	case score >= highThreshold:
		return types.RiskLevelHigh
	case score >= mediumThreshold:
		return types.RiskLevelMedium
	default:
		return types.RiskLevelLow
	}
}

// ColorFor returns the UI color for a risk band.
func ColorFor(level types.RiskLevel) string {
	switch level {
	case types.RiskLevelHigh:
		return ColorHigh
	case types.RiskLevelMedium:
		return ColorMedium
	default:
		return ColorLow
	}
}

// saturate clamps a ratio to [0, 1]. Negative inputs (possible with malformed
// upstream data) contribute nothing rather than subtracting from the score.
func saturate(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}
	if ratio >= 1 {
		return 1
	}
	return ratio
}
