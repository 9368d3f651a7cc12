// Package alerts implements threshold evaluation for flood risk scores.
package alerts

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"floodloop/internal/types"
)

// Evaluator fires alerts whose threshold is met by the current score.
//
// Evaluation is intentionally debounce-free: every call where the score meets
// or exceeds an active alert's threshold fires that alert again, incrementing
// its trigger count and refreshing its last-triggered timestamp. Consumers
// that need rate limiting must apply it on top.
type Evaluator struct {
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. The clock is injectable for tests; pass
// clockwork.NewRealClock() in production.
func NewEvaluator(clock clockwork.Clock, logger *slog.Logger) *Evaluator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{clock: clock, logger: logger}
}

// Evaluate checks every alert against the current score and mutates the ones
// that fire: TriggerCount is incremented and LastTriggered is set to the
// evaluation time. It returns the fired alerts in the order they were given.
//
// Inactive alerts never fire. An alert fires when score >= threshold; the
// comparison is inclusive, so a score exactly at the threshold fires.
func (e *Evaluator) Evaluate(alerts []*types.Alert, score float64) []*types.Alert {
	now := e.clock.Now().UTC()

	var fired []*types.Alert
	for _, alert := range alerts {
		if alert == nil || !alert.IsActive {
			continue
		}
		if score < alert.Threshold {
			continue
		}

		alert.TriggerCount++
		triggeredAt := now
		alert.LastTriggered = &triggeredAt
		fired = append(fired, alert)

		e.logger.Info("alert fired",
			"alert_id", alert.ID,
			"city_id", alert.CityID,
			"threshold", alert.Threshold,
			"score", score,
			"trigger_count", alert.TriggerCount,
		)
	}

	return fired
}
