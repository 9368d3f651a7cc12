// Package history persists weather snapshots and evaluates alerts in a single
// database transaction.
//
// Atomicity is the point: a snapshot must never be recorded without its alert
// evaluation and vice versa. Each city's active alerts are locked FOR UPDATE
// inside the transaction so two concurrent recordings of the same city cannot
// interleave trigger-count updates.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"floodloop/internal/alerts"
	"floodloop/internal/risk"
	"floodloop/internal/types"
)

// RecorderDB defines the database operations needed by the Recorder.
// Using an interface allows clean testing without database dependencies.
//
// The transactional flow is:
//  1. BeginTx starts a transaction.
//  2. LockActiveAlerts acquires FOR UPDATE locks on the city's active alerts.
//  3. InsertSnapshot persists the observation and its score.
//  4. UpdateAlertTrigger writes back each fired alert's counters.
//  5. Commit / Rollback finalizes the transaction.
type RecorderDB interface {
	// BeginTx starts a new database transaction. The returned RecorderTx
	// must be committed or rolled back by the caller.
	BeginTx(ctx context.Context) (RecorderTx, error)
}

// RecorderTx defines the transactional operations for recording a single
// snapshot. All methods operate within the transaction started by
// RecorderDB.BeginTx.
type RecorderTx interface {
	// LockActiveAlerts acquires FOR UPDATE locks on the city's active alerts
	// and returns them in a stable order.
	//
	// SQL: SELECT ... FROM alerts
	//      WHERE city_id = $1 AND is_active = TRUE
	//      ORDER BY created_at FOR UPDATE
	LockActiveAlerts(ctx context.Context, cityID string) ([]*types.Alert, error)

	// InsertSnapshot persists a weather snapshot row.
	InsertSnapshot(ctx context.Context, snap *types.WeatherSnapshot) error

	// UpdateAlertTrigger writes back an alert's trigger count and
	// last-triggered timestamp after it fired.
	UpdateAlertTrigger(ctx context.Context, alert *types.Alert) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Recorder records observations for saved cities and fires their alerts.
type Recorder struct {
	db        RecorderDB
	evaluator *alerts.Evaluator
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewRecorder creates a Recorder. The clock is injectable for tests; pass
// clockwork.NewRealClock() in production.
func NewRecorder(db RecorderDB, evaluator *alerts.Evaluator, clock clockwork.Clock, logger *slog.Logger) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		db:        db,
		evaluator: evaluator,
		clock:     clock,
		logger:    logger,
	}
}

// Record scores the observation, persists it as a snapshot for the city, and
// evaluates the city's active alerts, all in one transaction. It returns the
// alerts that fired with their updated counters.
//
// On any failure the transaction rolls back: no snapshot row, no trigger
// updates. The returned error wraps the failing step.
func (r *Recorder) Record(ctx context.Context, cityID string, obs types.Observation) (*types.WeatherSnapshot, []*types.Alert, error) {
	score := risk.Score(obs)
	now := r.clock.Now().UTC()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning snapshot transaction for city %s: %w", cityID, err)
	}
	// Ensure rollback on any error path. Rollback after Commit is a no-op.
	defer tx.Rollback(ctx) //nolint:errcheck

	active, err := tx.LockActiveAlerts(ctx, cityID)
	if err != nil {
		return nil, nil, fmt.Errorf("locking alerts for city %s: %w", cityID, err)
	}

	snap := &types.WeatherSnapshot{
		ID:          "snap_" + uuid.New().String(),
		CityID:      cityID,
		Observation: obs,
		FloodScore:  score.Score,
		FloodLevel:  score.Level,
		RecordedAt:  now,
	}
	if err := tx.InsertSnapshot(ctx, snap); err != nil {
		return nil, nil, fmt.Errorf("inserting snapshot for city %s: %w", cityID, err)
	}

	fired := r.evaluator.Evaluate(active, score.Score)
	for _, alert := range fired {
		if err := tx.UpdateAlertTrigger(ctx, alert); err != nil {
			return nil, nil, fmt.Errorf("updating trigger for alert %s: %w", alert.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing snapshot for city %s: %w", cityID, err)
	}

	r.logger.InfoContext(ctx, "snapshot recorded",
		"city_id", cityID,
		"snapshot_id", snap.ID,
		"score", score.Score,
		"level", string(score.Level),
		"alerts_fired", len(fired),
	)

	return snap, fired, nil
}
