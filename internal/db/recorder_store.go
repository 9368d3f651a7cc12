package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"floodloop/internal/history"
	"floodloop/internal/types"
)

// RecorderStore implements history.RecorderDB on top of a pgx pool.
// It is the only write path for weather_snapshots, keeping snapshot inserts
// and alert trigger updates inside one transaction.
type RecorderStore struct {
	pool *pgxpool.Pool
}

// NewRecorderStore creates a RecorderStore backed by the given pool.
func NewRecorderStore(pool *pgxpool.Pool) *RecorderStore {
	return &RecorderStore{pool: pool}
}

// BeginTx starts a transaction and wraps it as a history.RecorderTx.
func (s *RecorderStore) BeginTx(ctx context.Context) (history.RecorderTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	return &recorderTx{tx: tx}, nil
}

type recorderTx struct {
	tx pgx.Tx
}

// LockActiveAlerts locks the city's active alerts FOR UPDATE. Ordering by
// created_at keeps lock acquisition deterministic across concurrent
// recordings, avoiding deadlocks.
func (t *recorderTx) LockActiveAlerts(ctx context.Context, cityID string) ([]*types.Alert, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE city_id = $1 AND is_active = TRUE
		 ORDER BY created_at
		 FOR UPDATE`, cityID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to lock alerts", err)
	}
	return collectAlerts(rows)
}

// InsertSnapshot persists the snapshot row.
func (t *recorderTx) InsertSnapshot(ctx context.Context, snap *types.WeatherSnapshot) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO weather_snapshots (
			id, city_id,
			temperature, feels_like, humidity, pressure,
			wind_speed, wind_deg, clouds, rain_1h, rain_3h,
			visibility, description, icon,
			flood_score, flood_level, recorded_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17
		)`,
		snap.ID,
		snap.CityID,
		snap.Observation.Temperature,
		snap.Observation.FeelsLike,
		snap.Observation.Humidity,
		snap.Observation.Pressure,
		snap.Observation.WindSpeed,
		snap.Observation.WindDeg,
		snap.Observation.Clouds,
		snap.Observation.Rain1h,
		snap.Observation.Rain3h,
		snap.Observation.Visibility,
		nilIfEmpty(snap.Observation.Description),
		nilIfEmpty(snap.Observation.Icon),
		snap.FloodScore,
		string(snap.FloodLevel),
		snap.RecordedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert snapshot", err)
	}
	return nil
}

// UpdateAlertTrigger writes back the fired alert's counters.
func (t *recorderTx) UpdateAlertTrigger(ctx context.Context, alert *types.Alert) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE alerts SET trigger_count = $2, last_triggered = $3 WHERE id = $1`,
		alert.ID, alert.TriggerCount, alert.LastTriggered)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update alert trigger", err)
	}
	return nil
}

func (t *recorderTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *recorderTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
