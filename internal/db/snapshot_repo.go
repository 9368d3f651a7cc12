package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"floodloop/internal/types"
)

// SnapshotRepository provides read access to the weather_snapshots table.
// Writes go through the RecorderStore so they share a transaction with alert
// evaluation.
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new SnapshotRepository backed by the given
// database connection (pool or transaction).
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `id, city_id,
	temperature, feels_like, humidity, pressure,
	wind_speed, wind_deg, clouds, rain_1h, rain_3h,
	visibility, description, icon,
	flood_score, flood_level, recorded_at`

func scanSnapshot(row pgx.Row) (*types.WeatherSnapshot, error) {
	var s types.WeatherSnapshot
	var description, icon *string

	err := row.Scan(
		&s.ID,
		&s.CityID,
		&s.Observation.Temperature,
		&s.Observation.FeelsLike,
		&s.Observation.Humidity,
		&s.Observation.Pressure,
		&s.Observation.WindSpeed,
		&s.Observation.WindDeg,
		&s.Observation.Clouds,
		&s.Observation.Rain1h,
		&s.Observation.Rain3h,
		&s.Observation.Visibility,
		&description,
		&icon,
		&s.FloodScore,
		&s.FloodLevel,
		&s.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		s.Observation.Description = *description
	}
	if icon != nil {
		s.Observation.Icon = *icon
	}
	s.Observation.ObservedAt = s.RecordedAt
	return &s, nil
}

func collectSnapshots(rows pgx.Rows) ([]*types.WeatherSnapshot, error) {
	defer rows.Close()

	var snapshots []*types.WeatherSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan snapshot row", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating snapshot rows", err)
	}
	return snapshots, nil
}

// ListByCity returns the most recent snapshots for a city, newest first.
func (r *SnapshotRepository) ListByCity(ctx context.Context, cityID string, limit int) ([]*types.WeatherSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+snapshotColumns+` FROM weather_snapshots
		 WHERE city_id = $1 ORDER BY recorded_at DESC LIMIT $2`,
		cityID, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list snapshots for city", err)
	}
	return collectSnapshots(rows)
}

// ListRecent returns the most recent snapshots across all cities, newest first.
func (r *SnapshotRepository) ListRecent(ctx context.Context, limit int) ([]*types.WeatherSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+snapshotColumns+` FROM weather_snapshots
		 ORDER BY recorded_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list recent snapshots", err)
	}
	return collectSnapshots(rows)
}
