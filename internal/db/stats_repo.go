package db

import (
	"context"

	"floodloop/internal/types"
)

// StatsRepository aggregates counts across tables for the admin dashboard.
type StatsRepository struct {
	db DBTX
}

// NewStatsRepository creates a new StatsRepository backed by the given
// database connection (pool or transaction).
func NewStatsRepository(db DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// Summary returns service-wide activity counts in a single round trip.
func (r *StatsRepository) Summary(ctx context.Context) (*types.StatsSummary, error) {
	row := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cities),
			(SELECT COUNT(*) FROM weather_snapshots),
			(SELECT COUNT(*) FROM search_history),
			(SELECT COUNT(*) FROM alerts),
			(SELECT COUNT(*) FROM alerts WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM api_keys),
			(SELECT MAX(recorded_at) FROM weather_snapshots)`)

	var s types.StatsSummary
	err := row.Scan(
		&s.TotalCities,
		&s.TotalSnapshots,
		&s.TotalSearches,
		&s.TotalAlerts,
		&s.ActiveAlerts,
		&s.TotalAPIKeys,
		&s.LastSnapshotAt,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate stats", err)
	}
	return &s, nil
}
