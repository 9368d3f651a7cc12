package db

import (
	"context"

	"floodloop/internal/types"
)

// SearchRepository provides data access for the search_history table.
type SearchRepository struct {
	db DBTX
}

// NewSearchRepository creates a new SearchRepository backed by the given
// database connection (pool or transaction).
func NewSearchRepository(db DBTX) *SearchRepository {
	return &SearchRepository{db: db}
}

// Record inserts a search history row. The caller must set the ID (prefixed
// UUID, e.g. "search_...") before calling.
func (r *SearchRepository) Record(ctx context.Context, rec *types.SearchRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO search_history (id, query, lat, lon, searched_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`,
		rec.ID, rec.Query, rec.Lat, rec.Lon, nilIfZeroTime(rec.SearchedAt))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record search", err)
	}
	return nil
}

// List returns the most recent searches, newest first.
func (r *SearchRepository) List(ctx context.Context, limit int) ([]*types.SearchRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, query, lat, lon, searched_at FROM search_history
		 ORDER BY searched_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list search history", err)
	}
	defer rows.Close()

	var records []*types.SearchRecord
	for rows.Next() {
		var rec types.SearchRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Lat, &rec.Lon, &rec.SearchedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan search row", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating search rows", err)
	}
	return records, nil
}

// Clear removes all search history rows and reports how many were deleted.
func (r *SearchRepository) Clear(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM search_history`)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to clear search history", err)
	}
	return tag.RowsAffected(), nil
}
