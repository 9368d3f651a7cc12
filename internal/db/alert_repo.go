package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"floodloop/internal/types"
)

// AlertRepository provides data access for the alerts table.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates a new AlertRepository backed by the given
// database connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, city_id, label, threshold, is_active, trigger_count, last_triggered, created_at`

func scanAlert(row pgx.Row) (*types.Alert, error) {
	var a types.Alert
	var label *string

	err := row.Scan(&a.ID, &a.CityID, &label, &a.Threshold, &a.IsActive,
		&a.TriggerCount, &a.LastTriggered, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if label != nil {
		a.Label = *label
	}
	return &a, nil
}

func collectAlerts(rows pgx.Rows) ([]*types.Alert, error) {
	defer rows.Close()

	var alerts []*types.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert row", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating alert rows", err)
	}
	return alerts, nil
}

// Create inserts a new alert. The caller must set the ID (prefixed UUID,
// e.g. "alert_...") before calling.
func (r *AlertRepository) Create(ctx context.Context, alert *types.Alert) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO alerts (id, city_id, label, threshold, is_active, trigger_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		alert.ID,
		alert.CityID,
		nilIfEmpty(alert.Label),
		alert.Threshold,
		alert.IsActive,
		alert.TriggerCount,
		nilIfZeroTime(alert.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create alert", err)
	}
	return nil
}

// GetByID retrieves an alert by ID. Returns ErrCodeNotFoundAlert if absent.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve alert", err)
	}
	return alert, nil
}

// List returns all alerts, newest first.
func (r *AlertRepository) List(ctx context.Context) ([]*types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts ORDER BY created_at DESC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts", err)
	}
	return collectAlerts(rows)
}

// ListByCity returns all alerts configured for a city, newest first.
func (r *AlertRepository) ListByCity(ctx context.Context, cityID string) ([]*types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE city_id = $1 ORDER BY created_at DESC`, cityID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts for city", err)
	}
	return collectAlerts(rows)
}

// SetActive toggles an alert's active flag and returns the updated row.
// Returns ErrCodeNotFoundAlert if the alert does not exist.
func (r *AlertRepository) SetActive(ctx context.Context, id string, active bool) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE alerts SET is_active = $2 WHERE id = $1
		 RETURNING `+alertColumns, id, active)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update alert", err)
	}
	return alert, nil
}

// Delete removes an alert. Returns ErrCodeNotFoundAlert when no row matched.
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete alert", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	return nil
}
