package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"floodloop/internal/types"
)

// CityRepository provides data access for the cities table.
type CityRepository struct {
	db DBTX
}

// NewCityRepository creates a new CityRepository backed by the given database
// connection (pool or transaction).
func NewCityRepository(db DBTX) *CityRepository {
	return &CityRepository{db: db}
}

// cityColumns is the standard set of columns selected for city queries.
const cityColumns = `id, name, country, lat, lon, is_favorite, created_at`

func scanCity(row pgx.Row) (*types.City, error) {
	var c types.City
	var country *string

	err := row.Scan(&c.ID, &c.Name, &country, &c.Lat, &c.Lon, &c.IsFavorite, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if country != nil {
		c.Country = *country
	}
	return &c, nil
}

// Create inserts a new city. The caller must set the ID (prefixed UUID,
// e.g. "city_...") before calling.
func (r *CityRepository) Create(ctx context.Context, city *types.City) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cities (id, name, country, lat, lon, is_favorite, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		city.ID,
		city.Name,
		nilIfEmpty(city.Country),
		city.Lat,
		city.Lon,
		city.IsFavorite,
		nilIfZeroTime(city.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create city", err)
	}
	return nil
}

// GetByID retrieves a city by ID. Returns ErrCodeNotFoundCity if absent.
func (r *CityRepository) GetByID(ctx context.Context, id string) (*types.City, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+cityColumns+` FROM cities WHERE id = $1`, id)

	city, err := scanCity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCity, "city not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve city", err)
	}
	return city, nil
}

// GetByName retrieves a city by its case-insensitive name. Returns
// ErrCodeNotFoundCity if absent. Used to dedupe saves of the same city.
func (r *CityRepository) GetByName(ctx context.Context, name string) (*types.City, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+cityColumns+` FROM cities WHERE LOWER(name) = LOWER($1)`, name)

	city, err := scanCity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCity, "city not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve city", err)
	}
	return city, nil
}

// List returns all saved cities, favorites first, then most recently added.
func (r *CityRepository) List(ctx context.Context) ([]*types.City, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+cityColumns+` FROM cities
		 ORDER BY is_favorite DESC, created_at DESC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list cities", err)
	}
	defer rows.Close()

	var cities []*types.City
	for rows.Next() {
		city, scanErr := scanCity(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan city row", scanErr)
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating city rows", err)
	}
	return cities, nil
}

// SetFavorite flips a city's favorite flag and returns the updated row.
// Returns ErrCodeNotFoundCity if the city does not exist.
func (r *CityRepository) SetFavorite(ctx context.Context, id string, favorite bool) (*types.City, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE cities SET is_favorite = $2 WHERE id = $1
		 RETURNING `+cityColumns, id, favorite)

	city, err := scanCity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCity, "city not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update city", err)
	}
	return city, nil
}

// Delete removes a city. Snapshots and alerts referencing it are removed by
// ON DELETE CASCADE. Returns ErrCodeNotFoundCity when no row matched.
func (r *CityRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete city", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCity, "city not found", nil)
	}
	return nil
}
