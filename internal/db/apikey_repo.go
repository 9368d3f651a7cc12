package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"floodloop/internal/types"
)

// APIKeyRepository provides data access for the api_keys table.
// Only the bcrypt hash of a key is ever stored; auth middleware looks keys
// up by their public prefix and verifies the hash.
type APIKeyRepository struct {
	db DBTX
}

// NewAPIKeyRepository creates a new APIKeyRepository backed by the given
// database connection (pool or transaction).
func NewAPIKeyRepository(db DBTX) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

const apiKeyColumns = `id, name, key_prefix, key_hash, is_active, last_used_at, created_at`

func scanAPIKey(row pgx.Row) (*types.APIKey, error) {
	var k types.APIKey
	err := row.Scan(&k.ID, &k.Name, &k.KeyPrefix, &k.KeyHash, &k.IsActive, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Create inserts a new API key record. The caller must set the ID, prefix,
// and hash before calling.
func (r *APIKeyRepository) Create(ctx context.Context, key *types.APIKey) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_prefix, key_hash, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		key.ID, key.Name, key.KeyPrefix, key.KeyHash, key.IsActive, nilIfZeroTime(key.CreatedAt))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create api key", err)
	}
	return nil
}

// List returns all API keys, newest first. Hashes are included for internal
// use; the API layer must never serialize them (KeyHash is json:"-").
func (r *APIKeyRepository) List(ctx context.Context) ([]*types.APIKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list api keys", err)
	}
	defer rows.Close()

	var keys []*types.APIKey
	for rows.Next() {
		key, scanErr := scanAPIKey(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan api key row", scanErr)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating api key rows", err)
	}
	return keys, nil
}

// FindActiveByPrefix retrieves an active key by its public prefix.
// Returns ErrCodeNotFoundAPIKey if no active key matches.
func (r *APIKeyRepository) FindActiveByPrefix(ctx context.Context, prefix string) (*types.APIKey, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE key_prefix = $1 AND is_active = TRUE`, prefix)

	key, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAPIKey, "api key not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve api key", err)
	}
	return key, nil
}

// TouchLastUsed updates the key's last_used_at timestamp. Best-effort: callers
// may ignore the error since a failed touch must not fail the request.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to touch api key", err)
	}
	return nil
}

// Deactivate disables a key without deleting its audit trail.
// Returns ErrCodeNotFoundAPIKey when no row matched.
func (r *APIKeyRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate api key", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAPIKey, "api key not found", nil)
	}
	return nil
}

// Delete removes a key permanently. Returns ErrCodeNotFoundAPIKey when no
// row matched.
func (r *APIKeyRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete api key", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAPIKey, "api key not found", nil)
	}
	return nil
}
