package handlers

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"floodloop/internal/types"
)

// KeyLookup is the subset of the API key repository the authenticator needs.
type KeyLookup interface {
	FindActiveByPrefix(ctx context.Context, prefix string) (*types.APIKey, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// KeyAuthenticator verifies presented client API keys against their stored
// bcrypt hashes. It implements core.KeyAuthenticator.
type KeyAuthenticator struct {
	keys   KeyLookup
	logger *slog.Logger
}

// NewKeyAuthenticator creates a new KeyAuthenticator.
func NewKeyAuthenticator(keys KeyLookup, logger *slog.Logger) *KeyAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyAuthenticator{
		keys:   keys,
		logger: logger,
	}
}

// Authenticate resolves a presented key to its stored record by public
// prefix, then compares the full key against the bcrypt hash. On success it
// returns the key ID and records the usage timestamp best-effort.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, presentedKey string) (string, error) {
	presentedKey = strings.TrimSpace(presentedKey)
	if len(presentedKey) < apiKeyPrefixLength || !strings.HasPrefix(presentedKey, apiKeyPrefix) {
		return "", types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil)
	}

	key, err := a.keys.FindActiveByPrefix(ctx, presentedKey[:apiKeyPrefixLength])
	if err != nil {
		return "", types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(presentedKey)); err != nil {
		return "", types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil)
	}

	if err := a.keys.TouchLastUsed(ctx, key.ID); err != nil {
		a.logger.WarnContext(ctx, "api key usage update failed", "key_id", key.ID, "error", err)
	}

	return key.ID, nil
}
