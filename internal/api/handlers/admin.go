package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"floodloop/internal/core"
	"floodloop/internal/types"
)

const (
	// apiKeyPrefix identifies FloodLoop client keys at a glance.
	apiKeyPrefix = "fl_live_"

	// apiKeyPrefixLength is how many leading characters of the plaintext key
	// are stored for lookup. The rest is only ever stored as a bcrypt hash.
	apiKeyPrefixLength = 12

	// apiKeyHashCost is the bcrypt work factor for key hashes.
	apiKeyHashCost = 12
)

// APIKeyStore defines the persistence contract for API key management.
type APIKeyStore interface {
	Create(ctx context.Context, key *types.APIKey) error
	List(ctx context.Context) ([]*types.APIKey, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// StatsProvider aggregates service activity counters.
type StatsProvider interface {
	Summary(ctx context.Context) (*types.StatsSummary, error)
}

// AdminHandler serves API key provisioning and the stats summary. All routes
// mount under /v1/admin behind the admin secret middleware.
type AdminHandler struct {
	keys      APIKeyStore
	stats     StatsProvider
	validator *core.Validator
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler with the provided dependencies.
func NewAdminHandler(keys APIKeyStore, stats StatsProvider, val *core.Validator, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		keys:      keys,
		stats:     stats,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the admin endpoints onto the mux.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api-keys", func(kr chi.Router) {
		kr.Get("/", h.HandleListKeys)
		kr.Post("/", h.HandleCreateKey)
		kr.Post("/{id}/deactivate", h.HandleDeactivateKey)
		kr.Delete("/{id}", h.HandleDeleteKey)
	})
	r.Get("/stats", h.HandleStats)
}

// createKeyRequest is the body for POST /v1/admin/api-keys.
type createKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

// createKeyResponse carries the one-time plaintext key. The plaintext is not
// recoverable afterwards; only its bcrypt hash is stored.
type createKeyResponse struct {
	Key       *types.APIKey `json:"key"`
	Plaintext string        `json:"plaintext"`
}

// HandleCreateKey handles POST /v1/admin/api-keys.
func (h *AdminHandler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	plaintext, err := generateAPIKey()
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"key generation failed",
			err,
		))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), apiKeyHashCost)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"key hashing failed",
			err,
		))
		return
	}

	key := &types.APIKey{
		ID:        "key_" + uuid.New().String(),
		Name:      req.Name,
		KeyPrefix: plaintext[:apiKeyPrefixLength],
		KeyHash:   string(hash),
		IsActive:  true,
	}
	if err := h.keys.Create(r.Context(), key); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "api key created", "key_id", key.ID, "prefix", key.KeyPrefix)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: createKeyResponse{
		Key:       key,
		Plaintext: plaintext,
	}})
}

// HandleListKeys handles GET /v1/admin/api-keys. Hashes never leave the
// server; the listing carries prefixes only.
func (h *AdminHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: keys})
}

// HandleDeactivateKey handles POST /v1/admin/api-keys/{id}/deactivate.
// Deactivation is reversible only by issuing a new key.
func (h *AdminHandler) HandleDeactivateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.keys.Deactivate(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "api key deactivated", "key_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteKey handles DELETE /v1/admin/api-keys/{id}.
func (h *AdminHandler) HandleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.keys.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "api key deleted", "key_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /v1/admin/stats.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.Summary(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summary})
}

// generateAPIKey produces a new plaintext client key: the service prefix
// followed by 32 bytes of randomness, URL-safe base64 encoded.
func generateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}
