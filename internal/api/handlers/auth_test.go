package handlers

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"floodloop/internal/types"
)

// bcrypt.MinCost keeps these tests fast; production uses apiKeyHashCost.
func hashedKey(t *testing.T, plaintext string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing key: %v", err)
	}
	return string(hash)
}

func TestAuthenticate_Success(t *testing.T) {
	plaintext := apiKeyPrefix + "abcd1234secretsecretsecret"
	store := &mockAPIKeyStore{keys: []*types.APIKey{{
		ID:        "key_1",
		KeyPrefix: plaintext[:apiKeyPrefixLength],
		KeyHash:   hashedKey(t, plaintext),
		IsActive:  true,
	}}}

	auth := NewKeyAuthenticator(store, slog.Default())

	id, err := auth.Authenticate(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id != "key_1" {
		t.Errorf("expected key_1, got %q", id)
	}
	if store.touchedID != "key_1" {
		t.Error("expected last-used timestamp update")
	}
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	valid := apiKeyPrefix + "abcd1234secretsecretsecret"
	store := &mockAPIKeyStore{keys: []*types.APIKey{{
		ID:        "key_1",
		KeyPrefix: valid[:apiKeyPrefixLength],
		KeyHash:   hashedKey(t, valid),
		IsActive:  true,
	}}}

	auth := NewKeyAuthenticator(store, slog.Default())

	// Same lookup prefix, different secret tail.
	_, err := auth.Authenticate(context.Background(), valid[:apiKeyPrefixLength]+"wrongwrongwrong")
	assertAuthInvalid(t, err)
	if store.touchedID != "" {
		t.Error("failed auth must not record usage")
	}
}

func TestAuthenticate_UnknownPrefix(t *testing.T) {
	auth := NewKeyAuthenticator(&mockAPIKeyStore{}, slog.Default())

	_, err := auth.Authenticate(context.Background(), apiKeyPrefix+"nobodyknowsthiskey")
	assertAuthInvalid(t, err)
}

func TestAuthenticate_MalformedKeys(t *testing.T) {
	auth := NewKeyAuthenticator(&mockAPIKeyStore{}, slog.Default())

	for _, key := range []string{"", "short", "sk_live_otherservice1234"} {
		_, err := auth.Authenticate(context.Background(), key)
		assertAuthInvalid(t, err)
	}
}

func TestAuthenticate_InactiveKeyNotResolved(t *testing.T) {
	plaintext := apiKeyPrefix + "abcd1234secretsecretsecret"
	store := &mockAPIKeyStore{keys: []*types.APIKey{{
		ID:        "key_1",
		KeyPrefix: plaintext[:apiKeyPrefixLength],
		KeyHash:   hashedKey(t, plaintext),
		IsActive:  false,
	}}}

	auth := NewKeyAuthenticator(store, slog.Default())

	_, err := auth.Authenticate(context.Background(), plaintext)
	assertAuthInvalid(t, err)
}

func assertAuthInvalid(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeAuthKeyInvalid {
		t.Errorf("expected %s, got %v", types.ErrCodeAuthKeyInvalid, err)
	}
}
