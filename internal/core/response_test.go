package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"floodloop/internal/types"
)

// --- JSON helper tests ---

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"name": "rotterdam"}})

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	dataMap, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected data to be a map, got %T", body.Data)
	}
	if dataMap["name"] != "rotterdam" {
		t.Errorf("expected name=rotterdam, got %v", dataMap["name"])
	}
}

func TestJSON_MetaWarnings(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, APIResponse{
		Data: "ok",
		Meta: &ResponseMeta{Warnings: []string{"interval clamped to 10s"}},
	})

	if !strings.Contains(w.Body.String(), "interval clamped to 10s") {
		t.Error("expected warning in serialized meta")
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-marshal-fail"))

	// Channels cannot be marshalled to JSON.
	JSON(w, r, http.StatusOK, make(chan int))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var body APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode fallback response: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected internal error code, got %q", body.Error.Code)
	}
	if body.Error.RequestID != "req-marshal-fail" {
		t.Errorf("expected request ID propagated, got %q", body.Error.RequestID)
	}
}

// --- Error helper tests ---

func TestError_AppErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{types.ErrCodeAuthKeyMissing, http.StatusUnauthorized},
		{types.ErrCodeAuthAdminForbidden, http.StatusForbidden},
		{types.ErrCodeNotFoundCity, http.StatusNotFound},
		{types.ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{types.ErrCodeUpstreamWeather, http.StatusBadGateway},
		{types.ErrCodeInternalDB, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		Error(w, r, types.NewAppError(tc.code, "boom", nil))

		if w.Code != tc.status {
			t.Errorf("%s: expected status %d, got %d", tc.code, tc.status, w.Code)
		}
	}
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	inner := types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	Error(w, r, errors.Join(errors.New("outer context"), inner))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 from wrapped AppError, got %d", w.Code)
	}
}

func TestError_GenericErrorDoesNotLeak(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, errors.New("pq: password authentication failed for user"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("internal error message leaked to client")
	}

	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Message != "an unexpected error occurred" {
		t.Errorf("expected safe default message, got %q", body.Error.Message)
	}
}

func TestError_InternalDetailsNotSerialized(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	wrapped := errors.New("connection refused 10.0.0.5:5432")
	Error(w, r, types.NewAppError(types.ErrCodeInternalDB, "database error", wrapped))

	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Error("wrapped internal error leaked to client")
	}
}

// --- DecodeJSON tests ---

type decodeTarget struct {
	Name string `json:"name"`
}

func decodeErrCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	return appErr.Code
}

func TestDecodeJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "ok"}`))

	var dst decodeTarget
	if err := DecodeJSON(w, r, &dst); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if dst.Name != "ok" {
		t.Errorf("expected name decoded, got %q", dst.Name)
	}
}

func TestDecodeJSON_MalformedBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": `))

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	if code := decodeErrCode(t, err); code != errCodeValidationInvalidJSON {
		t.Errorf("expected invalid JSON code, got %s", code)
	}
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "x", "extra": 1}`))

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	if code := decodeErrCode(t, err); code != errCodeValidationInvalidJSON {
		t.Errorf("expected invalid JSON code, got %s", code)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Errorf("expected unknown field message, got %q", err.Error())
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	if code := decodeErrCode(t, err); code != errCodeValidationInvalidJSON {
		t.Errorf("expected invalid JSON code, got %s", code)
	}
}

func TestDecodeJSON_WrongFieldType(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": 42}`))

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Details["field"] != "name" {
		t.Errorf("expected field detail, got %v", appErr.Details)
	}
}

func TestDecodeJSON_MultipleValues(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "a"}{"name": "b"}`))

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	if code := decodeErrCode(t, err); code != errCodeValidationInvalidJSON {
		t.Errorf("expected invalid JSON code, got %s", code)
	}
}
