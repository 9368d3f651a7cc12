package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

// TestAppErrorErrorFormat verifies the Error() method produces the "code: message" format.
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidLat,
		Message: "Latitude must be between -90 and 90",
	}

	expected := "validation_invalid_latitude: Latitude must be between -90 and 90"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

// TestAppErrorUnwrap verifies the error chain support via Unwrap.
func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := &AppError{
		Code:    ErrCodeInternalDB,
		Message: "failed to query cities",
		Err:     underlying,
	}

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
}

// TestAppErrorErrorsAs verifies that errors.As can extract AppError from an error chain.
func TestAppErrorErrorsAs(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundCity,
		Message: "city not found",
	}
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrappedErr, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeNotFoundCity {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeNotFoundCity)
	}
}

// TestHTTPStatusMapping verifies the prefix-based code to status translation.
func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{ErrCodeValidationInvalidInterval, http.StatusBadRequest},
		{ErrCodeAuthKeyMissing, http.StatusUnauthorized},
		{ErrCodeAuthKeyInvalid, http.StatusForbidden},
		{ErrCodeAuthAdminForbidden, http.StatusForbidden},
		{ErrCodeNotFoundCity, http.StatusNotFound},
		{ErrCodeNotFoundAlert, http.StatusNotFound},
		{ErrCodeUpstreamWeather, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeConfigMissingCredential, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

// TestWithDetailsDoesNotMutate verifies WithDetails returns a copy.
func TestWithDetailsDoesNotMutate(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeValidationThresholdRange, "threshold out of range", nil, map[string]any{"threshold": 150.0})
	derived := orig.WithDetails(map[string]any{"max": 100.0})

	if _, ok := orig.Details["max"]; ok {
		t.Error("WithDetails mutated the original error's details")
	}
	if derived.Details["threshold"] != 150.0 || derived.Details["max"] != 100.0 {
		t.Errorf("derived details incomplete: %v", derived.Details)
	}
}
