package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestConstructorsSetCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Vehicle"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad input", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("admins only"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("overlap"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", errors.New("cause")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestErrorIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("Failed to reach database", cause)

	if got := err.Error(); got != "INTERNAL_ERROR: Failed to reach database (caused by: connection refused)" {
		t.Errorf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestNotFoundWithIDCarriesDetails(t *testing.T) {
	err := NotFoundWithID("Booking", "abc123")
	if err.Details["resource"] != "Booking" || err.Details["id"] != "abc123" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestWithDetails(t *testing.T) {
	err := Conflict("overlap").WithDetails(map[string]any{"conflicts": 2})
	if err.Details["conflicts"] != 2 {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	app := NotFound("Group")
	if got := AsAppError(app); got != app {
		t.Error("expected the same AppError back")
	}

	plain := errors.New("oops")
	got := AsAppError(plain)
	if got.Code != CodeInternal {
		t.Errorf("Code = %q, want %q", got.Code, CodeInternal)
	}
	if !errors.Is(got, plain) {
		t.Error("expected the original error to be wrapped")
	}

	if IsAppError(plain) {
		t.Error("plain error should not be an AppError")
	}
	if !IsAppError(app) {
		t.Error("AppError should be recognized")
	}
}
