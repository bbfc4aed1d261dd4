package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("redis connection refused")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if !errors.Is(wrapped, originalErr) {
		t.Errorf("expected errors.Is to unwrap to original error")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "Booking not found",
			},
			expected: "NOT_FOUND: Booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("connection reset"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestConstructorStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFoundWithID("Booking", "abc123"), CodeNotFound, http.StatusNotFound},
		{"conflict", Conflict("Partner already assigned to this booking"), CodeConflict, http.StatusConflict},
		{"invalid input", InvalidInput("Admin ID is required"), CodeInvalidInput, http.StatusBadRequest},
		{"validation", Validation("Invalid document types", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"no partner", NoPartnerAvailable("mumbai"), CodeNoPartnerAvailable, http.StatusNotFound},
		{"resource busy", ResourceBusy("booking:assign:abc123"), CodeResourceBusy, http.StatusConflict},
		{"rate limited", RateLimited("Rate limit exceeded"), CodeRateLimited, http.StatusTooManyRequests},
		{"persistence", Persistence("update matched no documents", nil), CodePersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestDocumentsNotApproved(t *testing.T) {
	err := DocumentsNotApproved([]string{"SIGNATURE"})

	if err.Message != "Cannot confirm booking. Pending documents: SIGNATURE" {
		t.Errorf("unexpected message: %s", err.Message)
	}
	docTypes, ok := err.Details["docTypes"].([]string)
	if !ok || len(docTypes) != 1 || docTypes[0] != "SIGNATURE" {
		t.Errorf("expected details to name SIGNATURE, got %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	plain := errors.New("boom")
	appErr := AsAppError(plain)

	if appErr.Code != CodeInternal {
		t.Errorf("expected plain error to map to %s, got %s", CodeInternal, appErr.Code)
	}
	if !IsAppError(appErr) {
		t.Errorf("expected IsAppError to be true after conversion")
	}

	conflict := Conflict("Booking already confirmed")
	if AsAppError(conflict) != conflict {
		t.Errorf("expected AsAppError to return the same AppError instance")
	}
}
