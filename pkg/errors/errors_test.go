package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(20001, "test error")

	if err.Code != 20001 {
		t.Errorf("Expected code 20001, got %d", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Error("Expected Err to be nil")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      NewError(20001, "test error"),
			expected: "[20001] test error",
		},
		{
			name:     "with wrapped error",
			err:      NewError(20001, "test error").Wrap(errors.New("original error")),
			expected: "[20001] test error: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrDBError.Wrap(originalErr)

	if !errors.Is(appErr, originalErr) {
		t.Error("Expected errors.Is to find the original error")
	}
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrConversationNotFound.Wrap(errors.New("redis: nil")))

	if !Is(wrapped, ErrConversationNotFound) {
		t.Error("Expected Is to match through wrapping")
	}
	if Is(wrapped, ErrPermissionDenied) {
		t.Error("Expected Is to not match a different code")
	}
	if Is(errors.New("plain"), ErrConversationNotFound) {
		t.Error("Expected Is to not match a plain error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(ErrEmptyPayload); got != CodeEmptyPayload {
		t.Errorf("Expected %d, got %d", CodeEmptyPayload, got)
	}
	if got := GetCode(errors.New("plain")); got != CodeServerError {
		t.Errorf("Expected default %d for plain error, got %d", CodeServerError, got)
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ErrEmptyPayload) {
		t.Error("Expected ErrEmptyPayload to be a validation error")
	}
	if !IsValidation(ErrMissingID.Wrap(errors.New("inner"))) {
		t.Error("Expected wrapped ErrMissingID to be a validation error")
	}
	if IsValidation(ErrDBError) {
		t.Error("Expected ErrDBError to not be a validation error")
	}
}

func TestIsPermission(t *testing.T) {
	if !IsPermission(ErrPermissionDenied) {
		t.Error("Expected ErrPermissionDenied to be a permission error")
	}
	if IsPermission(ErrServerError) {
		t.Error("Expected ErrServerError to not be a permission error")
	}
}
