package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestMuseError_Error(t *testing.T) {
	err := &MuseError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "result not found",
	}

	expected := "NOT_FOUND: result not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewValidation(t *testing.T) {
	fields := map[string]string{
		"name":  "Name is required",
		"email": "Please enter a valid email address",
	}
	err := NewValidation(fields)

	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Message != "invalid fields: email, name" {
		t.Errorf("Message = %q, want sorted field list", err.Message)
	}
	got, ok := err.Details["fields"].(map[string]string)
	if !ok || got["name"] != "Name is required" {
		t.Errorf("Details[fields] = %v, want %v", err.Details["fields"], fields)
	}
}

func TestNewMissingInput(t *testing.T) {
	err := NewMissingInput("Missing data. Please complete all steps.")

	if err.Code != ErrMissingInput {
		t.Errorf("Code = %q, want %q", err.Code, ErrMissingInput)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
}

func TestNewInvalidImage(t *testing.T) {
	t.Run("with index", func(t *testing.T) {
		err := NewInvalidImage(2, "not an image data URI")
		if err.Code != ErrInvalidImage {
			t.Errorf("Code = %q, want %q", err.Code, ErrInvalidImage)
		}
		if err.Message != "image 2: not an image data URI" {
			t.Errorf("Message = %q", err.Message)
		}
		if err.Details["index"] != 2 {
			t.Errorf("Details[index] = %v, want 2", err.Details["index"])
		}
	})

	t.Run("without index", func(t *testing.T) {
		err := NewInvalidImage(-1, "main image is empty")
		if err.Message != "main image is empty" {
			t.Errorf("Message = %q", err.Message)
		}
	})
}

func TestNewOverCapacity(t *testing.T) {
	err := NewOverCapacity(3)

	if err.Code != ErrOverCapacity {
		t.Errorf("Code = %q, want %q", err.Code, ErrOverCapacity)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["max"] != 3 {
		t.Errorf("Details[max] = %v, want 3", err.Details["max"])
	}
}

func TestProviderErrors(t *testing.T) {
	cause := fmt.Errorf("status 503")

	tests := []struct {
		name   string
		err    *MuseError
		code   ErrorCode
		status int
	}{
		{"outage", NewProvider("openai", cause), ErrProvider, 502},
		{"auth", NewProviderAuth("openai", cause), ErrProviderAuth, 401},
		{"timeout", NewProviderTimeout("gemini", context.DeadlineExceeded), ErrProviderTimeout, 504},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Unwrap() == nil {
				t.Error("Unwrap() = nil, want cause")
			}
		})
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01HZX")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01HZX" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01HZX")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("database connection failed")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "database connection failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "database connection failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		if !Is(NewNotFound("x"), ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		if Is(NewNotFound("x"), ErrBusy) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-MuseError", func(t *testing.T) {
		if Is(fmt.Errorf("plain error"), ErrNotFound) {
			t.Error("Is() = true, want false for non-MuseError")
		}
	})

	t.Run("wrapped MuseError", func(t *testing.T) {
		wrapped := fmt.Errorf("portrait: %w", NewProviderTimeout("demo", nil))
		if !Is(wrapped, ErrProviderTimeout) {
			t.Error("Is() = false, want true for wrapped MuseError")
		}
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewProvider("openai", nil), true},
		{NewProviderTimeout("openai", nil), true},
		{NewBusy(), true},
		{NewProviderAuth("openai", nil), false},
		{NewInvalidImage(0, "bad"), false},
		{NewMissingInput("missing"), false},
		{NewValidation(map[string]string{"email": "bad"}), false},
		{fmt.Errorf("plain"), false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("wrap: %w", NewBusy())); got != ErrBusy {
		t.Errorf("CodeOf() = %q, want %q", got, ErrBusy)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != ErrInternal {
		t.Errorf("CodeOf() = %q, want %q", got, ErrInternal)
	}
}
