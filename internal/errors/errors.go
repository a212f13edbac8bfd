package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents a Muse error code.
type ErrorCode string

const (
	ErrValidation      ErrorCode = "VALIDATION_ERROR" // 422
	ErrMissingInput    ErrorCode = "MISSING_INPUT"    // 400
	ErrInvalidImage    ErrorCode = "INVALID_IMAGE"    // 422
	ErrOverCapacity    ErrorCode = "OVER_CAPACITY"    // 409
	ErrBusy            ErrorCode = "BUSY"             // 409
	ErrSuperseded      ErrorCode = "SUPERSEDED"       // 409
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrProvider        ErrorCode = "PROVIDER_ERROR"   // 502
	ErrProviderAuth    ErrorCode = "PROVIDER_AUTH"    // 401
	ErrProviderTimeout ErrorCode = "PROVIDER_TIMEOUT" // 504
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrCancelled       ErrorCode = "CANCELLED"        // 499
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// MuseError represents a structured error with code, status, and details.
type MuseError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying error, if any. Not rendered to users.
	cause error
}

// Error implements the error interface.
func (e *MuseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause so errors.Is/As can see through.
func (e *MuseError) Unwrap() error {
	return e.cause
}

// NewValidation creates a 422 error carrying field-level messages.
// The message lists the offending fields in a stable order.
func NewValidation(fields map[string]string) *MuseError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &MuseError{
		Code:    ErrValidation,
		Status:  422,
		Message: fmt.Sprintf("invalid fields: %s", strings.Join(names, ", ")),
		Details: map[string]any{"fields": fields},
	}
}

// NewMissingInput creates a 400 error for generation attempted without profile or images.
func NewMissingInput(msg string) *MuseError {
	return &MuseError{
		Code:    ErrMissingInput,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidImage creates a 422 error for an image that is not a recognized
// image encoding. index is the position in the sequence, or -1 if unknown.
func NewInvalidImage(index int, reason string) *MuseError {
	msg := reason
	if index >= 0 {
		msg = fmt.Sprintf("image %d: %s", index, reason)
	}
	return &MuseError{
		Code:    ErrInvalidImage,
		Status:  422,
		Message: msg,
		Details: map[string]any{"index": index},
	}
}

// NewOverCapacity creates a 409 error when an image would exceed the sequence limit.
func NewOverCapacity(max int) *MuseError {
	return &MuseError{
		Code:    ErrOverCapacity,
		Status:  409,
		Message: fmt.Sprintf("at most %d images are allowed", max),
		Details: map[string]any{"max": max},
	}
}

// NewBusy creates a 409 error when a generation is already in flight.
func NewBusy() *MuseError {
	return &MuseError{
		Code:    ErrBusy,
		Status:  409,
		Message: "a generation is already in progress",
	}
}

// NewSuperseded creates a 409 error for a completion that arrived after a reset.
func NewSuperseded(op string) *MuseError {
	return &MuseError{
		Code:    ErrSuperseded,
		Status:  409,
		Message: fmt.Sprintf("%s completed after the wizard was reset; result discarded", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MuseError {
	return &MuseError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewProvider creates a 502 error for network failures and non-success provider responses.
func NewProvider(provider string, err error) *MuseError {
	msg := "provider request failed"
	if err != nil {
		msg = err.Error()
	}
	return &MuseError{
		Code:    ErrProvider,
		Status:  502,
		Message: fmt.Sprintf("%s: %s", provider, msg),
		Details: map[string]any{"provider": provider},
		cause:   err,
	}
}

// NewProviderAuth creates a 401 error for missing or rejected provider credentials.
func NewProviderAuth(provider string, err error) *MuseError {
	msg := "credentials rejected"
	if err != nil {
		msg = err.Error()
	}
	return &MuseError{
		Code:    ErrProviderAuth,
		Status:  401,
		Message: fmt.Sprintf("%s: %s", provider, msg),
		Details: map[string]any{"provider": provider},
		cause:   err,
	}
}

// NewProviderTimeout creates a 504 error when a provider call exceeds its deadline.
func NewProviderTimeout(provider string, err error) *MuseError {
	return &MuseError{
		Code:    ErrProviderTimeout,
		Status:  504,
		Message: fmt.Sprintf("%s: request timed out", provider),
		Details: map[string]any{"provider": provider},
		cause:   err,
	}
}

// NewNotFound creates a 404 error for when a result cannot be found.
func NewNotFound(id string) *MuseError {
	return &MuseError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("result not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *MuseError {
	return &MuseError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates a 499 error when the caller's context is done.
func NewCancelled(op string) *MuseError {
	return &MuseError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error text goes in Details for logging.
func NewInternal(err error) *MuseError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &MuseError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a MuseError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MuseError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first MuseError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var mErr *MuseError
	if stderrors.As(err, &mErr) {
		return mErr.Code
	}
	return ErrInternal
}

// Retryable reports whether the same request may succeed if repeated.
// Provider outages and timeouts are retryable; bad input and rejected
// credentials are not.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrProvider, ErrProviderTimeout, ErrBusy:
		return true
	}
	return false
}
