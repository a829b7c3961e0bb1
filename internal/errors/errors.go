package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents a custom application error
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error kinds surfaced by the BCP and billing core.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeValidation        = "VALIDATION"
	CodeConflict          = "CONFLICT"
	CodeUpstreamFailed    = "UPSTREAM_FAILED"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeConfigMissing     = "CONFIG_MISSING"
)

// HTTPStatus maps an error code to the HTTP status it surfaces as. Upstream
// failures are normally journaled rather than raised, so the 502/503 mappings
// only apply on direct surfacing.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidTransition, CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUpstreamFailed, CodeUpstreamError:
		return http.StatusBadGateway
	case CodeConfigMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound is shorthand for a NOT_FOUND error about the named entity.
func NotFound(entity string) *AppError {
	return &AppError{Code: CodeNotFound, Message: entity + " not found"}
}

// Forbidden is shorthand for a FORBIDDEN error.
func Forbidden(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// Validation is shorthand for a VALIDATION error.
func Validation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// As unwraps err into an *AppError if possible.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
