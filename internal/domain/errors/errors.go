package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeDataQuality ErrorType = "data_quality"
	ErrorTypeComputation ErrorType = "computation"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeConcurrency ErrorType = "concurrency"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeNotFound    ErrorType = "not_found"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewDataQualityError marks a per-entity unit that is skipped with a warning,
// never aborting the whole run.
func NewDataQualityError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeDataQuality,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewComputationError marks a single malformed record excluded from its bucket.
func NewComputationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeComputation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewConflictError is the duplicate-insert path. A fingerprint collision on publish
// is a normal no-op outcome, not a failure.
func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeConflict,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewConcurrencyError signals a run-lock collision; the caller may retry later.
func NewConcurrencyError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeConcurrency,
		Code:      "RUN_LOCK_HELD",
		Message:   message,
		Retryable: true,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotFound,
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// IsType reports whether err (or anything it wraps) is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

func IsConflict(err error) bool    { return IsType(err, ErrorTypeConflict) }
func IsDataQuality(err error) bool { return IsType(err, ErrorTypeDataQuality) }
func IsConcurrency(err error) bool { return IsType(err, ErrorTypeConcurrency) }
func IsNotFound(err error) bool    { return IsType(err, ErrorTypeNotFound) }
