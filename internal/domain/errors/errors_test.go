package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		wantType  ErrorType
		retryable bool
	}{
		{"validation", NewValidationError("MISSING_TENANT", "tenant id is required"), ErrorTypeValidation, false},
		{"data quality", NewDataQualityError("EMPTY_WINDOW", "no usable buckets"), ErrorTypeDataQuality, false},
		{"computation", NewComputationError("BAD_RECORD", "negative amount"), ErrorTypeComputation, false},
		{"conflict", NewConflictError("DUPLICATE_FINGERPRINT", "already exists"), ErrorTypeConflict, false},
		{"concurrency", NewConcurrencyError("run lock held"), ErrorTypeConcurrency, true},
		{"not found", NewNotFoundError("signal"), ErrorTypeNotFound, false},
		{"internal", NewInternalError("database unavailable"), ErrorTypeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewInternalError("failed to publish signal").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsType_ThroughWrapping(t *testing.T) {
	conflict := NewConflictError("DUPLICATE_FINGERPRINT", "already exists")
	wrapped := fmt.Errorf("publish: %w", conflict)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsConflict(errors.New("plain error")))
	assert.False(t, IsConflict(nil))

	assert.True(t, IsConcurrency(NewConcurrencyError("lock held")))
	assert.True(t, IsNotFound(NewNotFoundError("signal")))
	assert.True(t, IsDataQuality(NewDataQualityError("X", "y")))
}

func TestAppError_WithDetails(t *testing.T) {
	err := NewValidationError("UNKNOWN_MODULE", "unknown module").
		WithDetails(map[string]interface{}{"module": "bogus"})
	assert.Equal(t, "bogus", err.Details["module"])
}
