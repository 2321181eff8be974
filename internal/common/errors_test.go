package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSpecific = errors.New("specific")

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		name     string
	}{
		{name: "validation", err: NewValidationError(nil, "blocked by %d divergences", 3), sentinel: ErrValidation},
		{name: "integrity", err: NewIntegrityError("key %q has no evidence", "42"), sentinel: ErrIntegrity},
		{name: "persistence", err: NewPersistenceError("save report", errors.New("disk full")), sentinel: ErrPersistence},
		{name: "wrapped validation", err: fmt.Errorf("close: %w", NewValidationError(nil, "x")), sentinel: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestValidationError_MessageVerbatim(t *testing.T) {
	err := NewValidationError(errSpecific, "cannot close 2024-03: %d divergences pending", 2)
	assert.Equal(t, "cannot close 2024-03: 2 divergences pending", err.Error())
	assert.ErrorIs(t, err, errSpecific)
	assert.NotErrorIs(t, err, ErrIntegrity)
}

func TestNewPersistenceError_PassThrough(t *testing.T) {
	assert.NoError(t, NewPersistenceError("op", nil))

	notFound := fmt.Errorf("report 2024-03: %w", ErrNotFound)
	assert.Equal(t, notFound, NewPersistenceError("load", notFound))

	err := NewPersistenceError("load", errors.New("boom"))
	assert.Equal(t, "load: boom", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestUserError(t *testing.T) {
	err := NewUserError("Could not open database", errors.New("locked"))
	assert.Equal(t, "Could not open database: locked", err.Error())
	assert.Equal(t, "only message", NewUserError("only message", nil).Error())
}
