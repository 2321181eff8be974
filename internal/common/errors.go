// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy. Every error produced by the reconciliation core wraps one of
// these sentinels so callers can branch with errors.Is.
var (
	// ErrValidation is recoverable and shown to the operator verbatim.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an absent period, report or state.
	ErrNotFound = errors.New("not found")
	// ErrIntegrity must never happen in correct operation.
	ErrIntegrity = errors.New("integrity violation")
	// ErrPersistence wraps store I/O failures. The core never retries.
	ErrPersistence = errors.New("persistence failure")

	// ErrMissingConfig is returned when required configuration is absent.
	ErrMissingConfig = errors.New("missing configuration")
	// ErrInvalidConfig is returned when configuration cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError is a recoverable business-rule failure.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError, optionally wrapping a more
// specific sentinel.
func NewValidationError(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// IntegrityError signals a broken invariant. It is fatal by contract and
// must not be swallowed.
type IntegrityError struct {
	Err     error
	Message string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: %s", e.Message)
}

// Is makes every IntegrityError match ErrIntegrity.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// NewIntegrityError creates an IntegrityError.
func NewIntegrityError(format string, args ...any) error {
	return &IntegrityError{Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failure of the external store.
type PersistenceError struct {
	Err error
	Op  string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is makes every PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err with the failing operation. A nil err yields nil,
// and errors already classified as not-found or validation pass through.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
