// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrNegativeValue = errors.New("value cannot be negative")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Assessment rule violations
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrQuizNotPublished     = errors.New("quiz not published")

	// ErrAttemptExpired is an invalid-state error: errors.Is(ErrAttemptExpired, ErrInvalidState) holds.
	ErrAttemptExpired = fmt.Errorf("attempt time limit elapsed: %w", ErrInvalidState)

	// Concurrency errors. ErrConcurrencyConflict never leaves the engine;
	// commands retry and surface ErrTransient once the budget is spent.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
	ErrTransient           = errors.New("transient failure, try again")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "progress", "assessment"
	Op      string // Operation that failed, e.g., "StartAttempt"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NotFound is shorthand for a not-found DomainError.
func NotFound(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidState is shorthand for an invalid-state DomainError.
func InvalidState(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrInvalidState, fmt.Sprintf(format, args...))
}

// Validation is shorthand for a validation DomainError.
func Validation(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// AttemptLimitError carries the context a caller needs to explain a refused
// attempt start. errors.Is(err, ErrAttemptLimitExceeded) matches it.
type AttemptLimitError struct {
	QuizID string
	Count  int
	Limit  int
}

// Error implements the error interface.
func (e *AttemptLimitError) Error() string {
	return fmt.Sprintf("assessment.StartAttempt: quiz %s allows %d attempts, %d already used", e.QuizID, e.Limit, e.Count)
}

// Is matches ErrAttemptLimitExceeded.
func (e *AttemptLimitError) Is(target error) bool {
	return target == ErrAttemptLimitExceeded
}

// ErrCertificateExists is returned when another claim holds the enrollment.
var ErrCertificateExists = NewDomainError("certificate", "Claim", ErrAlreadyExists, "certificate already claimed")

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidState checks if the error is an invalid lifecycle state error.
// Expired attempts are included.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsConflict checks if the error is an optimistic concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrNegativeValue)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrTransient)
}
