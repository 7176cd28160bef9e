// Package services orchestrates journey compilation, trigger registration, journey
// CRUD and run records.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/locker"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/registrar"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrJourneyNil       = errors.New("journey cannot be nil")
	ErrInvalidTaskInput = errors.New("invalid task input")
	ErrInvalidRunStatus = errors.New("invalid run status")
	ErrUnsupportedTask  = errors.New("unsupported task type")

	// Not found (404).
	ErrJourneyNotFound = persistence.ErrJourneyNotFound
	ErrRunNotFound     = persistence.ErrRunNotFound

	// Business Logic Conflicts (409 Conflict).
	ErrLocked      = locker.ErrLocked
	ErrRunFinished = errors.New("run already finished")
	ErrRunMismatch = errors.New("run belongs to another journey")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
// Compilation failures count: the journey as submitted cannot be built.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrJourneyNil) ||
		errors.Is(err, ErrInvalidTaskInput) ||
		errors.Is(err, ErrInvalidRunStatus) ||
		errors.Is(err, ErrUnsupportedTask) ||
		errors.Is(err, models.ErrInvalidDocument) ||
		errors.Is(err, models.ErrInvalidConfig) ||
		compiler.IsCompilationError(err)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrLocked) ||
		errors.Is(err, ErrRunFinished) ||
		errors.Is(err, ErrRunMismatch)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsJourneyNotFound(err) || persistence.IsRunNotFound(err)
}

// IsUpstreamError reports failures of the workflow or trigger provider (HTTP 502).
func IsUpstreamError(err error) bool {
	return registrar.IsRegistrationError(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
