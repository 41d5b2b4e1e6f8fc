// Package workflow implements the orchestration engine: definition registry,
// instance lifecycle, state execution, task management and retention.
package workflow

import (
	"errors"
	"fmt"

	"github.com/procflow/procflow/pkg/persistence"
)

// Not-found sentinels re-exported from the persistence layer so callers only
// depend on this package.
var (
	ErrDefinitionNotFound = persistence.ErrDefinitionNotFound
	ErrInstanceNotFound   = persistence.ErrInstanceNotFound
	ErrTaskNotFound       = persistence.ErrTaskNotFound
)

// ValidationError reports a malformed workflow definition. Registration fails
// fast on the first violation found.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow definition: %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError reports an operation attempted while the target is in a
// status that forbids it.
type InvalidStateError struct {
	Op     string
	ID     string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed for %s in status %s", e.Op, e.ID, e.Status)
}

func NewInvalidStateError(op, id, status string) *InvalidStateError {
	return &InvalidStateError{Op: op, ID: id, Status: status}
}

// ExecutionError wraps an error raised by a user-supplied hook during a loop
// pass. It is captured onto the instance, never returned to whoever triggered
// the loop.
type ExecutionError struct {
	InstanceID string
	State      string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed for instance %s in state %s: %v", e.InstanceID, e.State, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsValidation checks if an error is a definition validation error.
func IsValidation(err error) bool {
	var ve *ValidationError

	return errors.As(err, &ve)
}

// IsNotFound checks if an error indicates a missing definition, instance or task.
func IsNotFound(err error) bool {
	return persistence.IsNotFound(err)
}

// IsInvalidState checks if an error indicates a forbidden status transition.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError

	return errors.As(err, &ise)
}
