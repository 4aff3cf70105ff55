package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during run execution.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when one was started.
	RunID string

	// Instance identifies the affected job instance, when applicable.
	Instance string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNotTriggered indicates the event/ref pair matched none of
	// the workflow's trigger rules.
	ErrCodeNotTriggered RuntimeErrorCode = "NOT_TRIGGERED"

	// ErrCodeStalled indicates the scheduler found no runnable and no
	// skippable job while work remained. With cycle validation in the
	// compiler this indicates a scheduling bug, not bad input.
	ErrCodeStalled RuntimeErrorCode = "SCHEDULE_STALLED"

	// ErrCodeStore indicates run history could not be persisted.
	ErrCodeStore RuntimeErrorCode = "STORE_WRITE_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.RunID != "" && e.Instance != "":
		return fmt.Sprintf("%s: %s (run=%s, instance=%s)", e.Code, e.Message, e.RunID, e.Instance)
	case e.RunID != "":
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsNotTriggered reports whether the error means the workflow simply
// did not fire for the given event. Uses errors.As to handle wrapping.
func IsNotTriggered(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeNotTriggered
}

// NewNotTriggeredError creates a RuntimeError for an event that matches
// no trigger rule.
func NewNotTriggeredError(event, ref string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNotTriggered,
		Message: fmt.Sprintf("no trigger matches event %q on ref %q", event, ref),
	}
}
