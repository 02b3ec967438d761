package allocation

import (
	"errors"
	"fmt"
)

// ErrorCode identifies specific allocation failures.
type ErrorCode string

const (
	// ErrInvalidAmount is returned when a non-positive amount reaches
	// the engine. Nothing is mutated.
	ErrInvalidAmount ErrorCode = "INVALID_AMOUNT"
	// ErrInconsistentState means a goal's stored amount is already
	// outside [0, target]. It indicates an upstream reversal or
	// recompute bug and is never silently repaired.
	ErrInconsistentState ErrorCode = "INCONSISTENT_STATE"
)

// Error is a structured error for allocation failures.
type Error struct {
	Code    ErrorCode
	Message string
	GoalID  string
	Cause   error
}

func (e *Error) Error() string {
	if e.GoalID != "" {
		return fmt.Sprintf("[%s] %s (goal %s)", e.Code, e.Message, e.GoalID)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsInvalidAmount reports whether err is an INVALID_AMOUNT allocation error.
func IsInvalidAmount(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == ErrInvalidAmount
}

// IsInconsistentState reports whether err is an INCONSISTENT_STATE allocation error.
func IsInconsistentState(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == ErrInconsistentState
}
