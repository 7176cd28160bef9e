// Package compiler turns journeys into state-machine definitions, event patterns and
// schedule expressions. Every function in it is pure: no I/O and no shared state.
package compiler

import (
	"errors"
	"fmt"

	"github.com/dukex/journeys/pkg/statemachine"
)

// Compilation errors. All of them abort a sync before any external call is made.
var (
	ErrInvalidActionType   = errors.New("invalid action type")
	ErrInvalidTriggerType  = errors.New("invalid trigger type")
	ErrInvalidOperator     = errors.New("invalid filter operator")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrMissingWaitSeconds  = errors.New("wait state requires non-negative seconds")
	ErrAmbiguousTransition = errors.New("state sets both next and end")

	// Graph errors are shared with the state machine builder.
	ErrMissingTransition = statemachine.ErrMissingTransition
	ErrUnknownState      = statemachine.ErrUnknownState
	ErrDuplicateState    = statemachine.ErrDuplicateState
	ErrUnreachableState  = statemachine.ErrUnreachableState
	ErrMissingStart      = statemachine.ErrMissingStart
)

// CompilationError wraps a compilation failure with the journey and, when known,
// the state that caused it.
type CompilationError struct {
	Journey string
	State   string
	Err     error
}

func (e *CompilationError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("compile journey %s: state %q: %v", e.Journey, e.State, e.Err)
	}

	return fmt.Sprintf("compile journey %s: %v", e.Journey, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for compilation errors.
func (e *CompilationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsCompilationError reports whether err was raised while compiling a journey.
func IsCompilationError(err error) bool {
	var compErr *CompilationError

	return errors.As(err, &compErr)
}

func compileError(journey, state string, err error) error {
	// Builder errors already carry the state name.
	var stateErr *statemachine.StateError
	if state == "" && errors.As(err, &stateErr) {
		return &CompilationError{Journey: journey, State: stateErr.State, Err: stateErr.Err}
	}

	return &CompilationError{Journey: journey, State: state, Err: err}
}
