package registrar

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTrigger is returned when a registration carries neither a pattern nor a schedule.
	ErrNoTrigger = errors.New("registration has no trigger")

	// ErrTargetRejected is returned when the rule service accepts the call but rejects a target.
	ErrTargetRejected = errors.New("rule target rejected")
)

// RegistrationError wraps a failed create or update call against a backing service.
// The resources of the journey may be left inconsistent; the caller retries the sync.
type RegistrationError struct {
	Op        string // e.g. "CreateStateMachine", "PutRule"
	JourneyID string
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s failed for journey %s: %v", e.Op, e.JourneyID, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// IsRegistrationError reports whether err came from a backing service call.
func IsRegistrationError(err error) bool {
	var regErr *RegistrationError

	return errors.As(err, &regErr)
}
