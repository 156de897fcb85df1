package portal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionTerminated is returned when a caller drives a session that has
// already reached its terminal state.
var ErrSessionTerminated = errors.New("portal: session terminated")

// AuthenticationError reports a failed login. Stage names the step that
// failed, e.g. "submit" or "landing".
type AuthenticationError struct {
	Stage string
	Err   error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("portal: authentication failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("portal: authentication failed at %s", e.Stage)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NavigationError reports a reporting surface that never became ready.
type NavigationError struct {
	Target string
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("portal: navigation to %s failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("portal: navigation to %s failed", e.Target)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// AcquisitionError reports that every range-selection strategy failed, or
// that the downloaded artifact did not verify. Tried lists the strategies
// in attempt order.
type AcquisitionError struct {
	Tried []string
	Err   error
}

func (e *AcquisitionError) Error() string {
	msg := "portal: acquisition failed"
	if len(e.Tried) > 0 {
		msg += " after " + strings.Join(e.Tried, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
