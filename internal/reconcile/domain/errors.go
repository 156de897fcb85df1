package reconcile

import "fmt"

// ParseError reports a structurally unreadable export. It is terminal for
// the run; the pipeline never substitutes fabricated data for a bad export.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconcile: parse: %s: %v", e.Reason, e.Err)
	}
	return "reconcile: parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
