package registry

import "fmt"

// Error reports an empty or malformed registry. It is terminal for the run.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry: %s: %v", e.Reason, e.Err)
	}
	return "registry: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }
