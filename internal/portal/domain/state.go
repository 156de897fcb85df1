// Package portal defines the ports and state model for driving an external
// reporting portal through a controlled browser context.
package portal

// State identifies where a session is in its lifecycle. Sessions are
// single-use: once terminated they cannot be restarted.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateNavigating      State = "navigating"
	StateOnReportPage    State = "on_report_page"
	StateTerminated      State = "terminated"
)

// String returns the state name.
func (s State) String() string { return string(s) }
