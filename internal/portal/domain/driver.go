package portal

import (
	"context"
	"time"
)

// Driver abstracts the browser automation boundary. Implementations wrap a
// real browser context; tests substitute a scripted fake. Every call honors
// the context deadline.
type Driver interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until an element matching the selector is visible.
	WaitVisible(ctx context.Context, selector string) error

	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error

	// ClickByText clicks the first element matching the selector whose
	// visible text equals the given text.
	ClickByText(ctx context.Context, selector, text string) error

	// Fill types text into the element matching the selector.
	Fill(ctx context.Context, selector, value string) error

	// Exists reports whether an element matching the selector is present
	// right now, without waiting.
	Exists(ctx context.Context, selector string) (bool, error)

	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)

	// TriggerDownload clicks the selector and waits for the resulting
	// download to complete, returning the path of the downloaded file.
	TriggerDownload(ctx context.Context, selector string, timeout time.Duration) (string, error)

	// Close tears down the browser context. Safe to call more than once.
	Close() error
}

// DriverFactory opens a fresh browser context per run.
type DriverFactory interface {
	NewDriver(ctx context.Context) (Driver, error)
}

// DelayPolicy injects pacing between portal interactions. Implementations
// must return promptly when the context is cancelled.
type DelayPolicy interface {
	Pause(ctx context.Context)
}
