package application

import (
	"context"
	"errors"
	"log"
	"time"

	billingcycle "utilibill/internal/billingcycle/domain"
	portal "utilibill/internal/portal/domain"
)

// Fetcher composes a fresh session and an acquirer into one export fetch.
// Every fetch opens its own browser context and tears it down on all exit
// paths.
type Fetcher struct {
	factory  portal.DriverFactory
	profile  Profile
	acquirer *Acquirer
	logger   *log.Logger
	sessOpts []SessionOption
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherLogger attaches a logger.
func WithFetcherLogger(logger *log.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// WithSessionOptions forwards options to every session the fetcher opens.
func WithSessionOptions(opts ...SessionOption) FetcherOption {
	return func(f *Fetcher) { f.sessOpts = opts }
}

// NewFetcher constructs a Fetcher.
func NewFetcher(factory portal.DriverFactory, profile Profile, acquirer *Acquirer, opts ...FetcherOption) (*Fetcher, error) {
	if factory == nil {
		return nil, errors.New("portal fetcher: nil driver factory")
	}
	if acquirer == nil {
		return nil, errors.New("portal fetcher: nil acquirer")
	}
	f := &Fetcher{factory: factory, profile: profile, acquirer: acquirer}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch logs in, opens the report page, acquires an export covering the
// window and returns the downloaded file path.
func (f *Fetcher) Fetch(ctx context.Context, window billingcycle.Window, now time.Time) (string, error) {
	driver, err := f.factory.NewDriver(ctx)
	if err != nil {
		return "", err
	}
	session, err := NewSession(driver, f.profile, f.sessOpts...)
	if err != nil {
		driver.Close()
		return "", err
	}
	defer func() {
		if err := session.Terminate(); err != nil && f.logger != nil {
			f.logger.Printf("portal: teardown: %v", err)
		}
	}()

	if err := session.Login(ctx); err != nil {
		return "", err
	}
	if err := session.OpenReport(ctx); err != nil {
		return "", err
	}
	return f.acquirer.Acquire(ctx, session.Driver(), window, now)
}
