package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	portal "utilibill/internal/portal/domain"
)

const authPollInterval = 500 * time.Millisecond

// Session walks a browser context through login and navigation to the
// reporting surface. It is single-use: any unrecoverable failure moves it
// to the terminated state and later calls fail with ErrSessionTerminated.
type Session struct {
	driver  portal.Driver
	profile Profile
	delay   portal.DelayPolicy
	logger  *log.Logger
	state   portal.State
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDelayPolicy overrides the pacing policy.
func WithDelayPolicy(delay portal.DelayPolicy) SessionOption {
	return func(s *Session) { s.delay = delay }
}

// WithSessionLogger attaches a logger for transition diagnostics.
func WithSessionLogger(logger *log.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// NewSession constructs a Session over an open driver.
func NewSession(driver portal.Driver, profile Profile, opts ...SessionOption) (*Session, error) {
	if driver == nil {
		return nil, errors.New("portal session: nil driver")
	}
	s := &Session{
		driver:  driver,
		profile: profile,
		delay:   NewJitter(300*time.Millisecond, 1200*time.Millisecond),
		state:   portal.StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current session state.
func (s *Session) State() portal.State { return s.state }

// Driver exposes the underlying driver for the acquisition phase. Only
// valid once the session is on the report page.
func (s *Session) Driver() portal.Driver { return s.driver }

// Login authenticates against the portal login form and waits for the
// authenticated landing surface.
func (s *Session) Login(ctx context.Context) error {
	if s.state != portal.StateUnauthenticated {
		return portal.ErrSessionTerminated
	}
	s.state = portal.StateAuthenticating

	ctx, cancel := context.WithTimeout(ctx, s.profile.Timeouts.Authentication.Std())
	defer cancel()

	if err := s.driver.Navigate(ctx, s.profile.LoginURL); err != nil {
		return s.terminate(&portal.AuthenticationError{Stage: "open login page", Err: err})
	}
	sel := s.profile.Selectors
	if err := s.driver.WaitVisible(ctx, sel.EmailField); err != nil {
		return s.terminate(&portal.AuthenticationError{Stage: "login form", Err: err})
	}
	s.delay.Pause(ctx)
	if err := s.driver.Fill(ctx, sel.EmailField, s.profile.Email); err != nil {
		return s.terminate(&portal.AuthenticationError{Stage: "email field", Err: err})
	}
	s.delay.Pause(ctx)
	if err := s.driver.Fill(ctx, sel.PasswordField, s.profile.Password); err != nil {
		return s.terminate(&portal.AuthenticationError{Stage: "password field", Err: err})
	}
	s.delay.Pause(ctx)
	if err := s.driver.Click(ctx, sel.SubmitButton); err != nil {
		return s.terminate(&portal.AuthenticationError{Stage: "submit", Err: err})
	}

	if err := s.awaitLanding(ctx); err != nil {
		return s.terminate(err)
	}
	s.state = portal.StateAuthenticated
	if s.logger != nil {
		s.logger.Printf("portal: authenticated as %s", s.profile.Email)
	}
	return nil
}

// awaitLanding polls for either the authenticated landing URL or an error
// banner until the step deadline.
func (s *Session) awaitLanding(ctx context.Context) error {
	for {
		loc, err := s.driver.Location(ctx)
		if err == nil && strings.Contains(loc, s.profile.AuthenticatedURLSubstring) {
			return nil
		}
		if banner := s.profile.Selectors.ErrorBanner; banner != "" {
			if present, err := s.driver.Exists(ctx, banner); err == nil && present {
				return &portal.AuthenticationError{Stage: "landing", Err: errors.New("error banner shown, credentials likely rejected")}
			}
		}
		select {
		case <-ctx.Done():
			return &portal.AuthenticationError{Stage: "landing", Err: ctx.Err()}
		case <-time.After(authPollInterval):
		}
	}
}

// OpenReport navigates from the authenticated landing surface to the
// reporting page and waits for it to be ready.
func (s *Session) OpenReport(ctx context.Context) error {
	if s.state != portal.StateAuthenticated {
		return portal.ErrSessionTerminated
	}
	s.state = portal.StateNavigating

	ctx, cancel := context.WithTimeout(ctx, s.profile.Timeouts.Navigation.Std())
	defer cancel()

	s.delay.Pause(ctx)
	if err := s.driver.Navigate(ctx, s.profile.ReportURL); err != nil {
		return s.terminate(&portal.NavigationError{Target: s.profile.ReportURL, Err: err})
	}
	if err := s.driver.WaitVisible(ctx, s.profile.Selectors.ReportReady); err != nil {
		return s.terminate(&portal.NavigationError{Target: s.profile.ReportURL, Err: err})
	}
	s.state = portal.StateOnReportPage
	if s.logger != nil {
		s.logger.Printf("portal: report page ready")
	}
	return nil
}

// Terminate tears down the session and its browser context. Idempotent.
func (s *Session) Terminate() error {
	if s.state == portal.StateTerminated {
		return nil
	}
	s.state = portal.StateTerminated
	return s.driver.Close()
}

func (s *Session) terminate(cause error) error {
	s.state = portal.StateTerminated
	if err := s.driver.Close(); err != nil && s.logger != nil {
		s.logger.Printf("portal: driver close: %v", err)
	}
	return cause
}
