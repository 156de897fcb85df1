package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	billingcycle "utilibill/internal/billingcycle/domain"
	portal "utilibill/internal/portal/domain"
)

// Strategy selects a historical range on the report page. Strategies are
// tried in order; a failing strategy hands control to the next one.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, driver portal.Driver, window billingcycle.Window, now time.Time) error
}

// Acquirer turns an authenticated report page into a downloaded export
// file by walking an ordered strategy ladder and then running the download
// handshake.
type Acquirer struct {
	profile    Profile
	strategies []Strategy
	logger     *log.Logger
	observer   func(strategy, outcome string)
}

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithStrategies replaces the default strategy ladder.
func WithStrategies(strategies ...Strategy) AcquirerOption {
	return func(a *Acquirer) { a.strategies = strategies }
}

// WithAcquirerLogger attaches a logger for attempt diagnostics.
func WithAcquirerLogger(logger *log.Logger) AcquirerOption {
	return func(a *Acquirer) { a.logger = logger }
}

// WithAttemptObserver registers a callback invoked once per strategy
// attempt with its outcome ("ok" or "failed").
func WithAttemptObserver(fn func(strategy, outcome string)) AcquirerOption {
	return func(a *Acquirer) { a.observer = fn }
}

// NewAcquirer constructs an Acquirer with the default ladder: exact
// preset, then smallest covering preset, then explicit custom range.
func NewAcquirer(profile Profile, opts ...AcquirerOption) (*Acquirer, error) {
	a := &Acquirer{
		profile: profile,
		strategies: []Strategy{
			&presetStrategy{profile: profile, exact: true},
			&presetStrategy{profile: profile},
			&customRangeStrategy{profile: profile},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	if len(a.strategies) == 0 {
		return nil, errors.New("portal acquirer: no strategies")
	}
	return a, nil
}

// Acquire selects a range covering the window and downloads the export,
// returning the path of the verified file.
func (a *Acquirer) Acquire(ctx context.Context, driver portal.Driver, window billingcycle.Window, now time.Time) (string, error) {
	var tried []string
	var lastErr error
	for _, strategy := range a.strategies {
		tried = append(tried, strategy.Name())
		stepCtx, cancel := context.WithTimeout(ctx, a.profile.Timeouts.Strategy.Std())
		err := strategy.Apply(stepCtx, driver, window, now)
		cancel()
		if err != nil {
			lastErr = err
			a.observe(strategy.Name(), "failed")
			if a.logger != nil {
				a.logger.Printf("portal: strategy %s failed: %v", strategy.Name(), err)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		a.observe(strategy.Name(), "ok")

		path, err := a.download(ctx, driver)
		if err != nil {
			return "", &portal.AcquisitionError{Tried: tried, Err: err}
		}
		if a.logger != nil {
			a.logger.Printf("portal: export acquired via %s: %s", strategy.Name(), path)
		}
		return path, nil
	}
	return "", &portal.AcquisitionError{Tried: tried, Err: lastErr}
}

// download runs the export handshake: trigger the download, wait for the
// file and reject trivially small artifacts.
func (a *Acquirer) download(ctx context.Context, driver portal.Driver) (string, error) {
	timeout := a.profile.Timeouts.Download.Std()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path, err := driver.TriggerDownload(ctx, a.profile.Selectors.DownloadButton, timeout)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("download verify: %w", err)
	}
	if info.Size() < a.profile.MinFileBytes {
		return "", fmt.Errorf("download verify: file %s too small (%d bytes)", path, info.Size())
	}
	return path, nil
}

func (a *Acquirer) observe(strategy, outcome string) {
	if a.observer != nil {
		a.observer(strategy, outcome)
	}
}

// presetStrategy picks a named range preset. With exact set it only
// accepts a preset matching the window span; otherwise it takes the
// smallest preset that still covers the span.
type presetStrategy struct {
	profile Profile
	exact   bool
}

func (s *presetStrategy) Name() string {
	if s.exact {
		return "preset-exact"
	}
	return "preset-covering"
}

func (s *presetStrategy) Apply(ctx context.Context, driver portal.Driver, window billingcycle.Window, _ time.Time) error {
	preset, ok := s.pick(window.MonthsBack)
	if !ok {
		return fmt.Errorf("no preset covers %d months", window.MonthsBack)
	}
	sel := s.profile.Selectors
	if err := driver.Click(ctx, sel.RangeDropdown); err != nil {
		return err
	}
	if err := driver.ClickByText(ctx, sel.RangeOption, preset.Label); err != nil {
		return err
	}
	return driver.WaitVisible(ctx, sel.ReportReady)
}

func (s *presetStrategy) pick(monthsBack int) (Preset, bool) {
	presets := append([]Preset(nil), s.profile.Presets...)
	sort.Slice(presets, func(i, j int) bool { return presets[i].Months < presets[j].Months })
	for _, preset := range presets {
		if s.exact && preset.Months == monthsBack {
			return preset, true
		}
		if !s.exact && preset.Months >= monthsBack {
			return preset, true
		}
	}
	return Preset{}, false
}

// customRangeStrategy opens the date picker and fills explicit bounds: the
// first day of the earliest window month through the last day of the month
// before now.
type customRangeStrategy struct {
	profile Profile
}

func (s *customRangeStrategy) Name() string { return "custom-range" }

func (s *customRangeStrategy) Apply(ctx context.Context, driver portal.Driver, window billingcycle.Window, now time.Time) error {
	start, end := windowBounds(window, now)
	sel := s.profile.Selectors
	if err := driver.Click(ctx, sel.CustomRange); err != nil {
		return err
	}
	if err := driver.Fill(ctx, sel.CustomStart, start.Format("2006-01-02")); err != nil {
		return err
	}
	if err := driver.Fill(ctx, sel.CustomEnd, end.Format("2006-01-02")); err != nil {
		return err
	}
	if err := driver.Click(ctx, sel.CustomApply); err != nil {
		return err
	}
	return driver.WaitVisible(ctx, sel.ReportReady)
}

// windowBounds converts a months-back window into explicit dates ending
// with the last day of the month before now.
func windowBounds(window billingcycle.Window, now time.Time) (start, end time.Time) {
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = firstOfCurrent.AddDate(0, 0, -1)
	start = firstOfCurrent.AddDate(0, -window.MonthsBack, 0)
	return start, end
}
