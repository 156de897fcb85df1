package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	billingcycle "utilibill/internal/billingcycle/domain"
	portal "utilibill/internal/portal/domain"
)

func writeDownload(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write download: %v", err)
	}
	return path
}

func newTestAcquirer(t *testing.T, opts ...AcquirerOption) *Acquirer {
	t.Helper()
	acquirer, err := NewAcquirer(testProfile(), opts...)
	if err != nil {
		t.Fatalf("new acquirer: %v", err)
	}
	return acquirer
}

func TestAcquirerUsesExactPreset(t *testing.T) {
	driver := newFakeDriver()
	driver.downloadPath = writeDownload(t, 512)

	path, err := newTestAcquirer(t).Acquire(context.Background(), driver, billingcycle.Window{MonthsBack: 3}, time.Now())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if path != driver.downloadPath {
		t.Fatalf("unexpected path %s", path)
	}
	if len(driver.textClicks) != 1 || driver.textClicks[0] != "Last 3 months" {
		t.Fatalf("unexpected preset clicks %v", driver.textClicks)
	}
}

func TestAcquirerFallsBackToCoveringPreset(t *testing.T) {
	driver := newFakeDriver()
	driver.downloadPath = writeDownload(t, 512)

	// No preset spans exactly 4 months, so the covering tier picks the
	// smallest preset above it.
	_, err := newTestAcquirer(t).Acquire(context.Background(), driver, billingcycle.Window{MonthsBack: 4}, time.Now())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(driver.textClicks) != 1 || driver.textClicks[0] != "Last 6 months" {
		t.Fatalf("unexpected preset clicks %v", driver.textClicks)
	}
}

func TestAcquirerFallsBackToCustomRange(t *testing.T) {
	driver := newFakeDriver()
	driver.downloadPath = writeDownload(t, 512)
	driver.fail[`ng-select.range-selector`] = errors.New("dropdown gone")

	now := time.Date(2025, time.September, 15, 10, 0, 0, 0, time.UTC)
	_, err := newTestAcquirer(t).Acquire(context.Background(), driver, billingcycle.Window{MonthsBack: 3}, now)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if driver.filled[`input[name="start"]`] != "2025-06-01" {
		t.Fatalf("unexpected start %q", driver.filled[`input[name="start"]`])
	}
	if driver.filled[`input[name="end"]`] != "2025-08-31" {
		t.Fatalf("unexpected end %q", driver.filled[`input[name="end"]`])
	}
}

func TestAcquirerAllStrategiesExhausted(t *testing.T) {
	driver := newFakeDriver()
	driver.fail[`ng-select.range-selector`] = errors.New("dropdown gone")
	driver.fail[`.custom-range-toggle`] = errors.New("picker gone")

	var outcomes []string
	acquirer := newTestAcquirer(t, WithAttemptObserver(func(strategy, outcome string) {
		outcomes = append(outcomes, strategy+"="+outcome)
	}))
	_, err := acquirer.Acquire(context.Background(), driver, billingcycle.Window{MonthsBack: 3}, time.Now())
	var acqErr *portal.AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	if len(acqErr.Tried) != 3 {
		t.Fatalf("expected 3 strategies tried, got %v", acqErr.Tried)
	}
	want := []string{"preset-exact=failed", "preset-covering=failed", "custom-range=failed"}
	if len(outcomes) != len(want) {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("outcome %d: expected %s, got %s", i, want[i], outcomes[i])
		}
	}
}

func TestAcquirerRejectsTinyDownload(t *testing.T) {
	driver := newFakeDriver()
	driver.downloadPath = writeDownload(t, 3)

	_, err := newTestAcquirer(t).Acquire(context.Background(), driver, billingcycle.Window{MonthsBack: 3}, time.Now())
	var acqErr *portal.AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
}

func TestFetcherTearsDownOnFailure(t *testing.T) {
	driver := newFakeDriver()
	driver.fail[`ng-select.range-selector`] = errors.New("dropdown gone")
	driver.fail[`.custom-range-toggle`] = errors.New("picker gone")
	driver.location = "https://portal.test/dashboard"

	acquirer := newTestAcquirer(t)
	fetcher, err := NewFetcher(&fakeFactory{driver: driver}, testProfile(), acquirer,
		WithSessionOptions(WithDelayPolicy(NoDelay{})))
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	_, err = fetcher.Fetch(context.Background(), billingcycle.Window{MonthsBack: 3}, time.Now())
	var acqErr *portal.AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	if !driver.closed {
		t.Fatalf("browser context left open")
	}
}

func TestFetcherHappyPath(t *testing.T) {
	driver := newFakeDriver()
	driver.location = "https://portal.test/dashboard"
	driver.downloadPath = writeDownload(t, 512)

	fetcher, err := NewFetcher(&fakeFactory{driver: driver}, testProfile(), newTestAcquirer(t),
		WithSessionOptions(WithDelayPolicy(NoDelay{})))
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	path, err := fetcher.Fetch(context.Background(), billingcycle.Window{MonthsBack: 3}, time.Now())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if path != driver.downloadPath {
		t.Fatalf("unexpected path %s", path)
	}
	if !driver.closed {
		t.Fatalf("browser context left open after success")
	}
}
