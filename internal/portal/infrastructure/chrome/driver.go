// Package chrome implements the portal driver over a headless Chrome
// instance controlled through the DevTools protocol.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	portal "utilibill/internal/portal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls how browser contexts are opened.
type Config struct {
	Headless    bool
	UserAgent   string
	DownloadDir string
}

// Factory opens Chrome-backed drivers. One factory serves many runs; each
// run gets its own browser context.
type Factory struct {
	cfg Config
}

// NewFactory constructs a Factory.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.DownloadDir == "" {
		return nil, errors.New("chrome: download dir required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Factory{cfg: cfg}, nil
}

// NewDriver starts a fresh browser context.
func (f *Factory) NewDriver(ctx context.Context) (portal.Driver, error) {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(f.cfg.UserAgent),
		chromedp.WindowSize(1440, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so startup failures surface here rather
	// than on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chrome: start browser: %w", err)
	}
	return &Driver{
		ctx:         browserCtx,
		cancels:     []context.CancelFunc{browserCancel, allocCancel},
		downloadDir: f.cfg.DownloadDir,
	}, nil
}

// Driver drives one browser context.
type Driver struct {
	ctx         context.Context
	cancels     []context.CancelFunc
	downloadDir string
	closed      bool
}

// run executes actions against the browser context, honoring the caller's
// deadline.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if d.closed {
		return errors.New("chrome: driver closed")
	}
	runCtx := d.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(d.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL and waits for the document to be ready.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

// WaitVisible blocks until the selector is visible.
func (d *Driver) WaitVisible(ctx context.Context, selector string) error {
	return d.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Click clicks the first match of the selector.
func (d *Driver) Click(ctx context.Context, selector string) error {
	return d.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// ClickByText clicks the first match of the selector whose trimmed text
// equals the given text. Needed for option lists that expose no stable
// per-option selectors.
func (d *Driver) ClickByText(ctx context.Context, selector, text string) error {
	script := fmt.Sprintf(`(() => {
		const nodes = document.querySelectorAll(%q);
		for (const node of nodes) {
			if (node.textContent.trim() === %q) { node.click(); return true; }
		}
		return false;
	})()`, selector, text)
	var clicked bool
	if err := d.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("chrome: no %s element with text %q", selector, text)
	}
	return nil
}

// Fill clears and types into the selector.
func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	return d.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// Exists reports element presence without waiting.
func (d *Driver) Exists(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	var present bool
	if err := d.run(ctx, chromedp.Evaluate(script, &present)); err != nil {
		return false, err
	}
	return present, nil
}

// Location returns the current page URL.
func (d *Driver) Location(ctx context.Context) (string, error) {
	var loc string
	if err := d.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// TriggerDownload clicks the selector and waits for the browser to report
// a completed download, returning the file path under the download dir.
func (d *Driver) TriggerDownload(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if d.closed {
		return "", errors.New("chrome: driver closed")
	}
	done := make(chan string, 1)
	failed := make(chan error, 1)
	listenCtx, stopListening := context.WithCancel(d.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if progress, ok := ev.(*browser.EventDownloadProgress); ok {
			switch progress.State {
			case browser.DownloadProgressStateCompleted:
				select {
				case done <- progress.GUID:
				default:
				}
			case browser.DownloadProgressStateCanceled:
				select {
				case failed <- errors.New("chrome: download canceled"):
				default:
				}
			}
		}
	})

	err := d.run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(d.downloadDir).
			WithEventsEnabled(true),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case guid := <-done:
		return filepath.Join(d.downloadDir, guid), nil
	case err := <-failed:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", errors.New("chrome: download timed out")
	}
}

// Close tears down the browser context. Safe to call more than once.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	for _, cancel := range d.cancels {
		cancel()
	}
	return nil
}
