package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/starford/vizbase/internal/verify"
)

// BrowserOptions configures the Chromium instance used for region captures.
type BrowserOptions struct {
	Headless bool
	// Timeout bounds navigation, waiting for the region and the screenshot.
	Timeout time.Duration
	// WrapperSelector, when set, captures the wrapper element that contains
	// the region selector instead of the region itself (e.g. a chart
	// container around its series).
	WrapperSelector string
	ViewportWidth   int
	ViewportHeight  int
}

// Browser owns a playwright driver and a Chromium browser.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    BrowserOptions
}

// Launch starts the playwright driver and Chromium.
func Launch(opts BrowserOptions) (*Browser, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("capture: start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("capture: launch chromium: %w", err)
	}
	return &Browser{pw: pw, browser: browser, opts: opts}, nil
}

// Close releases the browser and the driver.
func (b *Browser) Close() error {
	if err := b.browser.Close(); err != nil {
		_ = b.pw.Stop()
		return fmt.Errorf("capture: close browser: %w", err)
	}
	return b.pw.Stop()
}

// Region returns a capture that opens pageURL in a fresh page, waits for the
// element matching selector to become visible and screenshots it with
// animations disabled.
func (b *Browser) Region(pageURL, selector string) verify.CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		timeout := b.timeout(ctx)
		if timeout <= 0 {
			return nil, fmt.Errorf("capture: %w", context.DeadlineExceeded)
		}
		ms := playwright.Float(float64(timeout.Milliseconds()))

		pageOpts := playwright.BrowserNewPageOptions{}
		if b.opts.ViewportWidth > 0 && b.opts.ViewportHeight > 0 {
			pageOpts.Viewport = &playwright.Size{Width: b.opts.ViewportWidth, Height: b.opts.ViewportHeight}
		}
		page, err := b.browser.NewPage(pageOpts)
		if err != nil {
			return nil, fmt.Errorf("capture: new page: %w", err)
		}
		defer func() { _ = page.Close() }()

		if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   ms,
		}); err != nil {
			return nil, fmt.Errorf("capture: goto %s: %w", pageURL, err)
		}

		region := page.Locator(selector)
		if b.opts.WrapperSelector != "" {
			region = page.Locator(b.opts.WrapperSelector).Filter(playwright.LocatorFilterOptions{Has: region})
		}
		region = region.First()

		if err := region.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: ms,
		}); err != nil {
			return nil, fmt.Errorf("capture: wait for %s: %w", selector, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := region.Screenshot(playwright.LocatorScreenshotOptions{
			Animations: playwright.ScreenshotAnimationsDisabled,
			Type:       playwright.ScreenshotTypePng,
			Timeout:    ms,
		})
		if err != nil {
			return nil, fmt.Errorf("capture: screenshot %s: %w", selector, err)
		}
		return data, nil
	}
}

// timeout is the configured timeout, shortened to the context deadline.
func (b *Browser) timeout(ctx context.Context) time.Duration {
	t := b.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < t {
			t = left
		}
	}
	return t
}
