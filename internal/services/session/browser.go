package session

import (
	"context"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/claviger/internal/common"
)

// browserSession wraps one interactive chromedp browser context for a single
// login attempt. It is exclusively held for the attempt and closed on
// completion or timeout, never kept across requests.
type browserSession struct {
	ctx             context.Context
	cancel          context.CancelFunc
	allocatorCancel context.CancelFunc
}

// buildAllocatorOptions creates Chrome allocator options. Login pages run the
// same bot detection as the APIs behind them, so the automation fingerprint
// is suppressed.
func buildAllocatorOptions(cfg common.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1280, 720),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		// Challenge flows need a window the user can interact with.
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// openBrowser starts a browser context rooted at parent. The parent carries
// the overall flow deadline.
func openBrowser(parent context.Context, cfg common.BrowserConfig) (*browserSession, error) {
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(parent, buildAllocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Force the browser process to start before the login script runs.
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, err
	}

	return &browserSession{
		ctx:             browserCtx,
		cancel:          browserCancel,
		allocatorCancel: allocatorCancel,
	}, nil
}

func (b *browserSession) Close() {
	b.cancel()
	b.allocatorCancel()
}
