package session

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// cookieMap returns all browser cookies as name -> value.
func cookieMap(ctx context.Context) (map[string]string, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out, nil
}

// currentURL returns the page's current location.
func currentURL(ctx context.Context) (string, error) {
	var loc string
	if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// evalString evaluates a JS expression that yields a string (or null).
func evalString(ctx context.Context, expr string) (string, error) {
	var out string
	err := chromedp.Run(ctx, chromedp.Evaluate(expr, &out))
	if err != nil {
		return "", err
	}
	return out, nil
}

// fillIfPresent fills the first matching input when the selector exists,
// tolerating platforms that skip a step (e.g. an already-remembered email).
func fillIfPresent(ctx context.Context, selector, value string) error {
	var nodes int
	if err := chromedp.Run(ctx, chromedp.Evaluate(
		`document.querySelectorAll(`+"`"+selector+"`"+`).length`, &nodes)); err != nil {
		return err
	}
	if nodes == 0 {
		return nil
	}
	return chromedp.Run(ctx,
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// clickIfPresent clicks the first matching element when it exists.
func clickIfPresent(ctx context.Context, selector string) error {
	var nodes int
	if err := chromedp.Run(ctx, chromedp.Evaluate(
		`document.querySelectorAll(`+"`"+selector+"`"+`).length`, &nodes)); err != nil {
		return err
	}
	if nodes == 0 {
		return nil
	}
	return chromedp.Run(ctx,
		chromedp.Click(selector, chromedp.ByQuery),
	)
}
