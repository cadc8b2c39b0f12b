package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// Tab is one page target inside a Session. Each in-flight fetch owns its own
// Tab, so navigations, document captures, and response metadata never bleed
// between concurrent pages. Cookies live at the session level and are shared.
type Tab struct {
	session *Session
	ctx     context.Context
	meta    responseMeta
}

var _ crawler.Browser = (*Tab)(nil)

// Navigate loads the URL, waits for the document body, and returns the
// response status of the main document.
func (t *Tab) Navigate(ctx context.Context, url string, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = t.session.cfg.NavigationTimeout
	}
	navCtx, cancel := t.boundedCtx(ctx, timeout)
	defer cancel()

	t.meta.reset()
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, fmt.Errorf("%w: navigate %s after %s", crawler.ErrNavigationTimeout, url, timeout)
		}
		return 0, fmt.Errorf("navigate %s: %w", url, err)
	}

	t.session.recordPage()

	status := t.meta.status()
	if status == 0 {
		status = http.StatusOK
	}
	return status, nil
}

// CurrentURL reports the tab location after any redirects or login hops.
func (t *Tab) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := t.boundedCtx(ctx, t.session.cfg.NavigationTimeout)
	defer cancel()
	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

// PageContent returns the fully rendered document.
func (t *Tab) PageContent(ctx context.Context) (string, error) {
	runCtx, cancel := t.boundedCtx(ctx, t.session.cfg.NavigationTimeout)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture document: %w", err)
	}
	return html, nil
}

// Evaluate runs a JavaScript expression in the page.
func (t *Tab) Evaluate(ctx context.Context, expr string, out any) error {
	runCtx, cancel := t.boundedCtx(ctx, t.session.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("evaluate in page: %w", err)
	}
	return nil
}

// Type enters text into the element matching the selector. The caller bounds
// the wait through ctx.
func (t *Tab) Type(ctx context.Context, selector, text string) error {
	runCtx, cancel := t.joinCtx(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

// Click clicks the element matching the selector.
func (t *Tab) Click(ctx context.Context, selector string) error {
	runCtx, cancel := t.joinCtx(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// WaitVisible blocks until the selector is visible or the timeout elapses.
func (t *Tab) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := t.boundedCtx(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: selector %q not visible after %s", crawler.ErrNavigationTimeout, selector, timeout)
		}
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// WaitLocationChange polls the tab location until it differs from awayFrom,
// returning the new URL. Times out with ErrNavigationTimeout; caller
// cancellation is surfaced as the context error so interrupted pages stay
// distinguishable from genuine timeouts.
func (t *Tab) WaitLocationChange(ctx context.Context, awayFrom string, timeout time.Duration) (string, error) {
	waitCtx, cancel := t.boundedCtx(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return "", fmt.Errorf("wait for navigation: %w", err)
			}
			return "", fmt.Errorf("%w: still at %s after %s", crawler.ErrNavigationTimeout, awayFrom, timeout)
		case <-ticker.C:
			var location string
			if err := chromedp.Run(waitCtx, chromedp.Location(&location)); err != nil {
				continue
			}
			if location != "" && location != awayFrom {
				return location, nil
			}
		}
	}
}

// CookiesFor returns the session cookies applicable to the URL, for handing
// to the document downloader.
func (t *Tab) CookiesFor(ctx context.Context, rawURL string) ([]*http.Cookie, error) {
	runCtx, cancel := t.boundedCtx(ctx, t.session.cfg.NavigationTimeout)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	target, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	return matchCookies(cookies, target), nil
}

// boundedCtx derives a chromedp context bounded by timeout and linked to the
// caller's cancellation.
func (t *Tab) boundedCtx(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	stop := forwardCancel(parent, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (t *Tab) joinCtx(parent context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(t.ctx)
	stop := forwardCancel(parent, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
