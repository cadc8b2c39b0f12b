// Package browser drives the remote browsing session host process through
// chromedp. A Session is one live headless browser; the Manager owns its
// lifecycle and relaunches it on disconnect or when the page/time budget for
// the current process is spent. Page work happens in per-fetch tabs so
// concurrent fetches never share a rendering target.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// Config controls session behavior and the restart budget.
type Config struct {
	UserAgent          string
	Headless           bool
	NavigationTimeout  time.Duration
	MaxPagesPerSession int
	MaxSessionAge      time.Duration
}

// Session wraps a single chromedp browser process. Tabs opened from it share
// the process's cookie jar, so one authentication covers the whole session.
type Session struct {
	cfg             Config
	logger          *zap.Logger
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	startedAt       time.Time
	pagesMu         sync.Mutex
	pagesServed     int
}

// Launch starts a browser host process and warms it up.
func Launch(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}

	return &Session{
		cfg:             cfg,
		logger:          logger,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		startedAt:       time.Now(),
	}, nil
}

// OpenTab creates a fresh tab with its own response listener. The returned
// close func disposes of the tab's target; the session itself stays up.
func (s *Session) OpenTab(ctx context.Context) (crawler.Browser, func(), error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	tab := &Tab{session: s, ctx: tabCtx}
	chromedp.ListenTarget(tabCtx, tab.meta.captureEvent)

	runCtx, cancel := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
	stop := forwardCancel(ctx, cancel)
	err := chromedp.Run(runCtx, network.Enable())
	stop()
	cancel()
	if err != nil {
		tabCancel()
		return nil, nil, fmt.Errorf("open tab: %w", err)
	}
	return tab, tabCancel, nil
}

// Close tears down the browser and its host process.
func (s *Session) Close() {
	s.browserCancel()
	s.allocatorCancel()
}

// Disconnected reports whether the host process is gone.
func (s *Session) Disconnected() bool {
	return s.browserCtx.Err() != nil
}

// PagesServed returns how many navigations this host process has handled
// across all its tabs.
func (s *Session) PagesServed() int {
	s.pagesMu.Lock()
	defer s.pagesMu.Unlock()
	return s.pagesServed
}

// Age returns the wall-clock age of the host process.
func (s *Session) Age() time.Duration {
	return time.Since(s.startedAt)
}

func (s *Session) recordPage() {
	s.pagesMu.Lock()
	s.pagesServed++
	s.pagesMu.Unlock()
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
