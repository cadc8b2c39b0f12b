// Package fetch implements the per-page pipeline: navigate, authenticate when
// challenged, capture the rendered document, extract and partition outbound
// links, download attachments, and persist the page artifact.
package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
	"github.com/libsearch/sitecrawler/internal/metrics"
)

// Authenticator recognizes login surfaces and drives the tab that hit one
// back to an authenticated state.
type Authenticator interface {
	IsLoginURL(rawURL string) bool
	Authenticate(ctx context.Context, b crawler.Browser, requestedURL string) error
}

// Config controls the per-page pipeline.
type Config struct {
	MaxDepth          int
	NavigationTimeout time.Duration
}

// Fetcher implements crawler.PageFetcher over a browsing session. Every
// Fetch runs in its own tab, so the pool can keep several pages in flight
// without their navigations interleaving.
type Fetcher struct {
	cfg        Config
	policy     *crawler.Policy
	tabs       crawler.TabOpener
	auth       Authenticator
	downloader crawler.Downloader
	sink       *Sink
	hasher     crawler.Hasher
	clock      crawler.Clock
	logger     *zap.Logger
}

var _ crawler.PageFetcher = (*Fetcher)(nil)

// New builds a Fetcher.
func New(
	cfg Config,
	policy *crawler.Policy,
	tabs crawler.TabOpener,
	authenticator Authenticator,
	downloader crawler.Downloader,
	sink *Sink,
	hasher crawler.Hasher,
	clock crawler.Clock,
	logger *zap.Logger,
) *Fetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	return &Fetcher{
		cfg:        cfg,
		policy:     policy,
		tabs:       tabs,
		auth:       authenticator,
		downloader: downloader,
		sink:       sink,
		hasher:     hasher,
		clock:      clock,
		logger:     logger,
	}
}

// Fetch processes one frontier entry. Per-page errors are returned in the
// result, never as a process failure: the pool records them and serves the
// next entry.
func (f *Fetcher) Fetch(ctx context.Context, entry crawler.FrontierEntry) crawler.FetchResult {
	b, closeTab, err := f.tabs.OpenTab(ctx)
	if err != nil {
		return failure(entry, fmt.Errorf("open tab: %w", err))
	}
	defer closeTab()

	status, err := b.Navigate(ctx, entry.URL, f.cfg.NavigationTimeout)
	if err != nil {
		return failure(entry, err)
	}
	if status >= 400 {
		return failure(entry, &crawler.HTTPError{Status: status})
	}

	if err := f.authenticateIfChallenged(ctx, b, entry.URL); err != nil {
		return failure(entry, err)
	}

	html, err := b.PageContent(ctx)
	if err != nil {
		return failure(entry, fmt.Errorf("capture page: %w", err))
	}

	pageURL := entry.URL
	if current, err := b.CurrentURL(ctx); err == nil && current != "" {
		pageURL = current
	}
	outbound, err := ExtractLinks(html, pageURL)
	if err != nil {
		return failure(entry, fmt.Errorf("extract links: %w", err))
	}

	downloadable, crawlable := f.partition(outbound)
	artifactDir := f.sink.ArtifactDir(entry.URL)
	downloaded := f.downloadAll(ctx, b, entry.URL, downloadable, artifactDir)

	hash, err := f.hasher.Hash([]byte(html))
	if err != nil {
		return failure(entry, fmt.Errorf("hash content: %w", err))
	}

	meta := crawler.PageMetadata{
		URL:                 entry.URL,
		CrawledAt:           f.clock.Now(),
		Title:               ExtractTitle(html),
		Depth:               entry.Depth,
		Referrer:            entry.Referrer,
		ContentHash:         hash,
		DownloadedDocuments: downloaded,
		OutboundLinks:       outbound,
		HTTPStatus:          status,
	}
	if _, err := f.sink.Persist(meta, html); err != nil {
		return failure(entry, fmt.Errorf("persist artifact: %w", err))
	}

	result := crawler.FetchResult{Entry: entry, Meta: &meta}
	if entry.Depth+1 <= f.cfg.MaxDepth {
		result.Links = crawlable
	} else if len(crawlable) > 0 {
		f.logger.Debug("depth cap reached, dropping discovered links",
			zap.String("url", entry.URL),
			zap.Int("dropped", len(crawlable)),
		)
	}
	return result
}

func (f *Fetcher) authenticateIfChallenged(ctx context.Context, b crawler.Browser, requestedURL string) error {
	if f.auth == nil {
		return nil
	}
	current, err := b.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if !f.auth.IsLoginURL(current) {
		return nil
	}
	f.logger.Info("login surface encountered",
		zap.String("requested", requestedURL),
		zap.String("landed", current),
	)
	return f.auth.Authenticate(ctx, b, requestedURL)
}

// partition splits outbound links into downloadables and crawlables.
// Downloadability is checked before scope: a document linked from an in-scope
// page is downloaded even when its own URL is out of scope.
func (f *Fetcher) partition(outbound []crawler.OutboundLink) (downloadable, crawlable []crawler.OutboundLink) {
	for _, link := range outbound {
		if f.policy.IsDownloadable(link.URL) {
			downloadable = append(downloadable, link)
			continue
		}
		if !f.policy.InScope(link.URL) || f.policy.IsExcluded(link.URL) {
			continue
		}
		crawlable = append(crawlable, link)
	}
	return downloadable, crawlable
}

// downloadAll fetches each attachment into the page's artifact directory.
// Per-file failures are logged and do not abort the page.
func (f *Fetcher) downloadAll(ctx context.Context, b crawler.Browser, pageURL string, links []crawler.OutboundLink, dir string) []crawler.DownloadedDocument {
	downloaded := make([]crawler.DownloadedDocument, 0, len(links))
	for _, link := range links {
		cookies, err := b.CookiesFor(ctx, link.URL)
		if err != nil {
			f.logger.Warn("cookie lookup failed for attachment",
				zap.String("url", link.URL), zap.Error(err))
			cookies = nil
		}
		name, err := f.downloader.Download(ctx, link.URL, cookies, dir)
		if err != nil {
			metrics.DocumentDownloaded("failed")
			f.logger.Warn("attachment download failed",
				zap.String("page", pageURL),
				zap.String("url", link.URL),
				zap.Error(err),
			)
			continue
		}
		metrics.DocumentDownloaded("ok")
		downloaded = append(downloaded, crawler.DownloadedDocument{
			FileName:    name,
			OriginalURL: link.URL,
			LinkText:    link.Text,
		})
	}
	return downloaded
}

func failure(entry crawler.FrontierEntry, err error) crawler.FetchResult {
	return crawler.FetchResult{Entry: entry, Err: err}
}
