// Package download fetches discovered document links (pdf, docx, xlsx, ...)
// directly over HTTP, outside the rendering engine, carrying the
// authenticated session's cookies for the target host.
package download

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// Config controls downloader behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Downloader implements crawler.Downloader using a colly collector per
// request. colly delivers the body in one piece (bounded by MaxBodySize), and
// the file lands via a .part write plus rename, so the target name only ever
// holds a complete document.
type Downloader struct {
	cfg    Config
	logger *zap.Logger
}

var _ crawler.Downloader = (*Downloader)(nil)

// New builds a Downloader.
func New(cfg Config, logger *zap.Logger) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Downloader{cfg: cfg, logger: logger}
}

// Download fetches the URL and writes the body into targetDir under a name
// derived from the final path segment. Non-200 status or timeout fails with
// ErrDownloadFailed; downloads are never retried within the same page.
func (d *Downloader) Download(ctx context.Context, rawURL string, cookies []*http.Cookie, targetDir string) (string, error) {
	collector := colly.NewCollector(colly.Async(false))
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(d.cfg.Timeout)
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}
	if d.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = d.cfg.MaxBodyBytes
	}
	if len(cookies) > 0 {
		if err := collector.SetCookies(rawURL, cookies); err != nil {
			return "", fmt.Errorf("%w: set cookies: %v", crawler.ErrDownloadFailed, err)
		}
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := d.visit(ctx, collector, rawURL); err != nil {
		return "", err
	}
	if fetchErr != nil {
		return "", fmt.Errorf("%w: %s: %v", crawler.ErrDownloadFailed, rawURL, fetchErr)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: %s: status %d", crawler.ErrDownloadFailed, rawURL, status)
	}

	fileName := SafeFileName(rawURL)
	target := filepath.Join(targetDir, fileName)
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create dir: %v", crawler.ErrDownloadFailed, err)
	}
	part := target + ".part"
	if err := os.WriteFile(part, body, 0o600); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("%w: write %s: %v", crawler.ErrDownloadFailed, part, err)
	}
	if err := os.Rename(part, target); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("%w: finalize %s: %v", crawler.ErrDownloadFailed, target, err)
	}

	d.logger.Debug("document downloaded",
		zap.String("url", rawURL),
		zap.String("file", fileName),
		zap.Int("bytes", len(body)),
	)
	return fileName, nil
}

func (d *Downloader) visit(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: canceled: %v", crawler.ErrDownloadFailed, rawURL, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %s: %v", crawler.ErrDownloadFailed, rawURL, err)
		}
		return nil
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeFileName derives a filesystem-safe name from the URL's final path
// segment.
func SafeFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "download"
	}
	base := path.Base(u.EscapedPath())
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "download"
	}
	return base
}
