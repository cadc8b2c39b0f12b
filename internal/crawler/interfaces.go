package crawler

import (
	"context"
	"net/http"
	"time"
)

// TabOpener hands out isolated page targets within the live browsing
// session. Tabs share the session's cookie jar, so authentication performed
// in one tab carries over to the rest, but each tab renders independently:
// concurrent page fetches never observe each other's navigations.
type TabOpener interface {
	// OpenTab returns a Browser bound to a fresh tab and a close func the
	// caller must invoke when the page is done.
	OpenTab(ctx context.Context) (Browser, func(), error)
}

// Browser is one remote-controllable page target consumed by the page
// fetcher and the authentication flow. Implementations drive a real rendering
// engine; tests substitute scripted fakes. Blocking calls respect the passed
// context, and callers bound each step with context.WithTimeout.
type Browser interface {
	// Navigate loads the URL and returns the document response status.
	Navigate(ctx context.Context, url string, timeout time.Duration) (int, error)
	// CurrentURL reports the location after any redirects or login hops.
	CurrentURL(ctx context.Context) (string, error)
	// PageContent returns the fully rendered document.
	PageContent(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression in the page and unmarshals the result.
	Evaluate(ctx context.Context, expr string, out any) error
	// Type enters text into the element matching the selector.
	Type(ctx context.Context, selector, text string) error
	// Click clicks the element matching the selector.
	Click(ctx context.Context, selector string) error
	// WaitVisible blocks until the selector is visible or the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// WaitLocationChange blocks until the location differs from awayFrom and
	// returns the new URL.
	WaitLocationChange(ctx context.Context, awayFrom string, timeout time.Duration) (string, error)
	// CookiesFor returns the session cookies applicable to the URL.
	CookiesFor(ctx context.Context, url string) ([]*http.Cookie, error)
}

// Downloader streams a discovered document to disk using the authenticated
// session's cookies, outside the rendering engine.
type Downloader interface {
	Download(ctx context.Context, rawURL string, cookies []*http.Cookie, targetDir string) (string, error)
}

// PageFetcher fetches one frontier entry end to end: navigate, authenticate
// when challenged, extract, download attachments, and persist the artifact.
type PageFetcher interface {
	Fetch(ctx context.Context, entry FrontierEntry) FetchResult
}

// Hasher computes content fingerprints for change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
