package crawler

import "time"

// FrontierEntry is one discovered-but-not-yet-fetched URL. Entries are created
// when a link is found under scope, consumed exactly once when a worker
// dequeues them, and never mutated in place.
type FrontierEntry struct {
	URL          string    `json:"url"`
	Referrer     string    `json:"referrer,omitempty"`
	DiscoveredAt time.Time `json:"addedAt"`
	Depth        int       `json:"depth"`
}

// FailureRecord captures the most recent failed attempt for a URL. A URL can
// fail, be re-discovered via a different referrer, and fail again; the record
// reflects only the latest attempt.
type FailureRecord struct {
	Kind      string    `json:"errorKind,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer,omitempty"`
}

// DownloadedDocument describes one attachment saved alongside a page.
type DownloadedDocument struct {
	FileName    string `json:"fileName"`
	OriginalURL string `json:"originalUrl"`
	LinkText    string `json:"linkText,omitempty"`
}

// OutboundLink is an anchor target extracted from a rendered page.
type OutboundLink struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// PageMetadata is the durable per-page record written next to the captured
// document. ContentHash is the fingerprint consumed by the reindex manifest
// generator; an empty hash on legacy data means "unknown, assume changed".
type PageMetadata struct {
	URL                 string               `json:"url"`
	CrawledAt           time.Time            `json:"crawledAt"`
	Title               string               `json:"title,omitempty"`
	Depth               int                  `json:"depth"`
	Referrer            string               `json:"referrer,omitempty"`
	ContentHash         string               `json:"contentHash,omitempty"`
	DownloadedDocuments []DownloadedDocument `json:"downloadedDocuments"`
	OutboundLinks       []OutboundLink       `json:"outboundLinks"`
	HTTPStatus          int                  `json:"httpStatus"`
}

// FetchResult is the outcome of fetching a single frontier entry. Exactly one
// of Meta or Err is set. Links holds the canonical, in-scope, non-excluded
// crawlable URLs discovered on the page, ready for the frontier at depth+1.
type FetchResult struct {
	Entry FrontierEntry
	Meta  *PageMetadata
	Links []OutboundLink
	Err   error
}

// RunSummary is the machine-readable end-of-run record.
type RunSummary struct {
	RunID             string    `json:"runId"`
	TotalPagesVisited int       `json:"totalPagesVisited"`
	FailedPages       int       `json:"failedPages"`
	RemainingQueue    int       `json:"remainingQueue"`
	CrawlEndTime      time.Time `json:"crawlEndTime"`
	RootURLs          []string  `json:"rootUrls"`
}
