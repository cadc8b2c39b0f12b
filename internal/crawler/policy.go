package crawler

import (
	"net/url"
	"path"
	"strings"
)

// DefaultDownloadExtensions are the document types fetched as attachments
// instead of being crawled.
var DefaultDownloadExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx", ".zip", ".rar", ".csv",
}

// DefaultExcludedExtensions are media types never worth capturing.
var DefaultExcludedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
	".mp3", ".mp4", ".avi", ".mov", ".wmv",
	".css", ".js", ".woff", ".woff2", ".ttf",
}

// DefaultExcludedPathParts drop links that would end the authenticated session.
var DefaultExcludedPathParts = []string{"logout", "signout", "sign-out", "log-out"}

// Policy decides scope membership, exclusion, and downloadable-vs-crawlable
// classification for canonical URLs. Scope is purely lexical: a URL is in
// scope iff its string form starts with one of the configured root URLs.
type Policy struct {
	roots             []string
	downloadExts      map[string]struct{}
	excludedExts      map[string]struct{}
	excludedPathParts []string
}

// NewPolicy builds a Policy from root URL prefixes. Empty extension or path
// lists fall back to the package defaults.
func NewPolicy(rootURLs, downloadExts, excludedExts, excludedPathParts []string) *Policy {
	if len(downloadExts) == 0 {
		downloadExts = DefaultDownloadExtensions
	}
	if len(excludedExts) == 0 {
		excludedExts = DefaultExcludedExtensions
	}
	if len(excludedPathParts) == 0 {
		excludedPathParts = DefaultExcludedPathParts
	}
	return &Policy{
		roots:             append([]string(nil), rootURLs...),
		downloadExts:      toExtSet(downloadExts),
		excludedExts:      toExtSet(excludedExts),
		excludedPathParts: excludedPathParts,
	}
}

// InScope reports whether the canonical URL falls under one of the configured
// root prefixes. No host-alias resolution or path traversal is performed.
func (p *Policy) InScope(canonical string) bool {
	for _, root := range p.roots {
		if strings.HasPrefix(canonical, root) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether an otherwise in-scope URL must be skipped:
// non-HTTP schemes (mailto:, tel:), media extensions, and logout paths.
func (p *Policy) IsExcluded(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return true
	}
	if _, found := p.excludedExts[pathExt(u)]; found {
		return true
	}
	lowerPath := strings.ToLower(u.Path)
	for _, part := range p.excludedPathParts {
		if strings.Contains(lowerPath, part) {
			return true
		}
	}
	return false
}

// IsDownloadable reports whether the URL points at a document to save as an
// attachment. Downloadable URLs are never enqueued as crawl targets.
func (p *Policy) IsDownloadable(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	_, found := p.downloadExts[pathExt(u)]
	return found
}

func pathExt(u *url.URL) string {
	return strings.ToLower(path.Ext(u.Path))
}

func toExtSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
