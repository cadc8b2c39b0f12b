package fetch

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

const (
	pageFileName = "page.html"
	metaFileName = "metadata.json"
)

var invalidSegmentChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Sink persists page artifacts: one directory per crawled URL, keyed from the
// URL's scope-relative path segments plus a short URL-hash suffix so that
// URLs differing only in query parameters get distinct directories. A recrawl
// overwrites the artifact in place.
type Sink struct {
	root     string
	rootURLs []string
	logger   *zap.Logger
}

// NewSink creates a sink rooted at dir.
func NewSink(root string, rootURLs []string, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact root %s: %w", root, err)
	}
	return &Sink{root: root, rootURLs: rootURLs, logger: logger}, nil
}

// ArtifactDir returns the deterministic directory for a canonical URL.
// Attachments for the page are downloaded into the same directory before the
// document and metadata are persisted.
func (s *Sink) ArtifactDir(canonical string) string {
	segments := s.relativeSegments(canonical)
	suffix := urlHash(canonical)[:8]
	last := len(segments) - 1
	segments[last] = segments[last] + "-" + suffix
	return filepath.Join(append([]string{s.root}, segments...)...)
}

// Persist writes the captured document and its metadata record into the
// page's artifact directory.
func (s *Sink) Persist(meta crawler.PageMetadata, html string) (string, error) {
	dir := s.ArtifactDir(meta.URL)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, pageFileName), []byte(html), 0o600); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), payload, 0o600); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	return dir, nil
}

func (s *Sink) relativeSegments(canonical string) []string {
	remainder := canonical
	for _, root := range s.rootURLs {
		if strings.HasPrefix(canonical, root) {
			remainder = strings.TrimPrefix(canonical, root)
			break
		}
	}
	if remainder == canonical {
		// Out-of-scope URL (should not normally reach the sink): fall back to
		// host plus path.
		if u, err := url.Parse(canonical); err == nil {
			remainder = u.Hostname() + "/" + strings.TrimPrefix(u.Path, "/")
		}
	}
	if idx := strings.IndexAny(remainder, "?#"); idx >= 0 {
		remainder = remainder[:idx]
	}

	var segments []string
	for _, segment := range strings.Split(remainder, "/") {
		segment = invalidSegmentChars.ReplaceAllString(segment, "_")
		segment = strings.Trim(segment, "._")
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) == 0 {
		segments = []string{"index"}
	}
	return segments
}

func urlHash(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
