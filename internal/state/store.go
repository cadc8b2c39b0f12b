// Package state implements the durable crawl state store: the FIFO frontier,
// the visited set, and the failure log, persisted as a single snapshot file
// that is always complete and valid on disk.
package state

import (
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// Store holds the full crawl state for one run. It is not safe for concurrent
// use: all mutations go through the pool's single coordinating goroutine. A
// URL is in at most one of visited or frontier at any time; a failed URL stays
// eligible for re-discovery, and a later successful visit clears its record.
type Store struct {
	path    string
	clock   crawler.Clock
	logger  *zap.Logger
	visited map[string]struct{}
	queued  map[string]struct{}
	order   []crawler.FrontierEntry
	head    int
	failed  map[string]crawler.FailureRecord
}

// New creates an empty store that persists to path. Call Load to restore a
// previous snapshot.
func New(path string, clock crawler.Clock, logger *zap.Logger) *Store {
	return &Store{
		path:    path,
		clock:   clock,
		logger:  logger,
		visited: make(map[string]struct{}),
		queued:  make(map[string]struct{}),
		failed:  make(map[string]crawler.FailureRecord),
	}
}

// Enqueue appends a frontier entry unless the URL is already visited or
// queued. Returns true when the entry was added. Discovery order is preserved,
// which yields a breadth-first traversal since depth increases monotonically
// along any discovery path.
func (s *Store) Enqueue(url, referrer string, depth int) bool {
	if _, seen := s.visited[url]; seen {
		return false
	}
	if _, waiting := s.queued[url]; waiting {
		return false
	}
	s.order = append(s.order, crawler.FrontierEntry{
		URL:          url,
		Referrer:     referrer,
		DiscoveredAt: s.clock.Now(),
		Depth:        depth,
	})
	s.queued[url] = struct{}{}
	return true
}

// Dequeue removes and returns the oldest frontier entry.
func (s *Store) Dequeue() (crawler.FrontierEntry, bool) {
	for s.head < len(s.order) {
		entry := s.order[s.head]
		s.head++
		if s.head == len(s.order) {
			s.order = s.order[:0]
			s.head = 0
		}
		if _, still := s.queued[entry.URL]; !still {
			continue
		}
		delete(s.queued, entry.URL)
		return entry, true
	}
	return crawler.FrontierEntry{}, false
}

// MarkVisited records a terminal successful visit. Any queued duplicate is
// dropped and a stale failure record from an earlier attempt is cleared.
func (s *Store) MarkVisited(url string) {
	s.visited[url] = struct{}{}
	delete(s.queued, url)
	delete(s.failed, url)
}

// MarkFailed records the most recent failed attempt for a URL, overwriting
// any earlier record.
func (s *Store) MarkFailed(url string, cause error, referrer string) {
	s.failed[url] = crawler.FailureRecord{
		Kind:      crawler.FailureKind(cause),
		Error:     cause.Error(),
		Timestamp: s.clock.Now(),
		Referrer:  referrer,
	}
}

// IsVisited reports whether the URL completed successfully this run.
func (s *Store) IsVisited(url string) bool {
	_, seen := s.visited[url]
	return seen
}

// FailureFor returns the recorded failure for a URL, when present.
func (s *Store) FailureFor(url string) (crawler.FailureRecord, bool) {
	rec, found := s.failed[url]
	return rec, found
}

// Counts returns the visited, failed, and frontier sizes.
func (s *Store) Counts() (visited, failed, frontier int) {
	return len(s.visited), len(s.failed), len(s.queued)
}

// FrontierLen reports how many entries are waiting.
func (s *Store) FrontierLen() int {
	return len(s.queued)
}

func (s *Store) frontierEntries() []crawler.FrontierEntry {
	entries := make([]crawler.FrontierEntry, 0, len(s.queued))
	for _, entry := range s.order[s.head:] {
		if _, still := s.queued[entry.URL]; still {
			entries = append(entries, entry)
		}
	}
	return entries
}
