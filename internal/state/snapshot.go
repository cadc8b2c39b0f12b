package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// frontierRecord is the on-disk shape of a frontier entry, stored next to its
// URL in a [url, record] pair.
type frontierRecord struct {
	Referrer string    `json:"referrer,omitempty"`
	AddedAt  time.Time `json:"addedAt"`
	Depth    int       `json:"depth"`
}

type toVisitPair struct {
	URL    string
	Record frontierRecord
}

func (p toVisitPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.URL, p.Record})
}

func (p *toVisitPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("toVisit pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.URL); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Record)
}

type failedPair struct {
	URL    string
	Record crawler.FailureRecord
}

func (p failedPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.URL, p.Record})
}

func (p *failedPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("failed pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.URL); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Record)
}

type snapshotFile struct {
	Visited     []string      `json:"visited"`
	ToVisit     []toVisitPair `json:"toVisit"`
	Failed      []failedPair  `json:"failed"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// Snapshot writes the complete state to a temp file and renames it into
// place, so the on-disk file is always a full valid prior state even if the
// process dies mid-write.
func (s *Store) Snapshot() error {
	file := snapshotFile{
		Visited:     make([]string, 0, len(s.visited)),
		ToVisit:     make([]toVisitPair, 0, len(s.queued)),
		Failed:      make([]failedPair, 0, len(s.failed)),
		LastUpdated: s.clock.Now(),
	}
	for url := range s.visited {
		file.Visited = append(file.Visited, url)
	}
	for _, entry := range s.frontierEntries() {
		file.ToVisit = append(file.ToVisit, toVisitPair{
			URL: entry.URL,
			Record: frontierRecord{
				Referrer: entry.Referrer,
				AddedAt:  entry.DiscoveredAt,
				Depth:    entry.Depth,
			},
		})
	}
	for url, rec := range s.failed {
		file.Failed = append(file.Failed, failedPair{URL: url, Record: rec})
	}

	payload, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", crawler.ErrStateIO, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("%w: create state dir: %v", crawler.ErrStateIO, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("%w: write snapshot: %v", crawler.ErrStateIO, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: replace snapshot: %v", crawler.ErrStateIO, err)
	}
	return nil
}

// Load restores the state from the snapshot file. A missing file yields an
// empty state (fresh run); a present but unreadable file is fatal, since
// silently resetting would lose a partially completed crawl.
func (s *Store) Load() error {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", crawler.ErrStateIO, s.path, err)
	}

	var file snapshotFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return fmt.Errorf("%w: parse %s: %v", crawler.ErrStateIO, s.path, err)
	}

	s.visited = make(map[string]struct{}, len(file.Visited))
	for _, url := range file.Visited {
		s.visited[url] = struct{}{}
	}
	s.queued = make(map[string]struct{}, len(file.ToVisit))
	s.order = make([]crawler.FrontierEntry, 0, len(file.ToVisit))
	s.head = 0
	for _, pair := range file.ToVisit {
		if _, seen := s.visited[pair.URL]; seen {
			continue
		}
		if _, waiting := s.queued[pair.URL]; waiting {
			continue
		}
		s.order = append(s.order, crawler.FrontierEntry{
			URL:          pair.URL,
			Referrer:     pair.Record.Referrer,
			DiscoveredAt: pair.Record.AddedAt,
			Depth:        pair.Record.Depth,
		})
		s.queued[pair.URL] = struct{}{}
	}
	s.failed = make(map[string]crawler.FailureRecord, len(file.Failed))
	for _, pair := range file.Failed {
		s.failed[pair.URL] = pair.Record
	}

	s.logger.Info("crawl state restored",
		zap.String("path", s.path),
		zap.Int("visited", len(s.visited)),
		zap.Int("toVisit", len(s.queued)),
		zap.Int("failed", len(s.failed)),
	)
	return nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
