// Package manifest diffs two crawl snapshots by per-page content hash and
// emits the classified reindex manifest consumed by the downstream indexing
// pipeline.
package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// Status classifies one URL across two snapshots.
type Status string

// Manifest entry statuses.
const (
	StatusAdded     Status = "added"
	StatusChanged   Status = "changed"
	StatusUnchanged Status = "unchanged"
	StatusRemoved   Status = "removed"
)

// ReasonNoHash marks pages where either snapshot lacks a content hash
// (legacy data): change cannot be ruled out, so the page is reindexed.
const ReasonNoHash = "no_hash_available"

// Entry is one classified page.
type Entry struct {
	URL        string `json:"url"`
	Status     Status `json:"status"`
	Reindex    bool   `json:"reindex"`
	FolderPath string `json:"folderPath,omitempty"`
	Title      string `json:"title,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Summary counts entries per status.
type Summary struct {
	Added     int `json:"added"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Manifest is the immutable diff of two snapshots. Its reindex=true entries
// are the indexing pipeline's only required work.
type Manifest struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Summary     Summary   `json:"summary"`
	Pages       []Entry   `json:"pages"`
}

// PageRecord pairs a page's metadata with its artifact directory, relative to
// the snapshot root.
type PageRecord struct {
	Meta       crawler.PageMetadata
	FolderPath string
}

// Generator loads snapshot metadata trees and computes diffs.
type Generator struct {
	clock  crawler.Clock
	logger *zap.Logger
}

// NewGenerator builds a Generator.
func NewGenerator(clock crawler.Clock, logger *zap.Logger) *Generator {
	return &Generator{clock: clock, logger: logger}
}

// LoadTree walks a snapshot directory collecting every metadata.json record,
// keyed by canonical URL. A missing root yields an empty tree (empty corpus).
func (g *Generator) LoadTree(root string) (map[string]PageRecord, error) {
	tree := make(map[string]PageRecord)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return tree, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "metadata.json" {
			return nil
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var meta crawler.PageMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			g.logger.Warn("skipping unparseable metadata record",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		if meta.URL == "" {
			g.logger.Warn("skipping metadata record without url", zap.String("path", path))
			return nil
		}
		folder, relErr := filepath.Rel(root, filepath.Dir(path))
		if relErr != nil {
			folder = filepath.Dir(path)
		}
		tree[meta.URL] = PageRecord{Meta: meta, FolderPath: folder}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return tree, nil
}

// WriteFile persists a manifest atomically.
func WriteFile(path string, m Manifest) error {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
