// Package publish implements the corpus publication contract: resuming or
// discarding a leftover run directory, the post-run sanity check, manifest
// generation against the live corpus, and the blue/green directory swap that
// makes a finished crawl live with no partially-updated state observable.
package publish

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
	"github.com/libsearch/sitecrawler/internal/manifest"
	"github.com/libsearch/sitecrawler/internal/state"
)

// Directory names under a library's base dir.
const (
	NewDirName    = "new"
	LiveDirName   = "live"
	BackupDirName = "backup"

	// ManifestFileName is written next to the corpus directories.
	ManifestFileName = "reindex-manifest.json"
)

// Config controls publication safety checks.
type Config struct {
	// MinArtifactCount refuses promotion when a completed run produced fewer
	// files, preserving the existing live corpus.
	MinArtifactCount int
	// StateFileName is the crawl snapshot inside the run directory. Its
	// presence marks a resumable run and it never counts as an artifact.
	StateFileName string
}

// Publisher performs run-directory preparation and promotion for one library.
type Publisher struct {
	cfg    Config
	gen    *manifest.Generator
	logger *zap.Logger
}

// New builds a Publisher.
func New(cfg Config, gen *manifest.Generator, logger *zap.Logger) *Publisher {
	return &Publisher{cfg: cfg, gen: gen, logger: logger}
}

// NewDir returns the in-progress run directory for a library base dir.
func NewDir(baseDir string) string { return filepath.Join(baseDir, NewDirName) }

// LiveDir returns the published corpus directory.
func LiveDir(baseDir string) string { return filepath.Join(baseDir, LiveDirName) }

// PrepareRunDir returns the run directory for a fresh crawl. When a prior
// failed run left a "new" directory holding a resumable state file, the run
// resumes into it; otherwise the leftover is discarded and a clean directory
// is created. The second return reports whether the run is a resume.
func (p *Publisher) PrepareRunDir(baseDir string) (string, bool, error) {
	runDir := NewDir(baseDir)
	if _, err := os.Stat(runDir); err == nil {
		if state.Exists(filepath.Join(runDir, p.cfg.StateFileName)) {
			p.logger.Info("resuming into leftover run directory", zap.String("dir", runDir))
			return runDir, true, nil
		}
		p.logger.Info("discarding leftover run directory without state", zap.String("dir", runDir))
		if err := os.RemoveAll(runDir); err != nil {
			return "", false, fmt.Errorf("discard stale run dir: %w", err)
		}
	}
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return "", false, fmt.Errorf("create run dir: %w", err)
	}
	return runDir, false, nil
}

// Promote makes the finished run directory live: sanity-check the artifact
// count, generate the reindex manifest against the current live corpus (or an
// empty one), then swap directories with a three-step rename. Any failure
// before the swap leaves the previous live corpus untouched.
func (p *Publisher) Promote(baseDir string) error {
	runDir := NewDir(baseDir)
	liveDir := LiveDir(baseDir)
	backupDir := filepath.Join(baseDir, BackupDirName)

	count, err := countFiles(runDir, p.cfg.StateFileName)
	if err != nil {
		return fmt.Errorf("inspect run dir: %w", err)
	}
	if count < p.cfg.MinArtifactCount {
		return fmt.Errorf("%w: %d files, need at least %d",
			crawler.ErrScrapeTooSmall, count, p.cfg.MinArtifactCount)
	}

	oldTree, err := p.gen.LoadTree(liveDir)
	if err != nil {
		return fmt.Errorf("load live tree: %w", err)
	}
	newTree, err := p.gen.LoadTree(runDir)
	if err != nil {
		return fmt.Errorf("load new tree: %w", err)
	}
	diff := p.gen.Diff(oldTree, newTree)
	manifestPath := filepath.Join(baseDir, ManifestFileName)
	if err := manifest.WriteFile(manifestPath, diff); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	p.logger.Info("reindex manifest generated",
		zap.String("path", manifestPath),
		zap.Int("added", diff.Summary.Added),
		zap.Int("changed", diff.Summary.Changed),
		zap.Int("unchanged", diff.Summary.Unchanged),
		zap.Int("removed", diff.Summary.Removed),
	)

	// Retire old live, promote new, drop the backup.
	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("clear stale backup: %w", err)
	}
	liveExisted := true
	if _, err := os.Stat(liveDir); os.IsNotExist(err) {
		liveExisted = false
	}
	if liveExisted {
		if err := os.Rename(liveDir, backupDir); err != nil {
			return fmt.Errorf("retire live corpus: %w", err)
		}
	}
	if err := os.Rename(runDir, liveDir); err != nil {
		if liveExisted {
			if rbErr := os.Rename(backupDir, liveDir); rbErr != nil {
				return fmt.Errorf("promote run dir: %v (rollback also failed: %w)", err, rbErr)
			}
		}
		return fmt.Errorf("promote run dir: %w", err)
	}
	if err := os.RemoveAll(backupDir); err != nil {
		p.logger.Warn("could not delete backup corpus", zap.String("dir", backupDir), zap.Error(err))
	}

	p.logger.Info("corpus published", zap.String("live", liveDir), zap.Int("files", count))
	return nil
}

func countFiles(root, skipName string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() != skipName {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
