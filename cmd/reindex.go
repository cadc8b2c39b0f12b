package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/clock/system"
	"github.com/libsearch/sitecrawler/internal/manifest"
	"github.com/libsearch/sitecrawler/internal/publish"
)

// newReindexCmd creates the 'reindex' subcommand: regenerate the reindex
// manifest by comparing the finished run directory against the live corpus,
// without swapping anything.
func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [libraryName]",
		Short: "Generate the reindex manifest without publishing",
		RunE:  runReindexCommand,
	}
}

func runReindexCommand(_ *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	name := cfg.Library.Name
	if len(args) > 0 {
		name = args[0]
	}
	baseDir := filepath.Join(cfg.Library.DataDir, name)

	gen := manifest.NewGenerator(system.New(), logger)
	oldTree, err := gen.LoadTree(publish.LiveDir(baseDir))
	if err != nil {
		return fmt.Errorf("load live tree: %w", err)
	}
	newTree, err := gen.LoadTree(publish.NewDir(baseDir))
	if err != nil {
		return fmt.Errorf("load new tree: %w", err)
	}

	diff := gen.Diff(oldTree, newTree)
	path := filepath.Join(baseDir, publish.ManifestFileName)
	if err := manifest.WriteFile(path, diff); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.Info("manifest written",
		zap.String("path", path),
		zap.Int("added", diff.Summary.Added),
		zap.Int("changed", diff.Summary.Changed),
		zap.Int("unchanged", diff.Summary.Unchanged),
		zap.Int("removed", diff.Summary.Removed),
	)
	return nil
}
