package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/libsearch/sitecrawler/internal/clock/system"
	"github.com/libsearch/sitecrawler/internal/manifest"
	"github.com/libsearch/sitecrawler/internal/publish"
)

// newPublishCmd creates the 'publish' subcommand: promote a finished run
// directory to live, for runs whose automatic publication was skipped.
func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [libraryName]",
		Short: "Promote a completed crawl directory to the live corpus",
		RunE:  runPublishCommand,
	}
}

func runPublishCommand(_ *cobra.Command, args []string) error {
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
	publisher := publish.New(publish.Config{
		MinArtifactCount: cfg.Publish.MinArtifactCount,
		StateFileName:    stateFileName,
	}, gen, logger)

	if err := publisher.Promote(baseDir); err != nil {
		return fmt.Errorf("publish corpus: %w", err)
	}
	return nil
}
