package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/api"
	"github.com/libsearch/sitecrawler/internal/auth"
	"github.com/libsearch/sitecrawler/internal/browser"
	"github.com/libsearch/sitecrawler/internal/clock/system"
	"github.com/libsearch/sitecrawler/internal/config"
	"github.com/libsearch/sitecrawler/internal/crawler"
	"github.com/libsearch/sitecrawler/internal/download"
	"github.com/libsearch/sitecrawler/internal/fetch"
	"github.com/libsearch/sitecrawler/internal/hash/sha256"
	"github.com/libsearch/sitecrawler/internal/id/uuid"
	"github.com/libsearch/sitecrawler/internal/manifest"
	"github.com/libsearch/sitecrawler/internal/metrics"
	"github.com/libsearch/sitecrawler/internal/pool"
	"github.com/libsearch/sitecrawler/internal/publish"
	"github.com/libsearch/sitecrawler/internal/state"
)

const (
	stateFileName   = "crawl-state.json"
	summaryFileName = "run-summary.json"
)

// newCrawlCmd creates the 'crawl' subcommand. Positional arguments starting
// with "http" override the configured root URLs; the first remaining argument
// overrides the library name.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [libraryName] [rootUrls...]",
		Short: "Crawl a library site into a fresh corpus and publish it",
		Long: `Runs a full crawl: resumes a previously interrupted run when its state
file is present, otherwise starts clean. A crawl that drains its frontier is
published atomically; an interrupted one leaves its state behind for resume.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	libraryName, rootURLs := applyArgs(cfg, args)
	roots, err := normalizeRoots(rootURLs)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return errors.New("no root URLs configured")
	}

	metrics.Init()
	clk := system.New()
	gen := manifest.NewGenerator(clk, logger)
	publisher := publish.New(publish.Config{
		MinArtifactCount: cfg.Publish.MinArtifactCount,
		StateFileName:    stateFileName,
	}, gen, logger)

	baseDir := filepath.Join(cfg.Library.DataDir, libraryName)
	runDir, resumed, err := publisher.PrepareRunDir(baseDir)
	if err != nil {
		return err
	}

	store := state.New(filepath.Join(runDir, stateFileName), clk, logger)
	if resumed {
		if err := store.Load(); err != nil {
			return fmt.Errorf("restore crawl state: %w", err)
		}
	}
	for _, root := range roots {
		store.Enqueue(root, "", 0)
	}

	policy := crawler.NewPolicy(
		roots,
		cfg.Crawler.DownloadExts,
		cfg.Crawler.ExcludedExts,
		cfg.Crawler.ExcludedPathParts,
	)

	manager := browser.NewManager(browser.Config{
		UserAgent:          cfg.Browser.UserAgent,
		Headless:           cfg.Browser.Headless,
		NavigationTimeout:  cfg.Browser.NavTimeout,
		MaxPagesPerSession: cfg.Browser.MaxPagesPerSession,
		MaxSessionAge:      cfg.Browser.MaxSessionAge,
	}, logger)
	defer manager.Close()

	flow := auth.NewFlow(authConfig(cfg.Auth), logger)
	downloader := download.New(download.Config{
		UserAgent:    cfg.Browser.UserAgent,
		Timeout:      cfg.Download.Timeout,
		MaxBodyBytes: cfg.Download.MaxBodyBytes,
	}, logger)

	sink, err := fetch.NewSink(runDir, roots, logger)
	if err != nil {
		return fmt.Errorf("init artifact sink: %w", err)
	}

	fetcher := fetch.New(
		fetch.Config{
			MaxDepth:          cfg.Crawler.MaxDepth,
			NavigationTimeout: cfg.Browser.NavTimeout,
		},
		policy,
		manager,
		flow,
		downloader,
		sink,
		sha256.New(),
		clk,
		logger,
	)

	runID, err := uuid.New().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	crawlPool := pool.New(pool.Config{
		Width:    cfg.Crawler.Concurrency,
		MaxPages: cfg.Crawler.MaxPages,
		RunID:    runID,
		RootURLs: roots,
	}, store, fetcher, manager, clk, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopServer := startStatusServer(cfg.Server, crawlPool, logger)
	defer stopServer()

	logger.Info("crawl starting",
		zap.String("library", libraryName),
		zap.String("runId", runID),
		zap.Strings("roots", roots),
		zap.Bool("resumed", resumed),
	)

	summary, runErr := crawlPool.Run(ctx)
	if err := writeSummary(filepath.Join(runDir, summaryFileName), summary); err != nil {
		logger.Warn("could not write run summary", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("crawl run: %w", runErr)
	}

	if summary.RemainingQueue > 0 {
		logger.Info("crawl interrupted before the frontier drained; corpus not published",
			zap.Int("remaining", summary.RemainingQueue),
			zap.String("resumeDir", runDir),
		)
		return nil
	}

	if err := publisher.Promote(baseDir); err != nil {
		if errors.Is(err, crawler.ErrScrapeTooSmall) {
			logger.Error("refusing to publish undersized corpus", zap.Error(err))
		}
		return fmt.Errorf("publish corpus: %w", err)
	}

	logger.Info("crawl finished",
		zap.Int("visited", summary.TotalPagesVisited),
		zap.Int("failed", summary.FailedPages),
	)
	return nil
}

// applyArgs overlays positional arguments on the configured library name and
// root URLs.
func applyArgs(cfg config.Config, args []string) (string, []string) {
	name := cfg.Library.Name
	roots := cfg.Library.RootURLs
	var urls []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "http") {
			urls = append(urls, arg)
			continue
		}
		name = arg
	}
	if len(urls) > 0 {
		roots = urls
	}
	return name, roots
}

func normalizeRoots(rootURLs []string) ([]string, error) {
	roots := make([]string, 0, len(rootURLs))
	for _, raw := range rootURLs {
		canonical, err := crawler.NormalizeURL(raw)
		if err != nil {
			return nil, fmt.Errorf("root url %q: %w", raw, err)
		}
		roots = append(roots, canonical)
	}
	return roots, nil
}

func authConfig(a config.AuthConfig) auth.Config {
	return auth.Config{
		PrimaryUsername:  a.Username,
		PrimaryPassword:  a.Password,
		UsernameSelector: a.UsernameSelector,
		PasswordSelector: a.PasswordSelector,
		SubmitSelector:   a.SubmitSelector,

		SecondaryUsername:         a.SecondaryUsername,
		SecondaryPassword:         a.SecondaryPassword,
		SecondaryHosts:            a.SecondaryHosts,
		SecondaryUsernameSelector: a.SecondaryUsernameSelector,
		SecondaryPasswordSelector: a.SecondaryPasswordSelector,
		SecondarySubmitSelector:   a.SecondarySubmitSelector,

		LoginHosts:     a.LoginHosts,
		LoginPathParts: a.LoginPathParts,
		TargetDomain:   a.TargetDomain,

		StaySignedInSelector: a.StaySignedInSelector,
		SecondFactorMarkers:  a.SecondFactorMarkers,
		LoggedInMarkers:      a.LoggedInMarkers,

		StepTimeout:      a.StepTimeout,
		SecondFactorPoll: a.SecondFactorPoll,
		SecondFactorWait: a.SecondFactorWait,
	}
}

// startStatusServer runs the read-only status HTTP server when enabled and
// returns a shutdown func.
func startStatusServer(cfg config.ServerConfig, source api.ProgressSource, logger *zap.Logger) func() {
	if !cfg.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewServer(source, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server started", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown error", zap.Error(err))
		}
	}
}

func writeSummary(path string, summary crawler.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
