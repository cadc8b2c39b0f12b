// Package pool drives a crawl run: it pulls frontier entries from the state
// store, fans them out to a bounded number of concurrent page fetches, applies
// each page's outcome as one indivisible state mutation, and manages the
// browsing-session host process restart policy.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
	"github.com/libsearch/sitecrawler/internal/metrics"
	"github.com/libsearch/sitecrawler/internal/state"
)

// SessionControl is the slice of the browser lifecycle the pool needs.
// Restart is only invoked when zero fetches are in flight.
type SessionControl interface {
	NeedsRestart() bool
	Restart() error
}

// Config controls run behavior.
type Config struct {
	Width    int
	MaxPages int
	RunID    string
	RootURLs []string
}

// Progress is a point-in-time view of the run for the status server.
type Progress struct {
	RunID    string `json:"runId"`
	Visited  int    `json:"visited"`
	Failed   int    `json:"failed"`
	Frontier int    `json:"frontier"`
	Active   int    `json:"active"`
	Running  bool   `json:"running"`
}

// Pool owns the crawl state store for the duration of a run. All store
// mutations happen on the coordinating goroutine, so no two pages' outcome
// batches ever interleave.
type Pool struct {
	cfg      Config
	store    *state.Store
	fetcher  crawler.PageFetcher
	sessions SessionControl
	clock    crawler.Clock
	logger   *zap.Logger

	mu       sync.Mutex
	progress Progress
}

// New builds a Pool. sessions may be nil when the browser lifecycle is
// managed elsewhere (tests).
func New(
	cfg Config,
	store *state.Store,
	fetcher crawler.PageFetcher,
	sessions SessionControl,
	clock crawler.Clock,
	logger *zap.Logger,
) *Pool {
	if cfg.Width <= 0 {
		cfg.Width = 3
	}
	return &Pool{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
	}
}

// Progress returns the current run counters.
func (p *Pool) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Run executes the crawl until the frontier drains, the visited-count cap is
// reached, or the context is canceled. Cancellation is graceful: no new
// dispatches, in-flight fetches wind down and their outcomes are applied — a
// fetch cut short by the stop goes back to the frontier rather than being
// marked failed — then the final state is persisted. A snapshot write failure
// aborts the run.
func (p *Pool) Run(ctx context.Context) (crawler.RunSummary, error) {
	results := make(chan crawler.FetchResult)
	active := 0
	stopped := false
	var fatal error

	for {
		if !stopped && ctx.Err() != nil {
			stopped = true
			p.logger.Info("stop requested, waiting for in-flight fetches",
				zap.Int("active", active))
		}

		if active == 0 && !stopped && p.sessions != nil && p.sessions.NeedsRestart() {
			if err := p.sessions.Restart(); err != nil {
				fatal = fmt.Errorf("restart browser host: %w", err)
				stopped = true
			} else {
				metrics.BrowserRestarted()
			}
		}

		for !stopped && active < p.cfg.Width && !p.capReached() {
			entry, ok := p.store.Dequeue()
			if !ok {
				break
			}
			if p.store.IsVisited(entry.URL) {
				continue
			}
			active++
			go func(e crawler.FrontierEntry) {
				results <- p.fetcher.Fetch(ctx, e)
			}(entry)
		}

		p.updateProgress(active, true)
		if active == 0 {
			break
		}

		result := <-results
		active--
		if err := p.apply(result); err != nil {
			fatal = err
			stopped = true
		}
	}

	summary := p.summarize()
	p.updateProgress(0, false)
	if fatal != nil {
		return summary, fatal
	}
	if err := p.store.Snapshot(); err != nil {
		return summary, err
	}
	return summary, nil
}

// apply commits one page's full outcome — visited or failed mark, newly
// discovered frontier entries, and the persisted snapshot — before the next
// dispatch decision is made.
func (p *Pool) apply(result crawler.FetchResult) error {
	entry := result.Entry
	if result.Err != nil && errors.Is(result.Err, context.Canceled) {
		// A stop request interrupted this fetch mid-flight. The page was
		// never captured, so it goes back to the frontier instead of being
		// recorded as a terminal failure; a resumed run retries it.
		p.store.Enqueue(entry.URL, entry.Referrer, entry.Depth)
		p.logger.Info("fetch interrupted by stop, page returned to frontier",
			zap.String("url", entry.URL),
			zap.Int("depth", entry.Depth),
		)
	} else if result.Err != nil {
		p.store.MarkFailed(entry.URL, result.Err, entry.Referrer)
		metrics.PageFailed(crawler.FailureKind(result.Err))
		p.logger.Warn("page failed",
			zap.String("url", entry.URL),
			zap.String("referrer", entry.Referrer),
			zap.Int("depth", entry.Depth),
			zap.Error(result.Err),
		)
	} else {
		p.store.MarkVisited(entry.URL)
		added := 0
		for _, link := range result.Links {
			if p.store.Enqueue(link.URL, entry.URL, entry.Depth+1) {
				added++
			}
		}
		metrics.PageVisited()
		p.logger.Info("page visited",
			zap.String("url", entry.URL),
			zap.Int("depth", entry.Depth),
			zap.Int("discovered", added),
			zap.Int("attachments", len(result.Meta.DownloadedDocuments)),
		)
	}

	metrics.SetFrontierSize(p.store.FrontierLen())
	if err := p.store.Snapshot(); err != nil {
		return err
	}
	return nil
}

func (p *Pool) capReached() bool {
	if p.cfg.MaxPages <= 0 {
		return false
	}
	visited, _, _ := p.store.Counts()
	return visited >= p.cfg.MaxPages
}

func (p *Pool) summarize() crawler.RunSummary {
	visited, failed, frontier := p.store.Counts()
	return crawler.RunSummary{
		RunID:             p.cfg.RunID,
		TotalPagesVisited: visited,
		FailedPages:       failed,
		RemainingQueue:    frontier,
		CrawlEndTime:      p.clock.Now(),
		RootURLs:          p.cfg.RootURLs,
	}
}

func (p *Pool) updateProgress(active int, running bool) {
	visited, failed, frontier := p.store.Counts()
	metrics.SetActiveFetches(active)
	p.mu.Lock()
	p.progress = Progress{
		RunID:    p.cfg.RunID,
		Visited:  visited,
		Failed:   failed,
		Frontier: frontier,
		Active:   active,
		Running:  running,
	}
	p.mu.Unlock()
}
