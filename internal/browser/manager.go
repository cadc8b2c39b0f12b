package browser

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// Manager owns the browsing-session host process across a run. The pool asks
// NeedsRestart after each page batch and calls Restart only once it has
// drained to zero in-flight workers, so no open tab ever sees the process go
// away underneath it. OpenTab is safe to call from concurrent fetches.
type Manager struct {
	cfg      Config
	logger   *zap.Logger
	mu       sync.Mutex
	session  *Session
	restarts int
}

var _ crawler.TabOpener = (*Manager)(nil)

// NewManager creates a manager; the first session launches lazily.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// OpenTab opens a fresh tab in the live session, launching the host process
// on first use.
func (m *Manager) OpenTab(ctx context.Context) (crawler.Browser, func(), error) {
	s, err := m.Session()
	if err != nil {
		return nil, nil, err
	}
	return s.OpenTab(ctx)
}

// Session returns the live session, launching the host process on first use.
func (m *Manager) Session() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil && !m.session.Disconnected() {
		return m.session, nil
	}
	return m.launch()
}

// NeedsRestart reports whether the host process should be relaunched:
// disconnected, page budget spent, or wall-clock budget spent.
func (m *Manager) NeedsRestart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return false
	}
	if m.session.Disconnected() {
		return true
	}
	if m.cfg.MaxPagesPerSession > 0 && m.session.PagesServed() >= m.cfg.MaxPagesPerSession {
		return true
	}
	if m.cfg.MaxSessionAge > 0 && m.session.Age() >= m.cfg.MaxSessionAge {
		return true
	}
	return false
}

// Restart tears down the current host process and launches a fresh one.
// Callers must guarantee no fetch is in flight.
func (m *Manager) Restart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	if _, err := m.launch(); err != nil {
		return err
	}
	m.restarts++
	return nil
}

// Restarts counts how many times the host process was relaunched.
func (m *Manager) Restarts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

// Close shuts the current host process down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
}

// launch runs with m.mu held.
func (m *Manager) launch() (*Session, error) {
	session, err := Launch(m.cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	m.session = session
	m.logger.Info("browser session launched",
		zap.Int("maxPages", m.cfg.MaxPagesPerSession),
		zap.Duration("maxAge", m.cfg.MaxSessionAge),
	)
	return session, nil
}
