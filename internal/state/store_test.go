package state

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawl-state.json")
	return New(path, &fakeClock{now: time.Unix(1700000000, 0).UTC()}, zap.NewNop())
}

func TestStore_EnqueueDequeueFIFO(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.True(t, s.Enqueue("https://docs.example.com/a", "", 0))
	require.True(t, s.Enqueue("https://docs.example.com/b", "https://docs.example.com/a", 1))
	require.True(t, s.Enqueue("https://docs.example.com/c", "https://docs.example.com/a", 1))
	require.Equal(t, 3, s.FrontierLen())

	first, ok := s.Dequeue()
	require.True(t, ok)
	require.Equal(t, "https://docs.example.com/a", first.URL)
	require.Equal(t, 0, first.Depth)

	second, ok := s.Dequeue()
	require.True(t, ok)
	require.Equal(t, "https://docs.example.com/b", second.URL)
	require.Equal(t, "https://docs.example.com/a", second.Referrer)

	third, ok := s.Dequeue()
	require.True(t, ok)
	require.Equal(t, "https://docs.example.com/c", third.URL)

	_, ok = s.Dequeue()
	require.False(t, ok)
}

func TestStore_EnqueueRejectsKnownURLs(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.True(t, s.Enqueue("https://docs.example.com/a", "", 0))
	require.False(t, s.Enqueue("https://docs.example.com/a", "elsewhere", 3))

	entry, ok := s.Dequeue()
	require.True(t, ok)
	s.MarkVisited(entry.URL)
	require.False(t, s.Enqueue("https://docs.example.com/a", "", 0))
	require.Zero(t, s.FrontierLen())
}

func TestStore_MarkVisitedPurgesQueuedDuplicate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.Enqueue("https://docs.example.com/a", "", 0)
	s.Enqueue("https://docs.example.com/b", "", 0)

	// The URL finishes (e.g. via redirect from another page) while still queued.
	s.MarkVisited("https://docs.example.com/a")
	require.Equal(t, 1, s.FrontierLen())

	entry, ok := s.Dequeue()
	require.True(t, ok)
	require.Equal(t, "https://docs.example.com/b", entry.URL)
	_, ok = s.Dequeue()
	require.False(t, ok)
}

func TestStore_FailedURLStaysEligible(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.Enqueue("https://docs.example.com/flaky", "", 1)
	entry, _ := s.Dequeue()
	s.MarkFailed(entry.URL, crawler.ErrNavigationTimeout, entry.Referrer)

	rec, found := s.FailureFor(entry.URL)
	require.True(t, found)
	require.Equal(t, "NavigationTimeout", rec.Kind)

	// Rediscovered by another page: failure does not block re-enqueue.
	require.True(t, s.Enqueue(entry.URL, "https://docs.example.com/other", 2))

	// A later success supersedes the failure record.
	retry, _ := s.Dequeue()
	s.MarkVisited(retry.URL)
	_, found = s.FailureFor(retry.URL)
	require.False(t, found)
}

func TestStore_MarkFailedOverwrites(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.MarkFailed("https://docs.example.com/x", crawler.ErrNavigationTimeout, "")
	s.MarkFailed("https://docs.example.com/x", &crawler.HTTPError{Status: 404}, "ref")

	rec, found := s.FailureFor("https://docs.example.com/x")
	require.True(t, found)
	require.Equal(t, "HttpError(404)", rec.Kind)
	require.Equal(t, "ref", rec.Referrer)

	_, failed, _ := s.Counts()
	require.Equal(t, 1, failed)
}

func TestStore_VisitedAndFrontierDisjoint(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	urls := []string{
		"https://docs.example.com/a",
		"https://docs.example.com/b",
		"https://docs.example.com/c",
	}
	for _, u := range urls {
		s.Enqueue(u, "", 0)
	}
	for range urls {
		entry, ok := s.Dequeue()
		require.True(t, ok)
		require.False(t, s.IsVisited(entry.URL))
		s.MarkVisited(entry.URL)
		require.False(t, s.Enqueue(entry.URL, "", 0))
	}
	visited, failed, frontier := s.Counts()
	require.Equal(t, 3, visited)
	require.Zero(t, failed)
	require.Zero(t, frontier)
}

func TestStore_ErrorsRecordCause(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cause := errors.New("connection reset")
	s.MarkFailed("https://docs.example.com/y", cause, "")
	rec, _ := s.FailureFor("https://docs.example.com/y")
	require.Equal(t, "Error", rec.Kind)
	require.Equal(t, "connection reset", rec.Error)
	require.False(t, rec.Timestamp.IsZero())
}
