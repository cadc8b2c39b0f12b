package fetch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := NewSink(t.TempDir(), []string{"https://docs.example.com/guide"}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSink_ArtifactDirDeterministic(t *testing.T) {
	t.Parallel()

	s := newTestSink(t)
	url := "https://docs.example.com/guide/install/linux"

	first := s.ArtifactDir(url)
	second := s.ArtifactDir(url)
	require.Equal(t, first, second)

	rel, err := filepath.Rel(s.root, first)
	require.NoError(t, err)
	segments := strings.Split(rel, string(filepath.Separator))
	require.Equal(t, "install", segments[0])
	require.True(t, strings.HasPrefix(segments[1], "linux-"))
}

func TestSink_ArtifactDirDistinguishesQueries(t *testing.T) {
	t.Parallel()

	s := newTestSink(t)
	plain := s.ArtifactDir("https://docs.example.com/guide/search")
	withQuery := s.ArtifactDir("https://docs.example.com/guide/search?page=2")
	require.NotEqual(t, plain, withQuery)
}

func TestSink_ArtifactDirRootURL(t *testing.T) {
	t.Parallel()

	s := newTestSink(t)
	dir := s.ArtifactDir("https://docs.example.com/guide")
	rel, err := filepath.Rel(s.root, dir)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rel, "index-"))
}

func TestSink_Persist(t *testing.T) {
	t.Parallel()

	s := newTestSink(t)
	meta := crawler.PageMetadata{
		URL:         "https://docs.example.com/guide/intro",
		CrawledAt:   time.Unix(1700000000, 0).UTC(),
		Title:       "Intro",
		ContentHash: "abc123",
		HTTPStatus:  200,
	}

	dir, err := s.Persist(meta, "<html><title>Intro</title></html>")
	require.NoError(t, err)

	html, err := os.ReadFile(filepath.Join(dir, pageFileName))
	require.NoError(t, err)
	require.Contains(t, string(html), "Intro")

	payload, err := os.ReadFile(filepath.Join(dir, metaFileName))
	require.NoError(t, err)
	require.Contains(t, string(payload), `"https://docs.example.com/guide/intro"`)
	require.Contains(t, string(payload), `"abc123"`)
}

func TestSink_RecrawlOverwritesInPlace(t *testing.T) {
	t.Parallel()

	s := newTestSink(t)
	meta := crawler.PageMetadata{URL: "https://docs.example.com/guide/intro"}

	dir1, err := s.Persist(meta, "first version")
	require.NoError(t, err)
	dir2, err := s.Persist(meta, "second version")
	require.NoError(t, err)
	require.Equal(t, dir1, dir2)

	html, err := os.ReadFile(filepath.Join(dir2, pageFileName))
	require.NoError(t, err)
	require.Equal(t, "second version", string(html))
}
