package fetch

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

type fakeBrowser struct {
	status   int
	navErr   error
	location string
	html     string
	cookies  []*http.Cookie
	navs     []string
}

func (b *fakeBrowser) Navigate(_ context.Context, url string, _ time.Duration) (int, error) {
	b.navs = append(b.navs, url)
	if b.navErr != nil {
		return 0, b.navErr
	}
	if b.location == "" {
		b.location = url
	}
	return b.status, nil
}

func (b *fakeBrowser) CurrentURL(context.Context) (string, error)  { return b.location, nil }
func (b *fakeBrowser) PageContent(context.Context) (string, error) { return b.html, nil }
func (b *fakeBrowser) Evaluate(context.Context, string, any) error { return nil }
func (b *fakeBrowser) Type(context.Context, string, string) error  { return nil }
func (b *fakeBrowser) Click(context.Context, string) error         { return nil }
func (b *fakeBrowser) WaitVisible(context.Context, string, time.Duration) error {
	return nil
}
func (b *fakeBrowser) WaitLocationChange(context.Context, string, time.Duration) (string, error) {
	return b.location, nil
}
func (b *fakeBrowser) CookiesFor(context.Context, string) ([]*http.Cookie, error) {
	return b.cookies, nil
}

// fakeTabs hands each Fetch its own browser and counts the open/close pairs.
type fakeTabs struct {
	browsers []*fakeBrowser
	next     func() *fakeBrowser
	err      error
	opened   int
	closed   int
}

func (f *fakeTabs) OpenTab(context.Context) (crawler.Browser, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	b := f.next()
	f.browsers = append(f.browsers, b)
	f.opened++
	return b, func() { f.closed++ }, nil
}

func tabsFor(b *fakeBrowser) *fakeTabs {
	return &fakeTabs{next: func() *fakeBrowser { return b }}
}

type fakeAuth struct {
	loginURLs     map[string]bool
	authenticated []string
	err           error
	landOn        string
}

func (a *fakeAuth) IsLoginURL(url string) bool { return a.loginURLs[url] }

func (a *fakeAuth) Authenticate(_ context.Context, b crawler.Browser, requestedURL string) error {
	a.authenticated = append(a.authenticated, requestedURL)
	if a.err != nil {
		return a.err
	}
	if a.landOn != "" {
		b.(*fakeBrowser).location = a.landOn
	}
	return nil
}

type fakeDownloader struct {
	files map[string]string
	err   error
	calls []string
}

func (d *fakeDownloader) Download(_ context.Context, rawURL string, _ []*http.Cookie, targetDir string) (string, error) {
	d.calls = append(d.calls, rawURL)
	if d.err != nil {
		return "", d.err
	}
	name := d.files[rawURL]
	if name == "" {
		name = "file.bin"
	}
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(targetDir, name), []byte("binary"), 0o600); err != nil {
		return "", err
	}
	return name, nil
}

type fakeHasher struct{ hash string }

func (h *fakeHasher) Hash([]byte) (string, error) { return h.hash, nil }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestFetcher(t *testing.T, tabs crawler.TabOpener, a Authenticator, d crawler.Downloader) (*Fetcher, *Sink) {
	t.Helper()
	policy := crawler.NewPolicy([]string{"https://docs.example.com/docs"}, nil, nil, nil)
	sink, err := NewSink(t.TempDir(), []string{"https://docs.example.com/docs"}, zap.NewNop())
	require.NoError(t, err)
	f := New(
		Config{MaxDepth: 3, NavigationTimeout: time.Second},
		policy,
		tabs,
		a,
		d,
		sink,
		&fakeHasher{hash: "deadbeef"},
		&fakeClock{now: time.Unix(1700000000, 0).UTC()},
		zap.NewNop(),
	)
	return f, sink
}

const docsIndexPage = `<html>
<head><title>Docs Home</title></head>
<body>
  <a href="/docs/a">Section A</a>
  <a href="https://cdn.example.com/files/report.pdf">Report</a>
  <a href="/docs/logout">Log out</a>
  <a href="mailto:help@example.com">Help</a>
  <a href="https://elsewhere.example.com/page">Elsewhere</a>
</body>
</html>`

func TestFetcher_FullPage(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{status: 200, html: docsIndexPage}
	dl := &fakeDownloader{files: map[string]string{
		"https://cdn.example.com/files/report.pdf": "report.pdf",
	}}
	f, sink := newTestFetcher(t, tabsFor(b), &fakeAuth{}, dl)

	entry := crawler.FrontierEntry{URL: "https://docs.example.com/docs", Depth: 1}
	result := f.Fetch(context.Background(), entry)
	require.NoError(t, result.Err)
	require.NotNil(t, result.Meta)

	// Only the in-scope, non-excluded page link is offered for enqueueing. The
	// PDF is downloadable (despite being out of scope), the logout link and
	// mailto are excluded, the external page is out of scope.
	require.Equal(t, []crawler.OutboundLink{
		{URL: "https://docs.example.com/docs/a", Text: "Section A"},
	}, result.Links)

	require.Equal(t, []string{"https://cdn.example.com/files/report.pdf"}, dl.calls)
	require.Len(t, result.Meta.DownloadedDocuments, 1)
	require.Equal(t, "report.pdf", result.Meta.DownloadedDocuments[0].FileName)
	require.Equal(t, "Report", result.Meta.DownloadedDocuments[0].LinkText)

	require.Equal(t, "Docs Home", result.Meta.Title)
	require.Equal(t, "deadbeef", result.Meta.ContentHash)
	require.Equal(t, 200, result.Meta.HTTPStatus)
	require.Len(t, result.Meta.OutboundLinks, 5)

	dir := sink.ArtifactDir(entry.URL)
	for _, name := range []string{pageFileName, metaFileName, "report.pdf"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}

func TestFetcher_HTTPErrorStatus(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{status: 404, html: "<html>not found</html>"}
	f, _ := newTestFetcher(t, tabsFor(b), &fakeAuth{}, &fakeDownloader{})

	result := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs/missing"})
	require.Error(t, result.Err)

	var httpErr *crawler.HTTPError
	require.ErrorAs(t, result.Err, &httpErr)
	require.Equal(t, 404, httpErr.Status)
	require.Nil(t, result.Meta)
}

func TestFetcher_NavigationTimeout(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{navErr: crawler.ErrNavigationTimeout}
	f, _ := newTestFetcher(t, tabsFor(b), &fakeAuth{}, &fakeDownloader{})

	result := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs/slow"})
	require.ErrorIs(t, result.Err, crawler.ErrNavigationTimeout)
}

func TestFetcher_AuthenticatesWhenRedirectedToLogin(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{
		status:   200,
		location: "https://login.example.com/oauth2",
		html:     "<html><title>Docs Home</title><body></body></html>",
	}
	auth := &fakeAuth{
		loginURLs: map[string]bool{"https://login.example.com/oauth2": true},
		landOn:    "https://docs.example.com/docs",
	}
	f, _ := newTestFetcher(t, tabsFor(b), auth, &fakeDownloader{})

	result := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs"})
	require.NoError(t, result.Err)
	require.Equal(t, []string{"https://docs.example.com/docs"}, auth.authenticated)
}

func TestFetcher_AuthFailureIsPageFailure(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{status: 200, location: "https://login.example.com/oauth2"}
	auth := &fakeAuth{
		loginURLs: map[string]bool{"https://login.example.com/oauth2": true},
		err:       crawler.ErrAuthFailed,
	}
	f, _ := newTestFetcher(t, tabsFor(b), auth, &fakeDownloader{})

	result := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs"})
	require.ErrorIs(t, result.Err, crawler.ErrAuthFailed)
}

func TestFetcher_DepthCapDropsLinks(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{status: 200, html: docsIndexPage}
	f, _ := newTestFetcher(t, tabsFor(b), &fakeAuth{}, &fakeDownloader{})

	result := f.Fetch(context.Background(), crawler.FrontierEntry{
		URL:   "https://docs.example.com/docs",
		Depth: 3,
	})
	require.NoError(t, result.Err)
	require.Empty(t, result.Links)
	// The page itself is still captured and its attachments still fetched.
	require.NotNil(t, result.Meta)
	require.Len(t, result.Meta.DownloadedDocuments, 1)
}

func TestFetcher_DownloadFailureDoesNotFailPage(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{status: 200, html: docsIndexPage}
	dl := &fakeDownloader{err: errors.New("connection reset")}
	f, _ := newTestFetcher(t, tabsFor(b), &fakeAuth{}, dl)

	result := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs"})
	require.NoError(t, result.Err)
	require.Empty(t, result.Meta.DownloadedDocuments)
	require.Len(t, dl.calls, 1)
}

func TestFetcher_DedicatedTabPerPage(t *testing.T) {
	t.Parallel()

	tabs := &fakeTabs{next: func() *fakeBrowser {
		return &fakeBrowser{status: 200, html: docsIndexPage}
	}}
	f, _ := newTestFetcher(t, tabs, &fakeAuth{}, &fakeDownloader{})

	first := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs"})
	second := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs/a"})
	require.NoError(t, first.Err)
	require.NoError(t, second.Err)

	// Each page ran in its own tab, closed when the page completed, and no
	// tab ever saw another page's navigation.
	require.Equal(t, 2, tabs.opened)
	require.Equal(t, 2, tabs.closed)
	require.Equal(t, []string{"https://docs.example.com/docs"}, tabs.browsers[0].navs)
	require.Equal(t, []string{"https://docs.example.com/docs/a"}, tabs.browsers[1].navs)
}

func TestFetcher_TabOpenFailureIsPageFailure(t *testing.T) {
	t.Parallel()

	tabs := &fakeTabs{err: errors.New("browser is gone")}
	f, _ := newTestFetcher(t, tabs, &fakeAuth{}, &fakeDownloader{})

	result := f.Fetch(context.Background(), crawler.FrontierEntry{URL: "https://docs.example.com/docs"})
	require.Error(t, result.Err)
	require.Nil(t, result.Meta)
}
