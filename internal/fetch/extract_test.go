package fetch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title> Getting Started </title></head>
<body>
  <a href="/guide/install">Install</a>
  <a href="advanced.html">Advanced</a>
  <a href="https://other.example.com/external">External</a>
  <a href="#section">Anchor</a>
  <a href="javascript:void(0)">Noop</a>
  <a href="">Empty</a>
  <a href="/guide/install">Install (duplicate, different text)</a>
  <a href="/files/report.pdf">Quarterly Report</a>
</body>
</html>`

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	links, err := ExtractLinks(samplePage, "https://docs.example.com/guide/intro")
	require.NoError(t, err)

	require.Equal(t, []crawler.OutboundLink{
		{URL: "https://docs.example.com/guide/install", Text: "Install"},
		{URL: "https://docs.example.com/guide/advanced.html", Text: "Advanced"},
		{URL: "https://other.example.com/external", Text: "External"},
		{URL: "https://docs.example.com/files/report.pdf", Text: "Quarterly Report"},
	}, links)
}

func TestExtractLinks_FragmentOnlyDifferencesCollapse(t *testing.T) {
	t.Parallel()

	html := `<a href="/page#a">One</a><a href="/page#b">Two</a>`
	links, err := ExtractLinks(html, "https://docs.example.com/")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "https://docs.example.com/page", links[0].URL)
	require.Equal(t, "One", links[0].Text)
}

func TestExtractTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Getting Started", ExtractTitle(samplePage))
	require.Empty(t, ExtractTitle("<html><body>no title</body></html>"))
}
