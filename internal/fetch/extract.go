package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// ExtractLinks pulls every anchor target from the rendered document, resolves
// it against the page URL, and canonicalizes it. Malformed hrefs are dropped.
// Duplicates are collapsed keeping the first occurrence's link text.
func ExtractLinks(html, pageURL string) ([]crawler.OutboundLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	seen := make(map[string]struct{})
	var links []crawler.OutboundLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		canonical, err := crawler.ResolveLink(pageURL, href)
		if err != nil {
			return
		}
		if _, dup := seen[canonical]; dup {
			return
		}
		seen[canonical] = struct{}{}
		links = append(links, crawler.OutboundLink{
			URL:  canonical,
			Text: strings.TrimSpace(sel.Text()),
		})
	})
	return links, nil
}

// ExtractTitle returns the document title, empty when absent.
func ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
