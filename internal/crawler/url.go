package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL so that equivalent forms compare equal.
// It lowercases the scheme and host, removes default ports, strips fragments,
// and sorts query parameters. Two URLs differing only in fragment or query
// order normalize to the same string, which is the universal key for dedup,
// visited-tracking, and manifest diffing.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedURL, rawURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	// Encode re-emits parameters in sorted key order.
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String(), nil
}

// ResolveLink resolves a possibly-relative href against the page it was found
// on and normalizes the result.
func ResolveLink(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %v", ErrMalformedURL, pageURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: href %q: %v", ErrMalformedURL, href, err)
	}
	return NormalizeURL(base.ResolveReference(ref).String())
}
