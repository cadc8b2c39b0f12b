package browser

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// responseMeta records the main-document response of the most recent
// navigation in one tab. The listener lives for the tab, so reset is called
// before each navigate.
type responseMeta struct {
	mu         sync.Mutex
	statusCode int
	url        string
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	m.statusCode = 0
	m.url = ""
	m.mu.Unlock()
}

func (m *responseMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCode
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.statusCode = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

// matchCookies filters browser cookies down to those applicable to the target
// URL, mirroring what the browser itself would send.
func matchCookies(cookies []*network.Cookie, target string) []*http.Cookie {
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())

	var matched []*http.Cookie
	for _, c := range cookies {
		if c == nil || !domainMatches(host, c.Domain) {
			continue
		}
		if c.Path != "" && !strings.HasPrefix(u.Path, strings.TrimSuffix(c.Path, "/")) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		matched = append(matched, cookie)
	}
	return matched
}

func domainMatches(host, cookieDomain string) bool {
	d := strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	if d == "" {
		return false
	}
	return host == d || strings.HasSuffix(host, "."+d)
}
