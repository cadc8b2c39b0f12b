// Package metrics exposes Prometheus collectors for the crawl run.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesVisitedTotal    prometheus.Counter
	pagesFailedTotal     *prometheus.CounterVec
	documentsTotal       *prometheus.CounterVec
	browserRestartsTotal prometheus.Counter
	frontierSize         prometheus.Gauge
	activeFetches        prometheus.Gauge

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesVisitedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawler_pages_visited_total",
			Help: "Pages fetched, extracted, and persisted successfully.",
		})
		pagesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_failed_total",
			Help: "Pages recorded in the failure log, labeled by error kind.",
		}, []string{"kind"})
		documentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_documents_total",
			Help: "Attachment downloads, labeled by outcome.",
		}, []string{"outcome"})
		browserRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawler_browser_restarts_total",
			Help: "Browsing-session host process relaunches.",
		})
		frontierSize = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_frontier_size",
			Help: "Discovered-but-unfetched URLs waiting in the frontier.",
		})
		activeFetches = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_active_fetches",
			Help: "Page fetches currently in flight.",
		})
	})
}

// PageVisited counts one successful page.
func PageVisited() {
	if pagesVisitedTotal != nil {
		pagesVisitedTotal.Inc()
	}
}

// PageFailed counts one failed page by error kind.
func PageFailed(kind string) {
	if pagesFailedTotal != nil {
		pagesFailedTotal.WithLabelValues(kind).Inc()
	}
}

// DocumentDownloaded counts one attachment outcome ("ok" or "failed").
func DocumentDownloaded(outcome string) {
	if documentsTotal != nil {
		documentsTotal.WithLabelValues(outcome).Inc()
	}
}

// BrowserRestarted counts one host process relaunch.
func BrowserRestarted() {
	if browserRestartsTotal != nil {
		browserRestartsTotal.Inc()
	}
}

// SetFrontierSize records the current frontier length.
func SetFrontierSize(n int) {
	if frontierSize != nil {
		frontierSize.Set(float64(n))
	}
}

// SetActiveFetches records the in-flight fetch count.
func SetActiveFetches(n int) {
	if activeFetches != nil {
		activeFetches.Set(float64(n))
	}
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
