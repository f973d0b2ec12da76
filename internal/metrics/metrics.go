// Package metrics exposes Prometheus collectors for catalog crawls. The
// crawler opens no listener; a run can dump its counters to a node-exporter
// textfile instead.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal          *prometheus.CounterVec
	fetchBytesTotal     *prometheus.CounterVec
	fetchCacheHitsTotal *prometheus.CounterVec
	fetchRetriesTotal   *prometheus.CounterVec
	crawlNodesTotal     *prometheus.CounterVec
	subtitleTotal       *prometheus.CounterVec
	postprocessTotal    *prometheus.CounterVec
	materializeTotal    *prometheus.CounterVec
	rateLimitDelay      *prometheus.HistogramVec
	crawlDuration       prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_total",
				Help: "Page fetches, labeled by site and result status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_bytes_total",
				Help: "Bytes received over the network, labeled by site.",
			},
			[]string{"site"},
		)

		fetchCacheHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_cache_hits_total",
				Help: "Fetches served without a full download, labeled by source (memo, store, revalidated).",
			},
			[]string{"source"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_retries_total",
				Help: "Retries after transient network errors, labeled by site.",
			},
			[]string{"site"},
		)

		crawlNodesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_crawl_nodes_total",
				Help: "Tree nodes visited, labeled by level and outcome.",
			},
			[]string{"level", "outcome"},
		)

		subtitleTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_subtitle_resolutions_total",
				Help: "Subtitle tag resolutions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		postprocessTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_postprocess_total",
				Help: "Post-process invocations, labeled by outcome (hit, miss, error).",
			},
			[]string{"outcome"},
		)

		materializeTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_materialize_total",
				Help: "Video materializations, labeled by outcome (downloaded, reused, download_error, process_error).",
			},
			[]string{"outcome"},
		)

		rateLimitDelay = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"site"},
		)

		crawlDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_crawl_duration_seconds",
				Help:    "Wall time of complete crawl runs.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records the outcome of one fetch.
func ObserveFetch(rawURL, status string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveCacheHit records a fetch answered from the memo or the store.
func ObserveCacheHit(source string) {
	Init()
	fetchCacheHitsTotal.WithLabelValues(source).Inc()
}

// ObserveRetry records a retried attempt.
func ObserveRetry(rawURL string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveNode records what happened to a section, category or content node.
func ObserveNode(level, outcome string) {
	Init()
	crawlNodesTotal.WithLabelValues(level, outcome).Inc()
}

// ObserveSubtitle records one subtitle tag resolution.
func ObserveSubtitle(resolved bool) {
	Init()
	outcome := "unresolved"
	if resolved {
		outcome = "resolved"
	}
	subtitleTotal.WithLabelValues(outcome).Inc()
}

// ObservePostprocess records a post-process cache outcome.
func ObservePostprocess(outcome string) {
	Init()
	postprocessTotal.WithLabelValues(outcome).Inc()
}

// ObserveMaterialize records one video materialization outcome.
func ObserveMaterialize(outcome string) {
	Init()
	materializeTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records a wait imposed by the rate limiter.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelay.WithLabelValues(SanitizeSite(host)).Observe(d.Seconds())
}

// ObserveCrawl records the duration of a finished run.
func ObserveCrawl(d time.Duration) {
	Init()
	crawlDuration.Observe(d.Seconds())
}

// WriteTextfile dumps the default registry in the node-exporter textfile
// format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
