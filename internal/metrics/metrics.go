// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestPagesTotal          *prometheus.CounterVec
	harvestRecordsTotal        *prometheus.CounterVec
	harvestSiteRunsTotal       *prometheus.CounterVec
	harvestRetriesTotal        *prometheus.CounterVec
	harvestArtifactsTotal      *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total number of index and detail page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		harvestRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_records_total",
				Help: "Total number of publication records accepted, labeled by site.",
			},
			[]string{"site"},
		)

		harvestSiteRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_site_runs_total",
				Help: "Total number of finished site crawls, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		harvestRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_retries_total",
				Help: "Total number of site crawl retries after a failed attempt.",
			},
			[]string{"site"},
		)

		harvestArtifactsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_artifacts_total",
				Help: "Total number of snapshot artifacts written, labeled by site.",
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host request limiter.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts a page fetch outcome for site.
func ObservePage(site, status string) {
	Init()
	harvestPagesTotal.WithLabelValues(site, status).Inc()
}

// ObserveRecord counts one accepted record for site.
func ObserveRecord(site string) {
	Init()
	harvestRecordsTotal.WithLabelValues(site).Inc()
}

// ObserveSiteRun counts a finished site crawl ("succeeded" or "failed").
func ObserveSiteRun(site, outcome string) {
	Init()
	harvestSiteRunsTotal.WithLabelValues(site, outcome).Inc()
}

// ObserveRetry counts one retry of a site crawl.
func ObserveRetry(site string) {
	Init()
	harvestRetriesTotal.WithLabelValues(site).Inc()
}

// ObserveArtifact counts one written snapshot for site.
func ObserveArtifact(site string) {
	Init()
	harvestArtifactsTotal.WithLabelValues(site).Inc()
}

// ObserveRateLimitDelay records a wait imposed by the per-host limiter.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
