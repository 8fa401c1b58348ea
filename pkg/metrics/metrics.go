// Package metrics exposes the Prometheus registry shared by the browser.
// Metrics are defined in the packages that record them (client, cache,
// ratelimit, browse, web) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer promauto uses.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - anilist_rate_limit_remaining (Gauge): Requests left in the upstream window
//   - anilist_rate_limit_waits_total (Counter): Requests delayed until the window reset
//   - anilist_rate_limit_throttles_total (Counter): Requests slowed because the window was nearly used
//
// Cache Metrics (pkg/cache):
//   - anilist_cache_hits_total (Counter): Page cache hits
//   - anilist_cache_misses_total (Counter): Page cache misses
//   - anilist_cache_stored_bytes_total (Counter): Bytes written to the page cache
//   - anilist_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - anilist_requests_total{status} (Counter): Upstream attempts by HTTP status
//   - anilist_request_duration_seconds (Histogram): Upstream attempt duration
//   - anilist_errors_total{class} (Counter): Failed attempts by class (client, server, rate_limit, network, graphql)
//   - anilist_records_rejected_total{reason} (Counter): Records dropped during normalization
//
// Retry Metrics (pkg/client):
//   - anilist_retries_total{error_class} (Counter): Retry attempts by error class
//   - anilist_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - anilist_retry_exhausted_total{error_class} (Counter): Fetches that used every attempt
//
// View Metrics (pkg/browse):
//   - anilist_browse_stale_responses_total (Counter): Responses dropped because the view moved on
//
// HTTP Metrics (internal/web):
//   - anilist_http_requests_total{route, status} (Counter): Requests served
//   - anilist_http_request_duration_seconds{route} (Histogram): Request duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(anilist_cache_hits_total[5m])) /
//   (sum(rate(anilist_cache_hits_total[5m])) + sum(rate(anilist_cache_misses_total[5m])))
//
//   # Window nearly used up
//   anilist_rate_limit_remaining < 10
//
//   # Upstream Error Rate
//   sum by (class) (rate(anilist_errors_total[5m]))
//
//   # P95 Attempt Latency
//   histogram_quantile(0.95, rate(anilist_request_duration_seconds_bucket[5m]))
