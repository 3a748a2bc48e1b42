// Package metrics exposes the Prometheus registry used by the WSAPI client.
// All metrics are defined in their respective packages (client, pagination,
// cache, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the WSAPI client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - wsapi_requests_total{method, status} (Counter): Requests by HTTP method and status
//   - wsapi_request_duration_seconds{method} (Histogram): Request duration by method
//   - wsapi_errors_total{class} (Counter): Errors by class (network, client, server, malformed, remote, token)
//   - wsapi_security_token_requests_total{result} (Counter): Token acquisitions (acquired, unsupported, failed)
//
// Pagination Metrics (pkg/pagination):
//   - wsapi_pages_fetched_total (Counter): Query pages fetched, first pages included
//   - wsapi_fetch_duration_seconds (Histogram): Duration of complete paged fetches
//   - wsapi_fetch_workers (Gauge): Worker count of the most recent parallel fetch
//
// Cache Metrics (pkg/cache):
//   - wsapi_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - wsapi_cache_misses_total (Counter): Cache misses
//   - wsapi_cache_written_bytes_total{layer="redis"} (Counter): Bytes written to the cache
//   - wsapi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - wsapi_rate_limit_wait_seconds (Histogram): Time spent waiting for the limiter
//   - wsapi_rate_limit_cancelled_total (Counter): Waits abandoned because the context ended
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(wsapi_cache_hits_total[5m])) /
//   (sum(rate(wsapi_cache_hits_total[5m])) + sum(rate(wsapi_cache_misses_total[5m])))
//
//   # Request Error Rate by class
//   sum by (class) (rate(wsapi_errors_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(wsapi_request_duration_seconds_bucket[5m]))
//
//   # Pages per paged fetch
//   rate(wsapi_pages_fetched_total[5m]) / rate(wsapi_fetch_duration_seconds_count[5m])
