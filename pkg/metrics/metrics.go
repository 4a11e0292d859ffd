// Package metrics exposes the Prometheus registry shared by the userlist packages.
// All metrics are defined in their respective packages (pagination, client, cache,
// ratelimit, server) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by userlist.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler for Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Pagination Metrics (pkg/pagination):
//   - userlist_page_loads_total{fetcher, op, result} (Counter): Page loads by fetcher,
//     operation (first, next, batch) and result (ok, error, skipped, stale)
//   - userlist_accumulated_items{fetcher} (Gauge): Items currently held by a fetcher
//
// Request Metrics (pkg/client):
//   - userlist_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - userlist_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - userlist_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, payload)
//
// Cache Metrics (pkg/cache):
//   - userlist_cache_hits_total (Counter): Cache hits
//   - userlist_cache_misses_total (Counter): Cache misses
//   - userlist_cache_stored_bytes (Counter): Total bytes written to the cache
//   - userlist_cache_not_modified_total (Counter): 304 Not Modified responses served from cache
//   - userlist_cache_conditional_requests_total (Counter): Conditional requests sent
//   - userlist_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - userlist_rate_limit_remaining{scope} (Gauge): Requests remaining in the current window
//   - userlist_rate_limit_blocks_total{scope} (Counter): Requests blocked at the critical threshold
//   - userlist_rate_limit_throttles_total{scope} (Counter): Requests delayed at the warning threshold
//
// Server Metrics (internal/server):
//   - userlist_server_requests_total{route, status} (Counter): Requests served by the dev server
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(userlist_cache_hits_total[5m])) /
//   (sum(rate(userlist_cache_hits_total[5m])) + sum(rate(userlist_cache_misses_total[5m])))
//
//   # Page Load Failure Rate
//   sum(rate(userlist_page_loads_total{result="error"}[5m])) /
//   sum(rate(userlist_page_loads_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(userlist_request_duration_seconds_bucket[5m]))
