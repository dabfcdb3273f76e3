// Package metrics provides the centralized Prometheus registry reference
// for the quiz client. Metrics are defined in their respective packages
// (api, queue, prefetch, perf, cache) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the quiz client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/api):
//   - quiz_requests_total{action, status} (Counter): Requests by action and HTTP status
//   - quiz_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/api):
//   - quiz_retries_total{error_class} (Counter): Retry attempts by error class
//   - quiz_retry_backoff_seconds{error_class} (Histogram): Backoff duration before retries
//   - quiz_retry_exhausted_total{error_class} (Counter): Requests that exhausted all retries
//
// Queue Metrics (pkg/queue):
//   - quiz_queue_active_tasks (Gauge): Tasks running under the concurrency gate
//   - quiz_queue_waiting_tasks (Gauge): Tasks waiting for a free slot
//   - quiz_queue_dispatched_total (Counter): Total tasks dispatched
//
// Prefetch Metrics (pkg/prefetch, pkg/perf):
//   - quiz_prefetch_buffer_size (Gauge): Questions currently buffered
//   - quiz_buffer_checks_total{outcome} (Counter): Buffer lookups by outcome (hit, miss)
//   - quiz_fetch_duration_seconds (Histogram): Successful fetch latency
//
// Explanation Cache Metrics (pkg/cache):
//   - quiz_explanation_cache_hits_total (Counter): Explanation cache hits
//   - quiz_explanation_cache_misses_total (Counter): Explanation cache misses
//   - quiz_explanation_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Buffer Hit Rate
//   sum(rate(quiz_buffer_checks_total{outcome="hit"}[5m])) /
//   sum(rate(quiz_buffer_checks_total[5m]))
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(quiz_fetch_duration_seconds_bucket[5m]))
//
//   # Retry Exhaustion Rate
//   rate(quiz_retry_exhausted_total[5m])
//
//   # Queue Saturation
//   quiz_queue_waiting_tasks > 0
