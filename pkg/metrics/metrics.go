// Package metrics provides the centralized Prometheus registry reference for
// the archiver. Metrics are defined in their owning packages (battlelog,
// reports) to maintain modularity; this package documents them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the archiver.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/battlelog):
//   - battlelog_requests_total{endpoint, status} (Counter): Requests by endpoint family and HTTP status
//   - battlelog_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint family
//   - battlelog_gateway_retries_total (Counter): 504 responses retried by the one-shot fetcher
//
// Hydration Metrics (pkg/reports):
//   - battlelog_report_attempts_total{outcome} (Counter): Fetch attempts by outcome
//     (success, retrying, rate_limited, network_error, failed)
//   - battlelog_reports_fetched_total (Counter): Reports hydrated successfully
//   - battlelog_reports_dropped_total (Counter): Reports dropped after the attempt cap
//
// Example queries:
//
//   # Share of attempts stalled by rate limiting
//   rate(battlelog_report_attempts_total{outcome="rate_limited"}[5m]) /
//   rate(battlelog_report_attempts_total[5m])
