// Package metrics exposes the Prometheus metrics of the catalog client.
// The metrics themselves are defined next to the code that updates them
// (cache, client, pagination, catalog, basket) and registered with promauto
// on the default registry; this package serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the /metrics handler serving the default registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache), labelled by store ("memory", "redis", "custom"):
//   - catalog_cache_hits_total{store} (Counter): fresh entries served
//   - catalog_cache_misses_total{store} (Counter): lookups without an entry
//   - catalog_cache_stale_total{store} (Counter): entries found past their TTL
//   - catalog_cache_stored_bytes_total{store} (Counter): payload bytes written
//   - catalog_cache_errors_total{store, operation} (Counter): store failures
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{endpoint, status} (Counter)
//   - catalog_request_duration_seconds{endpoint} (Histogram)
//   - catalog_errors_total{class} (Counter): client, server, network, canceled
//
// Retry Metrics (pkg/client):
//   - catalog_retries_total{error_class} (Counter)
//   - catalog_retry_backoff_seconds{error_class} (Histogram)
//   - catalog_retry_exhausted_total{error_class} (Counter)
//
// Page Walk Metrics (pkg/pagination, pkg/catalog):
//   - catalog_pages_fetched_total (Counter)
//   - catalog_page_walks_total{outcome} (Counter): exhausted, max_pages, failed, cancelled
//   - catalog_supplier_fetches_total{outcome} (Counter): complete, partial, failed
//   - catalog_duplicate_products_total (Counter): records dropped by article dedup
//
// Basket Metrics (pkg/basket):
//   - catalog_basket_operations_total{kind, operation} (Counter)
//   - catalog_basket_errors_total{operation} (Counter)
//
// Proxy Metrics (cmd/catalog-proxy):
//   - catalog_proxy_requests_total{route, code} (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Partial supplier fetches
//   rate(catalog_supplier_fetches_total{outcome="partial"}[15m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
