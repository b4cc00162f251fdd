package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

var (
	// CacheHits tracks fresh entries served by store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of catalog cache hits",
		},
		[]string{"store"}, // "memory", "redis"
	)

	// CacheMisses tracks lookups with no entry
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of catalog cache misses",
		},
		[]string{"store"},
	)

	// CacheStale tracks entries found but older than the TTL
	CacheStale = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_stale_total",
			Help: "Total number of catalog cache entries found stale",
		},
		[]string{"store"},
	)

	// CacheStoredBytes tracks payload bytes written to a store
	CacheStoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_stored_bytes_total",
			Help: "Total payload bytes written to the catalog cache",
		},
		[]string{"store"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of catalog cache operation errors",
		},
		[]string{"store", "operation"}, // "get", "set", "has"
	)
)

// StoreLabel returns the metrics label for a store implementation.
func StoreLabel(s Store) string {
	switch s.(type) {
	case *MemoryStore:
		return storeMemory
	case *RedisStore:
		return storeRedis
	default:
		return "custom"
	}
}
