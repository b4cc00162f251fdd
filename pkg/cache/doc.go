// Package cache provides the response cache used by the catalog client.
//
// Entries are keyed by endpoint path plus the serialized query parameters and
// carry the raw response payload together with the time it was fetched.
// Freshness is decided by the reader against its own TTL: entries are never
// deleted, a stale entry is simply overwritten by the next successful fetch.
// The cache is unbounded; there is no LRU or size-based eviction.
//
// # Stores
//
// Two Store implementations are provided:
//
//   - MemoryStore keeps entries in a mutex-guarded map owned by one client.
//   - RedisStore keeps JSON-encoded entries in Redis so several proxy
//     instances can share them.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore()
//
//	key := cache.Key{
//		Endpoint:    "/api/products",
//		QueryParams: url.Values{"source": []string{"Voltum"}, "page": []string{"1"}},
//	}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) || !entry.IsFresh(time.Now(), cache.DefaultTTL) {
//		// fetch from the API and store.Set(ctx, key, freshEntry)
//	}
//
// Concurrent fetches for the same key are not coalesced: two callers that
// miss at the same time both reach the API and the last Set wins.
//
// # Metrics
//
//   - catalog_cache_hits_total{store} - fresh entries served
//   - catalog_cache_misses_total{store} - keys with no entry
//   - catalog_cache_stale_total{store} - entries found but older than the TTL
//   - catalog_cache_stored_bytes_total{store} - payload bytes written
//   - catalog_cache_errors_total{store,operation} - store operation errors
package cache
