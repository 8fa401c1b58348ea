// Package cache stores raw catalog page responses in Redis so that moving
// back and forth between pages does not refetch them.
//
// Entries are keyed by the query operation and its (page, perPage)
// arguments, the same arguments that distinguish one page from another
// upstream. Each entry carries its own expiry and Redis drops it once the
// TTL runs out.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.PageKey{Operation: "GetAnimePage", Page: 3, PerPage: 20}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch upstream, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, 5*time.Minute))
//	}
//
// # Metrics
//
//   - anilist_cache_hits_total - Cache hits
//   - anilist_cache_misses_total - Cache misses
//   - anilist_cache_stored_bytes_total - Bytes written to the cache
//   - anilist_cache_errors_total{operation} - Cache operation errors
package cache
