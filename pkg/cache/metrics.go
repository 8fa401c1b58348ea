package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks page cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anilist_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	// CacheMisses tracks page cache misses, including expired entries.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anilist_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to the cache.
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anilist_cache_stored_bytes_total",
			Help: "Total bytes written to the page cache",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anilist_cache_errors_total",
			Help: "Total number of page cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
