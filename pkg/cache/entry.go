package cache

import (
	"time"
)

// DefaultTTL applies when the caller does not configure one.
const DefaultTTL = 5 * time.Minute

// Entry is one cached page response.
type Entry struct {
	// Data is the raw upstream response body.
	Data []byte `json:"data"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry wraps a response body with an expiry ttl from now.
// A non-positive ttl uses DefaultTTL.
func NewEntry(data []byte, ttl time.Duration) *Entry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Entry{
		Data:     data,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
