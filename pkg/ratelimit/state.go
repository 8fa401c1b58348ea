// Package ratelimit tracks the upstream catalog's request window from its
// X-RateLimit-* and Retry-After headers and delays requests while the
// window is exhausted. State lives in Redis so every browser instance
// behind one egress address sees the same window.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// RedisKeyState is the hash holding the shared window state.
const RedisKeyState = "anilist:rate_limit:state"

// Upstream headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

const (
	// DefaultLimit is the documented number of requests per minute.
	DefaultLimit = 90

	// DefaultWindow is used when the upstream gives no reset time.
	DefaultWindow = 60 * time.Second

	// ThresholdWarning starts throttling when fewer requests remain.
	ThresholdWarning = 10
)

// State is the last known upstream request window.
type State struct {
	// Limit is the request budget of the window (X-RateLimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the unused budget (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window refills.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// Exhausted reports whether no requests remain before ResetAt.
func (s *State) Exhausted() bool {
	return s.Remaining <= 0 && time.Now().Before(s.ResetAt)
}

// NeedsThrottling reports whether the budget is low but not yet gone.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.Exhausted() && time.Now().Before(s.ResetAt)
}

// TimeUntilReset returns 0 once the reset time has passed.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// ParseRetryAfter reads Retry-After as delta seconds or an HTTP date.
func ParseRetryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get(HeaderRetryAfter)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
