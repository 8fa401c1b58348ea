package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anilist_rate_limit_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anilist_rate_limit_waits_total",
		Help: "Total number of requests delayed until the rate limit window reset",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anilist_rate_limit_throttles_total",
		Help: "Total number of requests throttled because the window was nearly used up",
	})
)

// Tracker records the upstream window and gates outgoing requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	// MaxWait caps how long Wait blocks for a window reset.
	MaxWait time.Duration

	// ThrottleDelay is the pause applied while the budget is low.
	ThrottleDelay time.Duration
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		MaxWait:       DefaultWindow,
		ThrottleDelay: 1 * time.Second,
	}
}

// GetState retrieves the current window from Redis.
// Returns a full-budget state if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	fields, err := t.redis.HGetAll(ctx, RedisKeyState).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if len(fields) == 0 {
		now := time.Now()
		return &State{
			Limit:      DefaultLimit,
			Remaining:  DefaultLimit,
			ResetAt:    now.Add(DefaultWindow),
			LastUpdate: now,
		}, nil
	}

	state := &State{}
	if state.Limit, err = atoiField(fields, "limit"); err != nil {
		return nil, err
	}
	if state.Remaining, err = atoiField(fields, "remaining"); err != nil {
		return nil, err
	}
	resetUnix, err := atoiField(fields, "reset_at")
	if err != nil {
		return nil, err
	}
	updatedUnix, err := atoiField(fields, "last_update")
	if err != nil {
		return nil, err
	}
	state.ResetAt = time.Unix(int64(resetUnix), 0)
	state.LastUpdate = time.Unix(int64(updatedUnix), 0)

	return state, nil
}

// UpdateFromHeaders parses the upstream rate limit headers and stores them.
// Responses without X-RateLimit-Remaining leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := StateFromHeaders(headers, time.Now())
	if err != nil || !ok {
		return err
	}

	ttl := state.TimeUntilReset()
	if ttl < DefaultWindow {
		ttl = DefaultWindow
	}

	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, RedisKeyState, map[string]any{
		"limit":       state.Limit,
		"remaining":   state.Remaining,
		"reset_at":    state.ResetAt.Unix(),
		"last_update": state.LastUpdate.Unix(),
	})
	pipe.Expire(ctx, RedisKeyState, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.Set(float64(state.Remaining))

	switch {
	case state.Exhausted():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit window exhausted - requests will wait for reset")
	case state.NeedsThrottling():
		t.logger.Info().
			Int("remaining", state.Remaining).
			Msg("Rate limit window low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Msg("Rate limit state updated")
	}

	return nil
}

// Wait blocks while the shared window is exhausted (at most MaxWait) and
// pauses briefly while it is nearly used up. It returns the context error
// if ctx ends first.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	var delay time.Duration
	switch {
	case state.Exhausted():
		delay = state.TimeUntilReset()
		if delay > t.MaxWait {
			delay = t.MaxWait
		}
		rateLimitWaitsTotal.Inc()
		t.logger.Warn().
			Dur("wait", delay).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit window exhausted - waiting for reset")
	case state.NeedsThrottling():
		delay = t.ThrottleDelay
		rateLimitThrottlesTotal.Inc()
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Dur("delay", delay).
			Msg("Rate limit window low - throttling request")
	default:
		return nil
	}

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StateFromHeaders builds a State from response headers. ok is false when
// the response carries no X-RateLimit-Remaining header.
func StateFromHeaders(headers http.Header, now time.Time) (*State, bool, error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	state := &State{
		Limit:      DefaultLimit,
		Remaining:  remain,
		ResetAt:    now.Add(DefaultWindow),
		LastUpdate: now,
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		resetUnix, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = time.Unix(resetUnix, 0)
	} else if d, ok := ParseRetryAfter(headers); ok {
		state.ResetAt = now.Add(d)
	}

	return state, true, nil
}

var errMissingField = errors.New("rate limit state field missing")

func atoiField(fields map[string]string, name string) (int, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errMissingField, name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse rate limit field %s: %w", name, err)
	}
	return n, nil
}
