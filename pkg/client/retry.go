package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anilist_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anilist_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anilist_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps computed delays and server-advised waits.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy maps retryable error classes to their backoff settings.
type RetryPolicy map[ErrorClass]RetryConfig

// DefaultRetryPolicy returns one policy for every retryable class: three
// attempts with exponential backoff, with per-class base delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ErrorClassServer: {
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		},
		// MaxBackoff caps the server-advised Retry-After.
		ErrorClassRateLimit: {
			MaxAttempts:       3,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		},
		ErrorClassNetwork: {
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// UniformRetryPolicy applies one config to every retryable class.
func UniformRetryPolicy(cfg RetryConfig) RetryPolicy {
	return RetryPolicy{
		ErrorClassServer:    cfg,
		ErrorClassRateLimit: cfg,
		ErrorClassNetwork:   cfg,
	}
}

// For returns the config for an error class, or DefaultRetryConfig.
func (p RetryPolicy) For(errorClass ErrorClass) RetryConfig {
	if cfg, ok := p[errorClass]; ok {
		return cfg
	}
	return DefaultRetryConfig()
}

// jitterFactor returns a multiplier in [0.8, 1.2).
var jitterFactor = func() float64 {
	return 0.8 + rand.Float64()*0.4
}

// backoffDelay computes InitialBackoff × Multiplier^retry scaled by jitter,
// capped at MaxBackoff. retry is 0 for the first retry.
func backoffDelay(cfg RetryConfig, retry int, jitter float64) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(cfg.InitialBackoff) * math.Pow(mult, float64(retry)) * jitter
	if cfg.MaxBackoff > 0 && d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	return time.Duration(d)
}

// retryDelay prefers a server-advised Retry-After, capped at MaxBackoff.
func retryDelay(cfg RetryConfig, retry int, err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		if cfg.MaxBackoff > 0 && apiErr.RetryAfter > cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
		return apiErr.RetryAfter
	}
	return backoffDelay(cfg, retry, jitterFactor())
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// class, or reaches the attempt cap of the failing class. A backoff that
// would outlast the context deadline counts as exhaustion. Every error it
// returns wraps the last upstream failure. It returns the number of
// attempts made.
func retryWithBackoff(
	ctx context.Context,
	policy RetryPolicy,
	logger zerolog.Logger,
	fn func(attempt int) error,
	classify func(error) ErrorClass,
) (int, error) {
	var lastErr error
	var errorClass ErrorClass
	attempt := 0

	for {
		attempt++
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		if ctx.Err() != nil {
			// Report the failure behind the last backoff, not the one
			// the ending context caused.
			if lastErr == nil {
				lastErr = err
			}
			return attempt, fmt.Errorf("%w (%v): %w", ErrContextCancelled, ctx.Err(), lastErr)
		}
		lastErr = err

		errorClass = classify(err)
		if !shouldRetry(errorClass) {
			return attempt, lastErr
		}

		config := policy.For(errorClass)
		if attempt >= config.MaxAttempts {
			break
		}

		delay := retryDelay(config, attempt-1, err)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			logger.Warn().
				Err(err).
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Deadline ends before next retry - giving up")
			break
		}
		retriesTotal.WithLabelValues(string(errorClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(delay.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return attempt, fmt.Errorf("%w (%v): %w", ErrContextCancelled, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", string(errorClass)).
		Int("attempts", attempt).
		Msg("Retry attempts exhausted")

	return attempt, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
}
