// Package client provides the AniList GraphQL page client with retries,
// client-side rate limiting, shared rate-limit tracking and page caching.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Sternrassler/anilist-browser/pkg/cache"
	"github.com/Sternrassler/anilist-browser/pkg/media"
	"github.com/Sternrassler/anilist-browser/pkg/ratelimit"
)

// DefaultEndpoint is the public AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// defaultRetryAfter is assumed when a 429 carries no Retry-After header.
const defaultRetryAfter = 60 * time.Second

// Prometheus metrics for AniList client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anilist_requests_total",
		Help: "Total AniList requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anilist_request_duration_seconds",
		Help:    "AniList request attempt duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anilist_errors_total",
		Help: "Total AniList errors by class",
	}, []string{"class"})

	recordsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anilist_records_rejected_total",
		Help: "Media records dropped during normalization by failing field",
	}, []string{"reason"})
)

// Client fetches pages of anime from AniList.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the GraphQL URL.
	Endpoint string

	// UserAgent is sent with every request.
	UserAgent string

	// Redis backs the page cache and the shared rate-limit state.
	// Both are disabled when nil.
	Redis *redis.Client

	// RequestsPerMinute paces outgoing attempts in this process.
	RequestsPerMinute int

	// Burst is the token bucket size of the pacing limiter.
	Burst int

	// CacheTTL is how long a fetched page is served from cache.
	// Zero disables caching.
	CacheTTL time.Duration

	// AttemptTimeout bounds a single HTTP attempt.
	AttemptTimeout time.Duration

	// Retry holds backoff settings per retryable error class.
	Retry RetryPolicy

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Endpoint:          DefaultEndpoint,
		UserAgent:         userAgent,
		Redis:             redis,
		RequestsPerMinute: ratelimit.DefaultLimit,
		Burst:             5,
		CacheTTL:          cache.DefaultTTL,
		AttemptTimeout:    10 * time.Second,
		Retry:             DefaultRetryPolicy(),
	}
}

// New creates a new AniList client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("requests_per_minute must be > 0 (got %d)", cfg.RequestsPerMinute)
	}
	if cfg.AttemptTimeout <= 0 {
		return nil, fmt.Errorf("attempt_timeout must be > 0 (got %s)", cfg.AttemptTimeout)
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("cache_ttl must be >= 0 (got %s)", cfg.CacheTTL)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryPolicy()
	}

	logger := log.With().Str("component", "anilist-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.Burst),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.tracker = ratelimit.NewTracker(cfg.Redis, log.With().Str("component", "rate-limit").Logger())
		if cfg.CacheTTL > 0 {
			c.cache = cache.NewManager(cfg.Redis)
		}
	}

	return c, nil
}

// Page is one normalized page of anime.
type Page struct {
	Items []media.Item   `json:"items"`
	Meta  media.PageMeta `json:"pageInfo"`

	// Rejected counts upstream records dropped during normalization.
	Rejected int `json:"rejected"`

	// Cached reports whether the page was served from the page cache.
	Cached bool `json:"cached"`

	// Attempts is the number of HTTP attempts made; zero on a cache hit.
	Attempts int `json:"-"`
}

// FetchPage returns page `page` of the popularity-ordered anime list.
// page is raised to 1 and perPage clamped to [1, MaxPerPage]. On failure
// no items are returned.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	perPage = media.ClampPerPage(perPage)

	logger := c.logger.With().
		Str("request_id", uuid.NewString()).
		Int("page", page).
		Int("per_page", perPage).
		Logger()

	key := cache.PageKey{Operation: OperationName, Page: page, PerPage: perPage}
	if c.cache != nil {
		if p, ok := c.fromCache(ctx, key, logger); ok {
			return p, nil
		}
	}

	payload, err := json.Marshal(graphQLRequest{
		Query:         animePageQuery,
		OperationName: OperationName,
		Variables:     pageVariables{Page: page, PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var body []byte
	attempts, err := retryWithBackoff(ctx, c.config.Retry, logger, func(attempt int) error {
		b, err := c.attempt(ctx, payload, logger.With().Int("attempt", attempt).Logger())
		if err != nil {
			return err
		}
		body = b
		return nil
	}, ClassOf)
	if err != nil {
		return nil, err
	}

	p, err := c.decodePage(body, page, perPage, logger)
	if err != nil {
		errorsTotal.WithLabelValues(string(ClassOf(err))).Inc()
		return nil, err
	}
	p.Attempts = attempts

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewEntry(body, c.config.CacheTTL)); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache page")
		}
	}

	logger.Debug().
		Int("items", len(p.Items)).
		Int("rejected", p.Rejected).
		Int("attempts", attempts).
		Msg("Fetched page")

	return p, nil
}

// Invalidate drops a cached page so the next fetch goes upstream.
func (c *Client) Invalidate(ctx context.Context, page, perPage int) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, cache.PageKey{
		Operation: OperationName,
		Page:      page,
		PerPage:   media.ClampPerPage(perPage),
	})
}

func (c *Client) fromCache(ctx context.Context, key cache.PageKey, logger zerolog.Logger) (*Page, bool) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Page cache lookup failed")
		}
		return nil, false
	}

	p, err := c.decodePage(entry.Data, key.Page, key.PerPage, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Discarding unreadable cached page")
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	p.Cached = true

	logger.Debug().Dur("age", entry.Age()).Msg("Serving page from cache")
	return p, true
}

// attempt performs a single HTTP round trip and classifies its failure.
func (c *Client) attempt(ctx context.Context, payload []byte, logger zerolog.Logger) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "pacing wait", Err: err}
	}
	if c.tracker != nil {
		if err := c.tracker.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "rate limit wait", Err: err}
			}
			logger.Warn().Err(err).Msg("Rate limit state unavailable - proceeding")
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &APIError{ErrorClass: ErrorClassClient, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if c.tracker != nil {
		if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			logger.Warn().Err(err).Msg("Failed to update rate limit state")
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    upstreamMessage(body, resp.Status),
		}
		if apiErr.ErrorClass == ErrorClassRateLimit {
			apiErr.RetryAfter = defaultRetryAfter
			if d, ok := ratelimit.ParseRetryAfter(resp.Header); ok {
				apiErr.RetryAfter = d
			}
		}
		errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Dur("retry_after", apiErr.RetryAfter).
			Msg("AniList request failed")
		return nil, apiErr
	}

	return body, nil
}

// decodePage parses a GraphQL body into a normalized Page. GraphQL errors
// are fatal only when no Page data came back.
func (c *Client) decodePage(body []byte, page, perPage int, logger zerolog.Logger) (*Page, error) {
	var gr graphQLResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, ErrorClass: ErrorClassGraphQL, Message: "decode response", Err: err}
	}

	if gr.Data == nil || gr.Data.Page == nil {
		msg := "response has no Page data"
		if len(gr.Errors) > 0 {
			msg = gr.Errors[0].Message
		}
		return nil, &APIError{StatusCode: http.StatusOK, ErrorClass: ErrorClassGraphQL, Message: msg}
	}
	for _, e := range gr.Errors {
		logger.Warn().Str("graphql_error", e.Message).Msg("Partial GraphQL errors in page response")
	}

	items, rejections := media.NormalizeAll(gr.Data.Page.Media)
	for _, rej := range rejections {
		recordsRejectedTotal.WithLabelValues(rej.Reason).Inc()
		logger.Warn().
			Str("media_id", rej.MediaID).
			Str("reason", rej.Reason).
			Err(rej.Err).
			Msg("Dropping invalid media record")
	}

	meta := media.PageMeta{CurrentPage: page, PerPage: perPage}
	if pi := gr.Data.Page.PageInfo; pi != nil {
		if pi.HasNextPage != nil {
			meta.HasNextPage = *pi.HasNextPage
		}
		if pi.PerPage != nil && *pi.PerPage >= 1 && *pi.PerPage <= media.MaxPerPage {
			meta.PerPage = *pi.PerPage
		}
	}

	return &Page{
		Items:    items,
		Meta:     meta,
		Rejected: len(rejections),
	}, nil
}

// classifyStatus maps an HTTP error status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// upstreamMessage extracts the first GraphQL error message, or fallback.
func upstreamMessage(body []byte, fallback string) string {
	var gr graphQLResponse
	if err := json.Unmarshal(body, &gr); err == nil && len(gr.Errors) > 0 && gr.Errors[0].Message != "" {
		return gr.Errors[0].Message
	}
	return fallback
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
