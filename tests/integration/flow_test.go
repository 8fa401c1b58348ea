//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/anilist-browser/internal/testutil"
	"github.com/Sternrassler/anilist-browser/internal/web"
	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/pagination"
	"github.com/Sternrassler/anilist-browser/pkg/profile"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// stack is a browser wired to Redis and a mock catalog.
type stack struct {
	redis  *redis.Client
	mock   *testutil.MockAniList
	client *client.Client
	server *httptest.Server
	http   *http.Client
}

func newStack(t *testing.T) *stack {
	t.Helper()

	redisClient, cleanup := setupRedis(t)
	t.Cleanup(cleanup)

	mock := testutil.NewMockAniList()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig(redisClient, "anilist-browser-integration/1.0")
	cfg.Endpoint = mock.URL()
	cfg.RequestsPerMinute = 6000
	cfg.Burst = 50
	cfg.Retry = client.UniformRetryPolicy(client.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2,
	})
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	handler := web.NewServer(web.Options{
		Fetcher:        c,
		Redis:          redisClient,
		ProfileStorage: web.StorageRedis,
		ProfileTTL:     time.Hour,
		PerPage:        3,
		RequestTimeout: 30 * time.Second,
	})
	t.Cleanup(handler.Close)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}

	return &stack{
		redis:  redisClient,
		mock:   mock,
		client: c,
		server: srv,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Retry string          `json:"retry"`
}

type mediaData struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
	Cached bool   `json:"cached"`
	Next   string `json:"next"`
}

func (s *stack) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()

	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, env
}

func (s *stack) createProfile(t *testing.T) {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/api/v1/profile", `{"username":"faye","jobTitle":"gambler"}`)
	if status != http.StatusCreated {
		t.Fatalf("create profile status = %d, want 201", status)
	}
}

// TestFullRequestFlow covers gate, fetch, and cache: the second read of a
// page never reaches the catalog.
func TestFullRequestFlow(t *testing.T) {
	s := newStack(t)
	s.mock.SetFallback(testutil.NewHealthyResponse(testutil.PageBody(1, true)))

	status, _ := s.do(t, http.MethodGet, "/api/v1/media", "")
	if status != http.StatusForbidden {
		t.Fatalf("media without profile status = %d, want 403", status)
	}

	s.createProfile(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/media?page=1", "")
	if status != http.StatusOK {
		t.Fatalf("first read status = %d (%s), want 200", status, env.Error)
	}
	var first mediaData
	if err := json.Unmarshal(env.Data, &first); err != nil {
		t.Fatalf("decode media: %v", err)
	}
	if first.Cached || len(first.Items) != 3 {
		t.Errorf("first read cached=%v items=%d, want fresh page of 3", first.Cached, len(first.Items))
	}
	if first.Next != "/api/v1/media?page=2" {
		t.Errorf("Next = %q, want /api/v1/media?page=2", first.Next)
	}

	status, env = s.do(t, http.MethodGet, "/api/v1/media?page=1", "")
	if status != http.StatusOK {
		t.Fatalf("second read status = %d, want 200", status)
	}
	var second mediaData
	if err := json.Unmarshal(env.Data, &second); err != nil {
		t.Fatalf("decode media: %v", err)
	}
	if !second.Cached {
		t.Error("second read was not served from cache")
	}
	if got := s.mock.RequestCount(); got != 1 {
		t.Errorf("upstream requests = %d, want 1", got)
	}
}

func TestInvalidPageRedirect(t *testing.T) {
	s := newStack(t)
	s.createProfile(t)

	status, _ := s.do(t, http.MethodGet, "/api/v1/media?page=0", "")
	if status != http.StatusFound {
		t.Errorf("status = %d, want 302", status)
	}
	if s.mock.RequestCount() != 0 {
		t.Errorf("upstream requests = %d, want 0", s.mock.RequestCount())
	}
}

func TestRateLimitRecovery(t *testing.T) {
	s := newStack(t)
	s.createProfile(t)
	s.mock.Enqueue(testutil.NewRateLimitResponse(1))
	s.mock.SetFallback(testutil.NewHealthyResponse(testutil.PageBody(2, false)))

	status, env := s.do(t, http.MethodGet, "/api/v1/media?page=2", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s), want 200 after retry", status, env.Error)
	}
	if got := s.mock.RequestCount(); got != 2 {
		t.Errorf("upstream requests = %d, want 2", got)
	}
}

func TestRetry5xxErrors(t *testing.T) {
	s := newStack(t)
	s.createProfile(t)
	s.mock.SetFallback(testutil.NewServerErrorResponse())

	status, env := s.do(t, http.MethodGet, "/api/v1/media?page=4", "")
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if env.Retry != "/api/v1/media?page=4" {
		t.Errorf("retry = %q, want the failed URL", env.Retry)
	}
	if got := s.mock.RequestCount(); got != 3 {
		t.Errorf("upstream requests = %d, want 3 attempts", got)
	}

	// A failure is never cached.
	s.mock.SetFallback(testutil.NewHealthyResponse(testutil.PageBody(4, false)))
	status, _ = s.do(t, http.MethodGet, "/api/v1/media?page=4", "")
	if status != http.StatusOK {
		t.Errorf("status after recovery = %d, want 200", status)
	}
}

func TestNoRetry4xxErrors(t *testing.T) {
	s := newStack(t)
	s.createProfile(t)
	s.mock.SetFallback(testutil.MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"errors":[{"message":"Invalid perPage","status":400}]}`,
	})

	status, _ := s.do(t, http.MethodGet, "/api/v1/media", "")
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if got := s.mock.RequestCount(); got != 1 {
		t.Errorf("upstream requests = %d, want 1", got)
	}
}

func TestProfileStoredInRedis(t *testing.T) {
	s := newStack(t)
	s.createProfile(t)

	ctx := context.Background()
	keys, err := s.redis.Keys(ctx, profile.RedisKeyPrefix+":*:"+profile.Key).Result()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("profile keys = %v, want one", keys)
	}

	ttl, err := s.redis.TTL(ctx, keys[0]).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("profile TTL = %v, want within (0, 1h]", ttl)
	}

	status, _ := s.do(t, http.MethodDelete, "/api/v1/profile", "")
	if status != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", status)
	}
	if n, _ := s.redis.Exists(ctx, keys[0]).Result(); n != 0 {
		t.Error("profile key still present after delete")
	}
}

// TestWarmThenServe warms a range of pages, after which the web layer
// serves them without touching the catalog.
func TestWarmThenServe(t *testing.T) {
	s := newStack(t)
	s.createProfile(t)

	prefetcher := pagination.NewPrefetcher(s.client, pagination.PrefetchConfig{
		Concurrency: 2,
		PerPage:     3,
	})
	pages, err := prefetcher.Warm(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("warmed %d pages, want 3", len(pages))
	}
	before := s.mock.RequestCount()

	status, env := s.do(t, http.MethodGet, "/api/v1/media?page=2", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var out mediaData
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode media: %v", err)
	}
	if !out.Cached {
		t.Error("warmed page was not served from cache")
	}
	if s.mock.RequestCount() != before {
		t.Errorf("upstream requests grew from %d to %d", before, s.mock.RequestCount())
	}
}
