// Package testutil provides testing utilities for the AniList client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines one canned GraphQL endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is the decoded body of a request seen by the mock.
type RecordedRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]int `json:"variables"`
	UserAgent     string         `json:"-"`
}

// MockAniList is a configurable mock AniList GraphQL server. Queued
// responses are served in order; once the queue is empty the fallback
// response is served.
type MockAniList struct {
	server *httptest.Server

	mu       sync.Mutex
	queue    []MockResponse
	fallback MockResponse
	requests []RecordedRequest
}

// NewMockAniList creates a mock that answers every request with an empty
// healthy page until told otherwise.
func NewMockAniList() *MockAniList {
	mock := &MockAniList{
		fallback: NewHealthyResponse(PageBody(1, false)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

func (m *MockAniList) handle(w http.ResponseWriter, r *http.Request) {
	var rec RecordedRequest
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &rec)
	rec.UserAgent = r.Header.Get("User-Agent")

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	resp := m.fallback
	if len(m.queue) > 0 {
		resp = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockAniList) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAniList) Close() {
	m.server.Close()
}

// Enqueue appends responses to be served in order.
func (m *MockAniList) Enqueue(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// SetFallback sets the response served when the queue is empty.
func (m *MockAniList) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// Reset clears queued responses and recorded requests.
func (m *MockAniList) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.requests = nil
}

// RequestCount returns the number of requests made to the server.
func (m *MockAniList) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every recorded request.
func (m *MockAniList) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// MediaJSON renders one well-formed upstream media record.
func MediaJSON(id int, english, native string) string {
	eng := "null"
	if english != "" {
		eng = fmt.Sprintf("%q", english)
	}
	return fmt.Sprintf(`{
		"id": %d,
		"title": {"english": %s, "romaji": "Romaji %d", "native": %q},
		"status": "FINISHED",
		"type": "ANIME",
		"startDate": {"year": 2001, "month": 4, "day": 3},
		"endDate": {"year": 2002, "month": null, "day": null},
		"description": "Synopsis <i>%d</i>",
		"coverImage": {
			"medium": "https://img.example.com/%d-m.jpg",
			"large": "https://img.example.com/%d-l.jpg"
		}
	}`, id, eng, id, native, id, id, id)
}

// PageBody renders a GraphQL Page response around the given media records.
// With no records it renders ids 1..3.
func PageBody(page int, hasNext bool, records ...string) string {
	if len(records) == 0 {
		records = []string{
			MediaJSON(page*100+1, "Title A", "題A"),
			MediaJSON(page*100+2, "Title B", "題B"),
			MediaJSON(page*100+3, "", "題C"),
		}
	}
	return fmt.Sprintf(`{"data":{"Page":{"pageInfo":{"currentPage":%d,"hasNextPage":%t,"perPage":%d},"media":[%s]}}}`,
		page, hasNext, len(records), strings.Join(records, ","))
}

// NewHealthyResponse creates a 200 OK response with rate limit headers.
func NewHealthyResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "90",
			"X-RateLimit-Remaining": "89",
			"Content-Type":          "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 response advising a retry after
// retryAfter seconds.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"data":null,"errors":[{"message":"Too Many Requests.","status":429}]}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "90",
			"X-RateLimit-Remaining": "0",
			"Retry-After":           fmt.Sprintf("%d", retryAfter),
			"X-RateLimit-Reset":     fmt.Sprintf("%d", time.Now().Add(time.Duration(retryAfter)*time.Second).Unix()),
			"Content-Type":          "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"data":null,"errors":[{"message":"Internal Server Error","status":500}]}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewGraphQLErrorResponse creates a 200 response with errors and no data.
func NewGraphQLErrorResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"data":null,"errors":[{"message":%q}]}`, message),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
