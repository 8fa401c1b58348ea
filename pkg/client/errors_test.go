package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"client error should not retry", ErrorClassClient, false},
		{"graphql error should not retry", ErrorClassGraphQL, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := shouldRetry(tt.errorClass); result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "anilist network error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "Not Found.",
			},
			expected: "anilist client error (status 404): Not Found.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &APIError{ErrorClass: ErrorClassNetwork, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Expected errors.Is to find the wrapped error")
	}
}

func TestClassOf(t *testing.T) {
	wrapped := fmt.Errorf("%w after 3 attempts: %w", ErrRetryExhausted,
		&APIError{ErrorClass: ErrorClassRateLimit})

	if got := ClassOf(wrapped); got != ErrorClassRateLimit {
		t.Errorf("ClassOf(wrapped) = %q, want rate_limit", got)
	}
	if got := ClassOf(errors.New("plain")); got != "" {
		t.Errorf("ClassOf(plain) = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"nil", nil, ""},
		{"rate limit", &APIError{ErrorClass: ErrorClassRateLimit}, "try again later"},
		{"network", &APIError{ErrorClass: ErrorClassNetwork}, "network connection"},
		{"server", &APIError{ErrorClass: ErrorClassServer}, "having problems"},
		{"client", &APIError{ErrorClass: ErrorClassClient}, "rejected"},
		{"cancelled", fmt.Errorf("%w: %v", ErrContextCancelled, context.Canceled), "cancelled"},
		{"cancelled after rate limit", fmt.Errorf("%w (%v): %w", ErrContextCancelled, context.DeadlineExceeded,
			&APIError{ErrorClass: ErrorClassRateLimit}), "try again later"},
		{"network wait cancelled", &APIError{ErrorClass: ErrorClassNetwork, Err: context.Canceled}, "cancelled"},
		{"unknown", errors.New("odd"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if tt.contains == "" {
				if got != "" {
					t.Errorf("UserMessage(nil) = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("UserMessage() = %q, want it to contain %q", got, tt.contains)
			}
		})
	}
}
