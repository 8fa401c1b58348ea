package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures and attempt timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassGraphQL represents a 2xx response without usable data.
	ErrorClassGraphQL ErrorClass = "graphql"
)

// APIError is a failed catalog request with its classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string

	// RetryAfter is the server-advised delay on rate limited responses.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("anilist %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("anilist %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of the first APIError in err's chain, or "".
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// UserMessage turns a fetch error into text fit for the end user. The
// class of the last upstream failure wins over a later cancellation.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	const cancelled = "The request was cancelled."

	switch ClassOf(err) {
	case ErrorClassRateLimit:
		return "The anime catalog is receiving too many requests. Please try again later."
	case ErrorClassServer:
		return "The anime catalog is having problems right now. Please try again."
	case ErrorClassClient, ErrorClassGraphQL:
		return "The anime catalog rejected the request."
	case ErrorClassNetwork:
		if errors.Is(err, context.Canceled) {
			return cancelled
		}
		return "The anime catalog is unreachable. Check your network connection and try again."
	}
	if errors.Is(err, ErrContextCancelled) || errors.Is(err, context.Canceled) {
		return cancelled
	}
	return "Something went wrong while loading anime. Please try again."
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
