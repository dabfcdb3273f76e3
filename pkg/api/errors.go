package api

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRequestExhausted is returned when all retry attempts for one
	// logical request have failed.
	ErrRequestExhausted = errors.New("request attempts exhausted")

	// ErrNoQuestion is returned when the transport succeeds but the
	// response carries no question matching the filter.
	ErrNoQuestion = errors.New("no question available")

	// ErrContextCancelled is returned when the context is cancelled during
	// a backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass labels a failed attempt for metrics and logging. All classes
// share the same retry policy; the label only records what went wrong.
type ErrorClass string

const (
	// ErrorClassRateLimit marks HTTP 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassClient marks other 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer marks 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork marks transport failures and undecodable bodies.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError describes one failed attempt against the indexed API.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quiz API %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("quiz API %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// classOf extracts the error class from an attempt failure.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}
