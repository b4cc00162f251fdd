package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrEmptyEndpoint is returned when a request is made without an endpoint path.
	ErrEmptyEndpoint = errors.New("endpoint path is required")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors and any other non-2xx
	// status that reaches the caller, such as a 304 or a redirect without a
	// Location the transport could not follow.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures, including requests
	// blocked before reaching the API.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassCanceled represents caller-initiated cancellation or deadline.
	ErrorClassCanceled ErrorClass = "canceled"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is a failed catalog API request.
type APIError struct {
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
	ErrorClass ErrorClass
	// Message is the API's {"error": "..."} text or the HTTP status text.
	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("catalog API %s error: %s: %v", e.ErrorClass, e.Message, e.Err)
		}
		return fmt.Sprintf("catalog API %s error: %s", e.ErrorClass, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("catalog API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf returns the ErrorClass of err, or "" if err is not an *APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// classifyStatus categorizes a non-2xx HTTP status. Redirects are followed by
// the transport, so a 3xx seen here will not change on retry and is a client
// error.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// readErrorMessage extracts {"error": "..."} from an error response,
// falling back to the status text.
func readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(body) > 0 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
			return payload.Error
		}
	}

	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will fail the same way again
		return false
	case ErrorClassServer:
		return true
	case ErrorClassNetwork:
		return true
	case ErrorClassCanceled:
		// The caller gave up
		return false
	default:
		return false
	}
}
