package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the Gateway.
var (
	// ErrRateLimited indicates a non-blocking call found no admission token.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTimeout indicates a per-attempt timeout elapsed.
	ErrTimeout = errors.New("request timed out")

	// ErrTransport indicates a network-level failure.
	ErrTransport = errors.New("transport error")

	// ErrRetriesExhausted indicates all retry attempts failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// StatusError represents a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// IsRetryable reports whether an error represents a transient condition that
// the Gateway would have retried: timeouts, transport failures, 5xx and 429.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	return false
}

// IsExhausted reports whether an error came from exhausting all retries.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}
