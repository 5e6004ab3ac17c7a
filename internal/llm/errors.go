package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrEmptyContent is returned when a response is well formed but carries no message content.
var ErrEmptyContent = errors.New("model returned empty content")

// StatusError is a non-2xx response from the completion endpoint.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// ModelCallFailed is returned once a call has used up its attempts or hit a
// non-retryable error.
type ModelCallFailed struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *ModelCallFailed) Error() string {
	return fmt.Sprintf("model call for %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *ModelCallFailed) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed attempt may be tried again: timeouts,
// transport errors, empty content, 429 and 5xx are; other 4xx and caller
// cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return statusErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyContent) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Undecodable bodies and other transport failures.
	return true
}
