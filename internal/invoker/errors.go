// Package invoker executes external service calls on behalf of the pipeline
// engine, composing a per-service circuit breaker with a retry policy and
// normalizing provider failures into a typed error taxonomy.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Taxonomy sentinels for external call failures. Provider clients wrap their
// transport-level errors with one of these so the retry policy and circuit
// breaker can classify them without knowing the wire protocol.
var (
	// ErrServiceUnavailable indicates the service returned a 5xx or refused the connection.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrTimeout indicates the call exceeded its per-call deadline.
	ErrTimeout = errors.New("call timed out")
	// ErrRateLimited indicates the service rejected the call with a rate limit response.
	ErrRateLimited = errors.New("rate limited")
	// ErrAuthentication indicates the service rejected the call's credentials.
	// Never retried.
	ErrAuthentication = errors.New("authentication failed")
)

// transientSubstrings match provider error messages that indicate a failure
// likely to succeed on retry even when the error is not one of the taxonomy
// sentinels.
var transientSubstrings = []string{
	"connection reset",
	"connection refused",
	"temporarily unavailable",
	"timeout",
	"timed out",
	"rate limit",
	"overloaded",
	"too many requests",
	"try again",
}

// Transient reports whether err is eligible for retry. CircuitBreakerError
// is never transient; it short-circuits before any call is made.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		return false
	}

	if errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}

// CircuitBreakerError is returned when a call is rejected because the named
// service's breaker is open. It is never retried and never counted as a new
// breaker failure.
type CircuitBreakerError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s (retry after %s)", e.Service, e.RetryAfter.Round(time.Millisecond))
}
