package bol

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultRetryAfter is used when a 429 response carries no usable Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// AuthError reports a rejected client-credentials exchange. It is not retried.
type AuthError struct {
	Audience   Audience
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("bol %s token exchange rejected: status %d", e.Audience, e.StatusCode)
	}
	return fmt.Sprintf("bol %s token exchange rejected: status %d: %s", e.Audience, e.StatusCode, body)
}

// RateLimitError is returned for HTTP 429 responses. The caller decides whether
// and when to retry; the client never does.
type RateLimitError struct {
	Path       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("bol rate limit exceeded for %s: retry after %s", e.Path, e.RetryAfter)
}

// RetryAfterSeconds returns the retry hint in whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(e.RetryAfter / time.Second)
}

// TransportError wraps network and payload decoding failures. The unit of work
// that hit it stays retryable on the next scheduled pass.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bol %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is or wraps an *AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsRateLimited reports whether err is or wraps a *RateLimitError.
func IsRateLimited(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

// IsTransient reports whether err is or wraps a *TransportError.
func IsTransient(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
