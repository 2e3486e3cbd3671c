package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound marks a provider response that legitimately contained no
	// result (e.g. no image matched the query). Terminal, never retried.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited marks a provider rejection due to request volume.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks network, timeout, and server-side failures that a
	// later attempt may succeed on.
	ErrTransient = errors.New("transient failure")
	// ErrConfiguration marks unusable setup (missing credentials, bad base
	// URL). Surfaced immediately; retrying cannot fix it.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// RateLimitError carries an optional server-suggested retry delay alongside
// the rate-limit classification. RetryAfter of zero means no hint was given.
type RateLimitError struct {
	RetryAfter time.Duration
	Detail     string
}

func (e *RateLimitError) Error() string {
	detail := strings.TrimSpace(e.Detail)
	if detail == "" {
		detail = "too many requests"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s (retry after %s)", detail, e.RetryAfter)
	}
	return "rate limited: " + detail
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterHint extracts the server-suggested delay from an error chain.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}

// Retryable reports whether err belongs to a category the caller should
// retry with backoff. NotFound and configuration errors are terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
