package providers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"cardloom/internal/services"
)

// ClassifyStatus maps a non-2xx provider status code onto the shared error
// taxonomy. Returns nil for success codes.
func ClassifyStatus(component, operation string, statusCode int, retryAfter time.Duration, body string) error {
	body = summarizeBody(body)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, component, operation, body, nil)
	case statusCode == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, component, operation, "",
			&services.RateLimitError{RetryAfter: retryAfter, Detail: body})
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, component, operation,
			"credentials rejected (http "+strconv.Itoa(statusCode)+"): "+body, nil)
	case statusCode == http.StatusRequestTimeout, statusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, component, operation,
			"http "+strconv.Itoa(statusCode)+": "+body, nil)
	default:
		return services.Wrap(services.ErrConfiguration, component, operation,
			"unexpected http "+strconv.Itoa(statusCode)+": "+body, nil)
	}
}

// ParseRetryAfter interprets a Retry-After header as either delta seconds or
// an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarizeBody(body string) string {
	trimmed := strings.Join(strings.Fields(strings.TrimSpace(body)), " ")
	const limit = 160
	runes := []rune(trimmed)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return trimmed
}
