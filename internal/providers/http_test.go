package providers

import (
	"errors"
	"testing"
	"time"

	"cardloom/internal/services"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"ok", 200, nil},
		{"created", 201, nil},
		{"not found", 404, services.ErrNotFound},
		{"rate limited", 429, services.ErrRateLimited},
		{"unauthorized", 401, services.ErrConfiguration},
		{"forbidden", 403, services.ErrConfiguration},
		{"timeout", 408, services.ErrTransient},
		{"server error", 500, services.ErrTransient},
		{"bad gateway", 502, services.ErrTransient},
		{"bad request", 400, services.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyStatus("images", "search", tt.status, 0, "detail")
			if tt.want == nil {
				if err != nil {
					t.Errorf("status %d: unexpected error %v", tt.status, err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
			}
		})
	}
}

func TestClassifyStatusCarriesRetryAfter(t *testing.T) {
	err := ClassifyStatus("images", "search", 429, 12*time.Second, "slow down")
	hint, ok := services.RetryAfterHint(err)
	if !ok || hint != 12*time.Second {
		t.Errorf("RetryAfterHint = %v, %v; want 12s, true", hint, ok)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := ParseRetryAfter("15"); !ok || d != 15*time.Second {
		t.Errorf("seconds form: got %v, %v", d, ok)
	}
	if _, ok := ParseRetryAfter(""); ok {
		t.Error("empty header should report no hint")
	}
	if _, ok := ParseRetryAfter("-3"); ok {
		t.Error("negative seconds should report no hint")
	}
	future := time.Now().Add(30 * time.Second).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
	if d, ok := ParseRetryAfter(future); !ok || d <= 0 || d > 31*time.Second {
		t.Errorf("http-date form: got %v, %v", d, ok)
	}
}
