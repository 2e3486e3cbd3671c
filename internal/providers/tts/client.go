package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardloom/internal/providers"
	"cardloom/internal/services"
)

const (
	component          = "tts"
	defaultHTTPTimeout = 30 * time.Second
	defaultFormat      = "mp3"
)

// Config captures the runtime settings required to talk to the speech
// provider.
type Config struct {
	BaseURL        string
	APIKey         string
	Voice          string
	Language       string
	Format         string
	TimeoutSeconds int
}

// Client synthesizes speech via an HTTP TTS endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a speech synthesis client from the supplied
// configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = defaultFormat
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Voice:          strings.TrimSpace(cfg.Voice),
			Language:       strings.TrimSpace(cfg.Language),
			Format:         strings.TrimSpace(cfg.Format),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type synthesizeRequest struct {
	Input    string `json:"input"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format"`
}

// Synthesize performs one synthesis attempt and returns the raw audio
// bytes. Failures are classified into the shared taxonomy; the caller
// decides whether to retry.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrNotFound, component, "synthesize", "empty input text", nil)
	}
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "synthesize", "base_url required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "synthesize", "api_key required", nil)
	}

	payload := synthesizeRequest{
		Input:    text,
		Voice:    c.cfg.Voice,
		Language: c.cfg.Language,
		Format:   c.cfg.Format,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "synthesize", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "synthesize", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, component, "synthesize",
			fmt.Sprintf("http error (timeout=%s)", c.httpClient.Timeout), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "synthesize", "read body", err)
	}
	retryAfter, _ := providers.ParseRetryAfter(resp.Header.Get("Retry-After"))
	if classifyErr := providers.ClassifyStatus(component, "synthesize", resp.StatusCode, retryAfter, bodySnippet(resp, body)); classifyErr != nil {
		return nil, classifyErr
	}
	if len(body) == 0 {
		return nil, services.Wrap(services.ErrTransient, component, "synthesize", "empty audio payload", nil)
	}
	return body, nil
}

// bodySnippet avoids stuffing binary audio into error messages.
func bodySnippet(resp *http.Response, body []byte) string {
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "json") || strings.HasPrefix(contentType, "text/") {
		return string(body)
	}
	return fmt.Sprintf("<%d bytes, %s>", len(body), contentType)
}
