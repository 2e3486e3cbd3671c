package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cardloom/internal/providers"
	"cardloom/internal/services"
)

const (
	component          = "images"
	defaultHTTPTimeout = 30 * time.Second
)

// Config captures the runtime settings required to talk to the image
// search provider.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client searches for and downloads illustration photos.
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

// NewClient constructs an image search client from the supplied
// configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type searchResponse struct {
	Photos []struct {
		Src struct {
			Medium   string `json:"medium"`
			Original string `json:"original"`
		} `json:"src"`
	} `json:"photos"`
}

// SearchAndFetch performs one search attempt for query and downloads the
// best hit. A query with no matching photos classifies as NotFound, which
// is terminal and valid; the caller must not retry it.
func (c *Client) SearchAndFetch(ctx context.Context, query string) ([]byte, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrNotFound, component, "search", "empty query", nil)
	}
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "search", "base_url required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "search", "api_key required", nil)
	}

	photoURL, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, photoURL)
}

func (c *Client) search(ctx context.Context, query string) (string, error) {
	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "search", "parse base_url", err)
	}
	values := endpoint.Query()
	values.Set("query", query)
	values.Set("per_page", "1")
	endpoint.RawQuery = values.Encode()

	body, err := c.get(ctx, "search", endpoint.String())
	if err != nil {
		return "", err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrTransient, component, "search", "decode response", err)
	}
	if len(parsed.Photos) == 0 {
		return "", services.Wrap(services.ErrNotFound, component, "search",
			fmt.Sprintf("no photos for query %q", query), nil)
	}
	src := parsed.Photos[0].Src
	photoURL := strings.TrimSpace(src.Medium)
	if photoURL == "" {
		photoURL = strings.TrimSpace(src.Original)
	}
	if photoURL == "" {
		return "", services.Wrap(services.ErrNotFound, component, "search", "hit carried no downloadable source", nil)
	}
	return photoURL, nil
}

func (c *Client) fetch(ctx context.Context, photoURL string) ([]byte, error) {
	body, err := c.get(ctx, "fetch", photoURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, services.Wrap(services.ErrTransient, component, "fetch", "empty image payload", nil)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, operation, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, operation, "build request", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, component, operation,
			fmt.Sprintf("http error (timeout=%s)", c.httpClient.Timeout), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, operation, "read body", err)
	}
	retryAfter, _ := providers.ParseRetryAfter(resp.Header.Get("Retry-After"))
	if classifyErr := providers.ClassifyStatus(component, operation, resp.StatusCode, retryAfter, snippetFor(resp, body)); classifyErr != nil {
		return nil, classifyErr
	}
	return body, nil
}

func snippetFor(resp *http.Response, body []byte) string {
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "json") || strings.HasPrefix(contentType, "text/") {
		return string(body)
	}
	return fmt.Sprintf("<%d bytes, %s>", len(body), contentType)
}
