package query

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
	component          = "query"
	defaultHTTPTimeout = 20 * time.Second

	systemPrompt = "You turn a vocabulary word and an example sentence into a short, " +
		"concrete stock-photo search phrase in English. Respond with the phrase only: " +
		"no quotes, no punctuation, at most six words."
)

// Config captures the runtime settings for the enhancement model.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// Client wraps an OpenRouter-style chat completion endpoint.
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

// NewClient constructs an enhancement client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Enhance returns an improved image search phrase for the given word in its
// context. An unusable response is a transient failure; callers treat any
// error as "use the plain word instead".
func (c *Client) Enhance(ctx context.Context, word, sentence string) (string, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return "", services.Wrap(services.ErrNotFound, component, "enhance", "empty word", nil)
	}
	if c.cfg.BaseURL == "" {
		return "", services.Wrap(services.ErrConfiguration, component, "enhance", "base_url required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, component, "enhance", "api_key required", nil)
	}

	userPrompt := "Word: " + word
	if trimmed := strings.TrimSpace(sentence); trimmed != "" {
		userPrompt += "\nExample: " + trimmed
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "enhance", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "enhance", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrTransient, component, "enhance",
			fmt.Sprintf("http error (timeout=%s)", c.httpClient.Timeout), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, component, "enhance", "read body", err)
	}
	retryAfter, _ := providers.ParseRetryAfter(resp.Header.Get("Retry-After"))
	if classifyErr := providers.ClassifyStatus(component, "enhance", resp.StatusCode, retryAfter, string(body)); classifyErr != nil {
		return "", classifyErr
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrTransient, component, "enhance", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrTransient, component, "enhance",
			"api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	for _, choice := range completion.Choices {
		if phrase := sanitizePhrase(choice.Message.Content); phrase != "" {
			return phrase, nil
		}
	}
	return "", services.Wrap(services.ErrTransient, component, "enhance", "empty completion", nil)
}

// sanitizePhrase strips quotes and collapses whitespace; models occasionally
// decorate their answer despite the prompt.
func sanitizePhrase(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.Trim(trimmed, `"'`)
	return strings.Join(strings.Fields(trimmed), " ")
}
