// Package wandb is a client for the subset of the WandB backend API the
// sweeper needs: querying runs, updating run config and summary, and
// creating sweeps. The backend speaks GraphQL over HTTP; authentication is
// HTTP basic auth with user "api" and the API key as password.
package wandb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.wandb.ai"
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type ConfigOption func(*Config)

func WithBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = url
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

func WithMaxRetries(retries int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

func WithHTTPClient(client *http.Client) ConfigOption {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

type Client struct {
	cfg      *Config
	http     *http.Client
	endpoint string
}

func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		cfg:      cfg,
		http:     httpClient,
		endpoint: baseURL + "/graphql",
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do posts one GraphQL request and decodes the data payload into out.
// Transport errors and 5xx/429 responses are retried with capped
// exponential backoff; GraphQL errors are terminal.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	retries := c.cfg.MaxRetries
	if retries <= 0 {
		retries = defaultRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, backoffDelay(attempt)); err != nil {
				return err
			}
		}

		data, retryable, err := c.post(ctx, body)
		if err != nil {
			lastErr = err
			if retryable {
				continue
			}
			return err
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", retries+1, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (data json.RawMessage, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.SetBasicAuth("api", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request to %s failed: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("server returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("server returned %s: %s", resp.Status, payload)
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(payload, &gqlResp); err != nil {
		return nil, false, fmt.Errorf("failed to decode GraphQL response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, false, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	return gqlResp.Data, false, nil
}

func backoffDelay(attempt int) time.Duration {
	delay := 250 * time.Millisecond << (attempt - 1)
	if delay > 2*time.Second {
		delay = 2 * time.Second
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
