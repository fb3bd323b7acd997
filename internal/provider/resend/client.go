// Package resend is a client for the Resend REST API: single and batch email
// sends and audience contacts.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/pkg/httpretry"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.resend.com"

// Config holds the client settings.
type Config struct {
	APIKey     string
	AudienceID string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client is a Resend API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	audienceID string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Resend client. Requests are retried on 429 and 5xx.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		audienceID: cfg.AudienceID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout,
		}, cfg.MaxRetries),
	}
}

// SetHTTPClient replaces the transport, for tests.
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("resend: %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("resend: status %d", e.StatusCode)
}

// doRequest sends a JSON request and decodes a JSON response into out when
// out is non-nil.
func (c *Client) doRequest(ctx context.Context, method, path string, in any, out any, idempotencyKey string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "mailengine/1.0")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
