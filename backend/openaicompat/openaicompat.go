package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avencia/maestro"
)

// Client implements maestro.Backend for any OpenAI-compatible API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	name    string
}

// Option configures a Client.
type Option func(*Client)

// WithName overrides the backend name (default "openai").
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates an OpenAI-compatible backend.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "https://api.groq.com/openai/v1", "http://localhost:11434/v1");
// /chat/completions is appended automatically. model is the default
// model, used when a request does not carry its own.
func New(apiKey, model, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the backend name.
func (c *Client) Name() string { return c.name }

// Generate sends a chat completions request and returns the parsed
// response. Any status other than 200 surfaces as *maestro.ErrHTTP so
// the retry middleware can classify it.
func (c *Client) Generate(ctx context.Context, req maestro.GenerateRequest) (maestro.GenerateResponse, error) {
	body := BuildBody(req, c.model)
	payload, err := json.Marshal(body)
	if err != nil {
		return maestro.GenerateResponse{}, fmt.Errorf("%s: marshal request: %w", c.name, err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return maestro.GenerateResponse{}, fmt.Errorf("%s: create request: %w", c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return maestro.GenerateResponse{}, fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return maestro.GenerateResponse{}, &maestro.ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(body),
			RetryAfter: maestro.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return maestro.GenerateResponse{}, fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return ParseResponse(chatResp), nil
}

// Compile-time interface check.
var _ maestro.Backend = (*Client)(nil)
