// Package llm is a client for OpenRouter-compatible chat-completions APIs.
// It supports plain-text and structured (JSON mode) completions with a
// single typed retry policy: transient upstream faults and malformed
// structured output are retried uniformly, everything else fails fast.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const defaultAPIURL = "https://openrouter.ai/api/v1"

// Config holds client configuration.
type Config struct {
	APIKey     string
	APIURL     string        // base URL, defaults to OpenRouter
	Referer    string        // optional HTTP-Referer attribution header
	Title      string        // optional X-Title attribution header
	Timeout    time.Duration // per-request timeout, default 120s
	MaxRetries int           // default 3
	BaseDelay  time.Duration // backoff base, default 2s
	MaxDelay   time.Duration // backoff cap, default 20s

	// OnResult, when set, observes every finished call (after retries)
	// with a status of "ok", "upstream_error", "parse_error" or "error".
	OnResult func(model, status string)
}

// Client talks to a chat-completions API.
type Client struct {
	client *http.Client
	cfg    Config
	policy retrypolicy.RetryPolicy[string]
}

// Request describes a single completion call.
type Request struct {
	Model       string
	System      string
	Input       string
	Temperature float64
	MaxTokens   int
}

// NewClient creates a completions client.
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 20 * time.Second
	}

	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ string, err error) bool {
			return IsRetryable(err)
		}).
		Build()

	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		policy: policy,
	}
}

// Complete sends a completion request and returns the raw text response.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	content, err := failsafe.With(c.policy).WithContext(ctx).Get(func() (string, error) {
		return c.attempt(ctx, req, false)
	})
	c.observe(req.Model, err)
	return content, err
}

// CompleteJSON sends a completion request in JSON mode and unmarshals the
// structured response into out. Markdown code fences around the payload
// are tolerated.
func (c *Client) CompleteJSON(ctx context.Context, req Request, out any) error {
	_, err := failsafe.With(c.policy).WithContext(ctx).Get(func() (string, error) {
		content, err := c.attempt(ctx, req, true)
		if err != nil {
			return "", err
		}
		cleaned := stripCodeFence(content)
		if err := json.Unmarshal([]byte(cleaned), out); err != nil {
			return "", &ParseError{Model: req.Model, Raw: truncate(content, 500), Err: err}
		}
		return content, nil
	})
	c.observe(req.Model, err)
	return err
}

func (c *Client) observe(model string, err error) {
	if c.cfg.OnResult == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case IsUpstream(err):
		status = "upstream_error"
	case IsParse(err):
		status = "parse_error"
	default:
		status = "error"
	}
	c.cfg.OnResult(model, status)
}

func (c *Client) attempt(ctx context.Context, req Request, jsonMode bool) (string, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Input},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &UpstreamError{Status: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), 500)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ParseError{Model: req.Model, Raw: truncate(string(raw), 500), Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &ParseError{Model: req.Model, Raw: truncate(string(raw), 500), Err: fmt.Errorf("no choices in response")}
	}

	return parsed.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models emit even in JSON mode.
func stripCodeFence(s string) string {
	cleaned := strings.TrimSpace(s)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
