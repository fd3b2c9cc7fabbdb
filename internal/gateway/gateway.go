// Package gateway talks to the MCP proxy that fronts the OpenRouter LLM
// gateway. Requests are JSON-RPC tools/call messages; completions come back as
// text content wrapping a JSON document.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultProxyURL = "http://mcp-compose-http-proxy:9876"
	DefaultModel    = "anthropic/claude-3.5-sonnet"
)

// Config configures a Client. Zero values fall back to the defaults above and
// a 60 second timeout.
type Config struct {
	ProxyURL   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls tools exposed by the gateway.
type Client struct {
	httpClient *http.Client
	proxyURL   string
	apiKey     string
	model      string
}

func New(cfg Config) *Client {
	proxyURL := strings.TrimRight(cfg.ProxyURL, "/")
	if proxyURL == "" {
		proxyURL = DefaultProxyURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: hc, proxyURL: proxyURL, apiKey: cfg.APIKey, model: model}
}

// Model returns the configured completion model.
func (c *Client) Model() string { return c.model }

// StatusError is returned for non-200 gateway responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway request failed with status %d: %s", e.StatusCode, e.Body)
}

// Message is one chat message. Content is a string or a slice of Part.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Part is a multimodal content part.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// CompletionRequest is the argument of the create_completion tool.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
}

// Complete runs create_completion and returns the completion text. The gateway
// wraps it as {"content": "..."}; a bare string is returned unchanged.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	args := map[string]any{
		"model":         c.model,
		"system_prompt": req.SystemPrompt,
		"messages":      req.Messages,
		"max_tokens":    maxTokens,
		"temperature":   req.Temperature,
	}
	text, err := c.Call(ctx, "create_completion", args)
	if err != nil {
		return "", fmt.Errorf("failed to get AI completion: %w", err)
	}

	var completion struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(text), &completion); err == nil && completion.Content != "" {
		return completion.Content, nil
	}
	return text, nil
}

// Call invokes tool with args and returns the first text content of the result.
func (c *Client) Call(ctx context.Context, tool string, args any) (string, error) {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      tool,
			"arguments": args,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL+"/openrouter-gateway", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var rpc struct {
		Result *struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if rpc.Error != nil {
		return "", fmt.Errorf("gateway error %d: %s", rpc.Error.Code, rpc.Error.Message)
	}
	if rpc.Result == nil || len(rpc.Result.Content) == 0 {
		return "", fmt.Errorf("unexpected response format")
	}
	if rpc.Result.IsError {
		return "", fmt.Errorf("tool %s failed: %s", tool, rpc.Result.Content[0].Text)
	}
	return rpc.Result.Content[0].Text, nil
}

// ExtractJSON returns the text between the first '{' and the last '}'.
func ExtractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
