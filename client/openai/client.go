package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sony/gobreaker"

	"diffreview/logger"
)

// ChatPath is appended to the client URL for chat completions
const ChatPath = "/v1/chat/completions"

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest matches the OpenAI Chat Completions API format
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	N           int       `json:"n,omitempty"`
	Stream      bool      `json:"stream"`
}

// ChatResponse matches the OpenAI Chat Completions API response format
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// StatusError is returned for non-200 responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client is a reusable OpenAI-compatible API client. Failing calls trip a
// circuit breaker so a dead endpoint is not hammered on every keystroke.
type Client struct {
	HTTPClient *http.Client
	URL        string
	APIKey     string
	Compress   bool

	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a new OpenAI-compatible client
func NewClient(url, apiKey string) *Client {
	c := &Client{
		HTTPClient: &http.Client{},
		URL:        strings.TrimRight(url, "/"),
		APIKey:     apiKey,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openai",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("%s circuit breaker: %s -> %s", name, from, to)
		},
	})
	return c
}

// isSuccessful keeps caller cancellations and client errors out of the
// breaker's failure count
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// State reports the breaker state, for diagnostics
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// DoChat sends a non-streaming chat completion request
func (c *Client) DoChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	req.Stream = false

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(out.([]byte), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// encode marshals req without HTML escaping, brotli-compressed when enabled
func (c *Client) encode(req *ChatRequest) (*bytes.Buffer, error) {
	var reqBodyBuf bytes.Buffer
	encoder := json.NewEncoder(&reqBodyBuf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if !c.Compress {
		return &reqBodyBuf, nil
	}

	// Quality 1 for speed
	var compressedBuf bytes.Buffer
	brotliWriter := brotli.NewWriterLevel(&compressedBuf, 1)
	if _, err := brotliWriter.Write(reqBodyBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}
	if err := brotliWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return &compressedBuf, nil
}

// doRequest sends an HTTP request and returns the response body
func (c *Client) doRequest(ctx context.Context, req *ChatRequest) ([]byte, error) {
	body, err := c.encode(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+ChatPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Compress {
		httpReq.Header.Set("Content-Encoding", "br")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}
