// Package groq is a minimal client for the Groq chat completions API, used
// by the demo server to summarize portfolio data.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aeither/x402-starter-kit/retry"
)

// DefaultBaseURL is the public Groq API endpoint.
const DefaultBaseURL = "https://api.groq.com/openai"

// DefaultModel balances quality and cost for short summaries.
const DefaultModel = "llama-3.3-70b-versatile"

const requestTimeout = 30 * time.Second

// Client calls the Groq API with Bearer auth.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// NewClient creates a Groq client with the default endpoint and model.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		Model:   DefaultModel,
		HTTP:    &http.Client{Timeout: requestTimeout},
	}
}

// Message is one turn of a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete runs a chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("groq: failed to encode request: %w", err)
	}

	body, err := retry.WithDefaults(ctx, isTransient, func() ([]byte, error) {
		return c.post(ctx, "/v1/chat/completions", payload)
	})
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("groq: failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("groq: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("groq: response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Summarize asks the model for a short plain-language summary of the given
// portfolio description.
func (c *Client) Summarize(ctx context.Context, portfolioJSON string) (string, error) {
	return c.Complete(ctx, []Message{
		{
			Role:    "system",
			Content: "You are a crypto portfolio analyst. Summarize the portfolio in at most four sentences of plain language: total value, notable concentrations, and 24h movement. No financial advice.",
		},
		{
			Role:    "user",
			Content: portfolioJSON,
		},
	})
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("groq: unexpected status %d: %s", e.status, e.body)
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return true
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("groq: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("groq: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		const limit = 200
		snippet := string(body)
		if len(snippet) > limit {
			snippet = snippet[:limit]
		}
		return nil, &statusError{status: resp.StatusCode, body: snippet}
	}
	return body, nil
}
