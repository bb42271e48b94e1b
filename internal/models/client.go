// Package models provides HTTP clients for the external model provider
// services that execute pipeline steps. Providers expose a chat-completions
// style endpoint; the client maps transport failures onto the invoker error
// taxonomy and surfaces token usage for cost accounting.
package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/docweave/docweave/internal/invoker"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Client calls a single model provider service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a client for one provider service.
func NewClient(cfg *ServiceConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.TimeoutDuration(),
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// Complete sends a completion request and returns the text output with token counts.
func (c *Client) Complete(ctx context.Context, req invoker.CallRequest) (*invoker.CallResponse, error) {
	body, err := json.Marshal(completionRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatusError(resp)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	return &invoker.CallResponse{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func mapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", invoker.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", invoker.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", invoker.ErrServiceUnavailable, err)
}

func mapStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	detail := fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", invoker.ErrAuthentication, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return retryAfterError(resp, detail)
	case resp.StatusCode == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s", invoker.ErrTimeout, detail)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", invoker.ErrServiceUnavailable, detail)
	default:
		return fmt.Errorf("unexpected response: %s", detail)
	}
}

func retryAfterError(resp *http.Response, detail string) error {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return fmt.Errorf("%w (retry after %s): %s", invoker.ErrRateLimited, d, detail)
		}
	}
	return fmt.Errorf("%w: %s", invoker.ErrRateLimited, detail)
}
