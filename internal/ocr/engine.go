// Package ocr routes text extraction between a fast/cheap engine and a
// slow/accurate engine based on measured confidence, with failure fallback.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/docweave/docweave/internal/invoker"
)

// Result is the outcome of one extraction call.
type Result struct {
	Text       string
	Confidence float64
	Engine     string
}

// Engine extracts text from raw document bytes.
type Engine interface {
	Name() string
	Extract(ctx context.Context, document []byte) (*Result, error)
}

type extractRequest struct {
	Document string `json:"document"`
}

type extractResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type httpEngine struct {
	name       string
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewEngine creates an HTTP engine client from config.
func NewEngine(cfg *EngineConfig) Engine {
	return &httpEngine{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout: cfg.TimeoutDuration(),
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

func (e *httpEngine) Name() string {
	return e.name
}

func (e *httpEngine) Extract(ctx context.Context, document []byte) (*Result, error) {
	body, err := json.Marshal(extractRequest{
		Document: base64.StdEncoding.EncodeToString(document),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: engine %s: %w", invoker.ErrTimeout, e.name, err)
		}
		return nil, fmt.Errorf("%w: engine %s: %w", invoker.ErrServiceUnavailable, e.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: engine %s status %d: %s", invoker.ErrServiceUnavailable, e.name, resp.StatusCode, bytes.TrimSpace(detail))
		}
		return nil, fmt.Errorf("engine %s status %d: %s", e.name, resp.StatusCode, bytes.TrimSpace(detail))
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Result{
		Text:       parsed.Text,
		Confidence: parsed.Confidence,
		Engine:     e.name,
	}, nil
}
