package models_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/internal/models"
)

func completionHandler(t *testing.T, text string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "gpt-4o" {
			t.Errorf("model = %v, want gpt-4o", req["model"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": text}},
			},
			"usage": map[string]any{
				"prompt_tokens":     42,
				"completion_tokens": 7,
			},
		})
	}
}

func testClient(baseURL string) *models.Client {
	return models.NewClient(&models.ServiceConfig{
		BaseURL: baseURL,
		APIKey:  "sk-test",
		Timeout: "5s",
	})
}

func testCallRequest() invoker.CallRequest {
	return invoker.CallRequest{
		Prompt:      "classify this document",
		Model:       "gpt-4o",
		Temperature: 0.2,
		MaxTokens:   500,
	}
}

func TestClientComplete(t *testing.T) {
	srv := httptest.NewServer(completionHandler(t, "LABORWERTE"))
	defer srv.Close()

	resp, err := testClient(srv.URL).Complete(context.Background(), testCallRequest())
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if resp.Text != "LABORWERTE" {
		t.Errorf("Text = %q, want LABORWERTE", resp.Text)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 7 {
		t.Errorf("tokens = %d/%d, want 42/7", resp.InputTokens, resp.OutputTokens)
	}
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, invoker.ErrAuthentication},
		{"forbidden", http.StatusForbidden, invoker.ErrAuthentication},
		{"rate limited", http.StatusTooManyRequests, invoker.ErrRateLimited},
		{"request timeout", http.StatusRequestTimeout, invoker.ErrTimeout},
		{"server error", http.StatusInternalServerError, invoker.ErrServiceUnavailable},
		{"bad gateway", http.StatusBadGateway, invoker.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "provider error", tt.status)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Complete(context.Background(), testCallRequest())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClientBadRequestNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete(context.Background(), testCallRequest())
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if invoker.Transient(err) {
		t.Errorf("bad request classified transient: %v", err)
	}
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := testClient(srv.URL).Complete(context.Background(), testCallRequest())
	if !errors.Is(err, invoker.ErrServiceUnavailable) {
		t.Errorf("error = %v, want ErrServiceUnavailable", err)
	}
}

func TestClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Complete(context.Background(), testCallRequest()); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestResolverFallsBackToDefault(t *testing.T) {
	srv := httptest.NewServer(completionHandler(t, "ok"))
	defer srv.Close()

	cfg := &models.Config{
		Default: models.ServiceConfig{BaseURL: srv.URL, APIKey: "sk-test", Timeout: "5s"},
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	resolver := models.NewResolver(cfg)
	resp, err := resolver.Call(context.Background(), "unlisted-service", testCallRequest())
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q, want ok", resp.Text)
	}
}

func TestConfigFinalizeInheritsDefaults(t *testing.T) {
	cfg := &models.Config{
		Default: models.ServiceConfig{BaseURL: "http://default", APIKey: "sk-default", Timeout: "90s"},
		Services: map[string]models.ServiceConfig{
			"azure": {BaseURL: "http://azure"},
		},
	}

	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	azure := cfg.Services["azure"]
	if azure.APIKey != "sk-default" {
		t.Errorf("APIKey = %q, want inherited sk-default", azure.APIKey)
	}
	if azure.BaseURL != "http://azure" {
		t.Errorf("BaseURL = %q, want service override", azure.BaseURL)
	}
}

func TestConfigFinalizeRequiresDefaultBaseURL(t *testing.T) {
	cfg := &models.Config{}
	if err := cfg.Finalize(nil); err == nil {
		t.Fatal("expected error with no default base_url")
	}
}
