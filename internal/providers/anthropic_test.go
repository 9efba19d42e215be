package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dshills/amber/internal/fetch"
)

func testModelPolicy() fetch.Policy {
	p := fetch.ModelPolicy()
	p.Backoff = func(int) time.Duration { return time.Millisecond }
	return p
}

func TestAnthropic_Evaluate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Missing API key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("Missing anthropic-version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.System) != 1 || req.System[0].Text != "context" {
			t.Errorf("System = %+v", req.System)
		}
		if req.System[0].CacheControl == nil || req.System[0].CacheControl.Type != "ephemeral" {
			t.Errorf("CacheControl = %+v, want ephemeral", req.System[0].CacheControl)
		}

		resp := anthropicResponse{
			Content: []anthropicBlock{
				{Type: "text", Text: "looks fine"},
			},
			Usage: anthropicUsage{InputTokens: 100, OutputTokens: 10, CacheReadInputTokens: 90},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey:  "test-key",
		model:   "claude-sonnet-4-20250514",
		baseURL: server.URL,
		policy:  testModelPolicy(),
		client:  server.Client(),
	}

	resp, err := a.Evaluate(context.Background(), EvalRequest{
		System:      "context",
		Prompt:      "review this",
		CacheSystem: true,
		MaxTokens:   10,
	})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if resp.Content != "looks fine" {
		t.Errorf("Content = %q, want %q", resp.Content, "looks fine")
	}
	if resp.InputTokens != 100 || resp.OutputTokens != 10 {
		t.Errorf("tokens = %d/%d, want 100/10", resp.InputTokens, resp.OutputTokens)
	}
	if resp.CachedTokens != 90 {
		t.Errorf("CachedTokens = %d, want 90", resp.CachedTokens)
	}
}

func TestAnthropic_Attachments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		blocks := req.Messages[0].Content
		if len(blocks) != 3 {
			t.Fatalf("got %d content blocks, want 3", len(blocks))
		}
		if blocks[0].Type != "image" || blocks[0].Source.MediaType != "image/png" {
			t.Errorf("blocks[0] = %+v", blocks[0])
		}
		if blocks[1].Type != "document" || blocks[1].Source.MediaType != "application/pdf" {
			t.Errorf("blocks[1] = %+v", blocks[1])
		}
		if blocks[2].Type != "text" || blocks[2].Text != "describe" {
			t.Errorf("blocks[2] = %+v", blocks[2])
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicBlock{{Type: "text", Text: "ok"}},
		})
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey:  "test-key",
		model:   "claude-sonnet-4-20250514",
		baseURL: server.URL,
		policy:  testModelPolicy(),
		client:  server.Client(),
	}

	_, err := a.Evaluate(context.Background(), EvalRequest{
		Prompt: "describe",
		Attachments: []Attachment{
			{MediaType: "image/png", Data: "aW1n"},
			{MediaType: "application/pdf", Data: "cGRm"},
		},
	})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
}

func TestAnthropic_AuthError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(401)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey:  "bad-key",
		model:   "claude-sonnet-4-20250514",
		baseURL: server.URL,
		policy:  testModelPolicy(),
		client:  server.Client(),
	}

	_, err := a.Evaluate(context.Background(), EvalRequest{Prompt: "test"})
	if err == nil {
		t.Fatal("Expected auth error")
	}
	if !fetch.IsAuth(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (auth errors are terminal)", attempts)
	}
}

func TestAnthropic_OverloadedRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(529)
			w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
			return
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicBlock{{Type: "text", Text: "recovered"}},
		})
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey:  "test-key",
		model:   "claude-sonnet-4-20250514",
		baseURL: server.URL,
		policy:  testModelPolicy(),
		client:  server.Client(),
	}

	resp, err := a.Evaluate(context.Background(), EvalRequest{Prompt: "test"})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("Content = %q, want %q", resp.Content, "recovered")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestAnthropic_InvalidRequestTerminal(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(400)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens required"}}`))
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey:  "test-key",
		model:   "claude-sonnet-4-20250514",
		baseURL: server.URL,
		policy:  testModelPolicy(),
		client:  server.Client(),
	}

	_, err := a.Evaluate(context.Background(), EvalRequest{Prompt: "test"})
	if err == nil {
		t.Fatal("Expected error")
	}
	var ae *fetch.APIError
	if !errors.As(err, &ae) || ae.Kind != fetch.KindInvalidRequest {
		t.Errorf("error = %v, want invalid_request kind", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestAnthropicKind(t *testing.T) {
	tests := []struct {
		errType string
		want    fetch.Kind
	}{
		{"rate_limit_error", fetch.KindRateLimit},
		{"overloaded_error", fetch.KindOverloaded},
		{"authentication_error", fetch.KindAuthentication},
		{"permission_error", fetch.KindPermission},
		{"not_found_error", fetch.KindNotFound},
		{"request_too_large", fetch.KindRequestTooLarge},
		{"invalid_request_error", fetch.KindInvalidRequest},
		{"timeout_error", fetch.KindTimeout},
		{"something_else", fetch.KindAPI},
	}
	for _, tt := range tests {
		if got := anthropicKind(tt.errType); got != tt.want {
			t.Errorf("anthropicKind(%q) = %q, want %q", tt.errType, got, tt.want)
		}
	}
}
