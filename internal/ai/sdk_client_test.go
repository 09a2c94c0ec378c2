package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestOpenAIClientGroqSuccess(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gsk_test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"llama-3.3-70b-versatile",
			"choices":[{"index":0,"message":{"role":"assistant","content":"There are 3 open tasks."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":20,"completion_tokens":6,"total_tokens":26}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderGroq, "gsk_test", srv.URL, 2*time.Second)
	resp, err := c.Generate(context.Background(), Chat("llama-3.3-70b-versatile", "sys", "how many open?", 0.7, 1500))
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != "There are 3 open tasks." || resp.Usage.TotalTokens != 26 || resp.ID != "chatcmpl-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOpenAIClientRateLimited(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderGroq, "gsk_test", srv.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), Chat("m", "s", "u", 0, 0))
	var se *ServiceError
	if !errors.As(err, &se) || se.Kind != KindRateLimited || se.Provider != ProviderGroq {
		t.Fatalf("expected groq rate limit, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestOpenAIClientAuthFailure(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderOpenAI, "sk_bad", srv.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), Chat("gpt-4o-mini", "s", "u", 0, 0))
	var se *ServiceError
	if !errors.As(err, &se) || se.Reason != ReasonAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if IsRateLimited(err) {
		t.Fatalf("auth failure is not retryable")
	}
}

func TestOpenAIClientMissingKey(t *testing.T) {
	_, err := NewOpenAIClient(ProviderGroq, "", "", time.Second).Generate(context.Background(), Chat("m", "s", "u", 0, 0))
	if err == nil || !strings.Contains(err.Error(), "GROQ_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestAnthropicClientSuccess(t *testing.T) {
	var body map[string]any
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Two tasks are blocked."}],
			"stop_reason":"end_turn","usage":{"input_tokens":30,"output_tokens":5}}`)
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-ant-test", srv.URL, 2*time.Second)
	resp, err := c.Generate(context.Background(), Chat("claude-3-5-haiku-latest", "you are terse", "blocked?", 0.7, 256))
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != "Two tasks are blocked." || resp.Usage.TotalTokens != 35 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	sys, _ := body["system"].([]any)
	if len(sys) != 1 {
		t.Fatalf("expected the system prompt as a separate block, got %v", body["system"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected one user message, got %v", body["messages"])
	}
}

func TestAnthropicClientRateLimitedSingleAttempt(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-ant-test", srv.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), Chat("claude-3-5-haiku-latest", "s", "u", 0, 0))
	var se *ServiceError
	if !errors.As(err, &se) || se.Kind != KindRateLimited {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if se.RetryAfter != time.Second {
		t.Fatalf("expected retry-after from header, got %v", se.RetryAfter)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("SDK retries must be disabled, got %d calls", calls)
	}
}
