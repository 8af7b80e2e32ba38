package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewAnthropicClient("test-key", server.URL, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestNewAnthropicClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicClient("", "", zerolog.Nop()); err == nil {
		t.Error("Expected error when API key is empty")
	}
}

func TestSynchronous_Success(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`)
	})

	resp, err := client.Synchronous(context.Background(), &llm.Request{
		Model:    "claude-3-5-haiku-latest",
		System:   "be brief",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != "Hello there" {
		t.Errorf("Expected 'Hello there', got %q", resp.Text())
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("Expected stop reason end_turn, got %q", resp.StopReason)
	}
	if body["model"] != "claude-3-5-haiku-latest" {
		t.Errorf("Expected model in request body, got %v", body["model"])
	}
	if body["max_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("Expected default max tokens, got %v", body["max_tokens"])
	}
}

func TestSynchronous_OverloadedIsTransient(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	})

	_, err := client.Synchronous(context.Background(), &llm.Request{
		Model:    "claude-opus-4-20250514",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected SDK retries to be disabled, got %d calls", calls)
	}
	if !llm.IsTransient(err) {
		t.Errorf("Expected transient error, got %v", err)
	}
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) || llmErr.Type != llm.ErrorTypeOverloaded || llmErr.StatusCode != 529 {
		t.Errorf("Unexpected error %+v", llmErr)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "overloaded") {
		t.Errorf("Expected message to mention overload, got %q", err.Error())
	}
}

func TestSynchronous_AuthIsPermanent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := client.Synchronous(context.Background(), &llm.Request{Model: "claude-3-7-sonnet-latest"})
	if !llm.IsPermanent(err) {
		t.Errorf("Expected permanent error, got %v", err)
	}
}

func TestSynchronous_Validation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Server should not be called")
	})
	if _, err := client.Synchronous(context.Background(), nil); err == nil {
		t.Error("Expected error for nil request")
	}
	if _, err := client.Synchronous(context.Background(), &llm.Request{}); err == nil {
		t.Error("Expected error for missing model")
	}
}

func TestSynchronous_OpusDefaultMaxTokensWithinNonStreamingLimit(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-opus-4-20250514",
			"content": [{"type": "text", "text": "ok"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	})

	resp, err := client.Synchronous(context.Background(), &llm.Request{
		Model:    "claude-opus-4-20250514",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Errorf("Expected 'ok', got %q", resp.Text())
	}
	if body["max_tokens"] != float64(8192) {
		t.Errorf("Expected max tokens capped at 8192, got %v", body["max_tokens"])
	}
}

func TestSynchronous_RejectedBeforeSendIsPermanent(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := client.Synchronous(context.Background(), &llm.Request{
		Model:     "claude-opus-4-20250514",
		MaxTokens: 20000,
		Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if !llm.IsPermanent(err) {
		t.Fatalf("Expected permanent error, got %v", err)
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) && llmErr.Type != llm.ErrorTypeInvalidRequest {
		t.Errorf("Expected invalid request type, got %s", llmErr.Type)
	}
	if calls != 0 {
		t.Errorf("Expected no HTTP call, got %d", calls)
	}
}

func TestSynchronous_Thinking(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_3",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-7-sonnet-latest",
			"content": [
				{"type": "thinking", "thinking": "hmm", "signature": "sig"},
				{"type": "text", "text": "answer"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	})

	resp, err := client.Synchronous(context.Background(), &llm.Request{
		Model:     "claude-3-7-sonnet-latest",
		MaxTokens: 4000,
		Thinking:  &llm.Thinking{Enabled: true, BudgetTokens: 2000},
		Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != "answer" {
		t.Errorf("Expected only text blocks, got %q", resp.Text())
	}
	thinking, ok := body["thinking"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected thinking config in request, got %v", body["thinking"])
	}
	if thinking["type"] != "enabled" || thinking["budget_tokens"] != float64(2000) {
		t.Errorf("Unexpected thinking config %v", thinking)
	}
}

func TestSynchronous_ThinkingDisabledNotSent(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"m","type":"message","role":"assistant","model":"x","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	})

	_, err := client.Synchronous(context.Background(), &llm.Request{
		Model:    "claude-3-5-haiku-latest",
		Thinking: &llm.Thinking{BudgetTokens: 2000},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := body["thinking"]; ok {
		t.Errorf("Expected no thinking config, got %v", body["thinking"])
	}
}

func TestConvertAnthropicError_NonAPI(t *testing.T) {
	err := convertAnthropicError(&url.Error{Op: "Post", URL: "https://api.anthropic.com/v1/messages", Err: errors.New("connection reset")})
	if !llm.IsTransient(err) {
		t.Errorf("Expected transport failure to be transient, got %v", err)
	}

	if err := convertAnthropicError(fmt.Errorf("reading body: %w", io.ErrUnexpectedEOF)); !llm.IsTransient(err) {
		t.Errorf("Expected truncated body to be transient, got %v", err)
	}

	if err := convertAnthropicError(errors.New("streaming is required for operations that may take longer than 10 minutes")); !llm.IsPermanent(err) {
		t.Errorf("Expected SDK-local rejection to be permanent, got %v", err)
	}

	canceled := convertAnthropicError(context.Canceled)
	if !errors.Is(canceled, context.Canceled) {
		t.Errorf("Expected cancellation to pass through, got %v", canceled)
	}
}
