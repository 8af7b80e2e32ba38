package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/ollama/ollama/api"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOllamaClient(server.URL)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestParseHost(t *testing.T) {
	u, err := parseHost("localhost:11434")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "localhost:11434" {
		t.Errorf("Unexpected URL %s", u)
	}
}

func TestSynchronous_Success(t *testing.T) {
	var chatReq api.ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &chatReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3.2:3b","message":{"role":"assistant","content":"pong"},"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":1}`+"\n")
	})

	resp, err := client.Synchronous(context.Background(), &llm.Request{
		Model:    "llama3.2:3b",
		System:   "be brief",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "ping")},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != "pong" {
		t.Errorf("Expected 'pong', got %q", resp.Text())
	}
	if resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 1 {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}
	if len(chatReq.Messages) != 2 || chatReq.Messages[0].Role != "system" {
		t.Errorf("Expected system message first, got %+v", chatReq.Messages)
	}
}

func TestSynchronous_BusyIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"server busy, please try again"}`)
	})

	_, err := client.Synchronous(context.Background(), &llm.Request{Model: "llama3.2:3b"})
	if !llm.IsTransient(err) {
		t.Fatalf("Expected transient error, got %v", err)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "busy") {
		t.Errorf("Expected message to mention busy, got %q", err.Error())
	}
}

func TestSynchronous_MissingModelIsPermanent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model 'nope' not found"}`)
	})

	_, err := client.Synchronous(context.Background(), &llm.Request{Model: "nope"})
	if !llm.IsPermanent(err) {
		t.Errorf("Expected permanent error, got %v", err)
	}
}

func TestConvertOllamaError_Unreachable(t *testing.T) {
	if err := convertOllamaError(errors.New("connection refused")); !llm.IsTransient(err) {
		t.Errorf("Expected unreachable host to be transient, got %v", err)
	}
}
