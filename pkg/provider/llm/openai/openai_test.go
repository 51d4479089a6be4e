package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/strategydeck/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, key, model, wantErr string
	}{
		{"no key", "", "gpt-4o-mini", "api key"},
		{"no model", "sk-test", "", "model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.key, tt.model)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParams(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}

	params, err := p.params(llm.CompletionRequest{
		SystemPrompt: "You are Robert.",
		Messages:     []llm.Message{llm.UserMessage("What is phase 1?")},
		MaxTokens:    500,
	})
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if len(params.Messages) != 2 || params.Messages[0].OfSystem == nil || params.Messages[1].OfUser == nil {
		t.Fatalf("messages = %+v, want system then user", params.Messages)
	}
	if params.MaxTokens.Value != 500 {
		t.Errorf("max tokens = %d", params.MaxTokens.Value)
	}
	if params.Temperature.Valid() {
		t.Error("zero temperature should be omitted")
	}

	if _, err := p.params(llm.CompletionRequest{}); err == nil {
		t.Error("empty request accepted")
	}
	if _, err := p.params(llm.CompletionRequest{Messages: []llm.Message{{Role: "tool", Content: "x"}}}); err == nil {
		t.Error("tool role accepted")
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 || req.Messages[1].Content != "Where do I start?" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Start with the champions."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "persona",
		Messages:     []llm.Message{llm.UserMessage("Where do I start?")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Start with the champions." || resp.Usage.TotalTokens != 17 {
		t.Errorf("response = %+v", resp)
	}
}

func TestComplete_UpstreamError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	p, _ := New("sk-bad", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1"))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("hi")}})
	if err == nil || !strings.HasPrefix(err.Error(), "openai: gpt-4o-mini:") {
		t.Fatalf("err = %v, want wrapped upstream error", err)
	}
}
