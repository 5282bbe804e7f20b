package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAnthropicAdapter(t *testing.T, handler http.HandlerFunc) *AnthropicAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewAnthropicAdapter("test-key", "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.baseURL = srv.URL
	return a
}

func TestAnthropicAdapterInvoke(t *testing.T) {
	var got anthropicRequest
	a := newTestAnthropicAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("missing version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{
				{Type: "text", Text: "moving up"},
				{Type: "tool_use", ID: "toolu_1", Name: ToolPressButton, Input: map[string]interface{}{"button": "UP"}},
			},
		})
	})

	resp, err := a.Invoke(context.Background(), Request{
		Prompt:    "choose a button",
		System:    "play the game",
		Images:    [][]byte{{0x89, 0x50, 0x4e, 0x47}},
		Tools:     GameTools(),
		MaxTokens: 512,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Model != "test-model" || got.MaxTokens != 512 || got.System != "play the game" {
		t.Errorf("request fields not carried: %+v", got)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Content) != 2 {
		t.Fatalf("expected one message with text+image, got %+v", got.Messages)
	}
	if got.Messages[0].Content[1].Source == nil || got.Messages[0].Content[1].Source.MediaType != "image/png" {
		t.Errorf("image block not encoded as base64 png: %+v", got.Messages[0].Content[1])
	}
	if len(got.Tools) != 2 || got.Tools[0].Name != ToolPressButton {
		t.Errorf("tools not carried: %+v", got.Tools)
	}

	if resp.Text != "moving up" {
		t.Errorf("expected text %q, got %q", "moving up", resp.Text)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	button, ok := resp.ToolCalls[0].StringArg("button")
	if !ok || button != "UP" {
		t.Errorf("expected button UP, got %q", button)
	}
}

func TestAnthropicAdapterStatusError(t *testing.T) {
	a := newTestAnthropicAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"type": "rate_limit_error", "message": "overloaded"},
		})
	})

	_, err := a.Invoke(context.Background(), Request{Prompt: "hi"})
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rateErr.Message != "overloaded" {
		t.Errorf("expected upstream message, got %q", rateErr.Message)
	}
}

func TestAnthropicAdapterRequiresCredentials(t *testing.T) {
	if _, err := NewAnthropicAdapter("", "model"); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewAnthropicAdapter("key", ""); err == nil {
		t.Error("expected error for missing model")
	}
}
