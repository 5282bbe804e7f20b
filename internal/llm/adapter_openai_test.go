package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestOpenAIAdapter(t *testing.T, handler http.HandlerFunc) *OpenAIAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewOpenAIAdapter("test-key", "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.baseURL = srv.URL
	return a
}

func TestOpenAIAdapterInvoke(t *testing.T) {
	var raw map[string]interface{}
	a := newTestOpenAIAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"content": "going left",
					"tool_calls": []map[string]interface{}{{
						"id": "call_abc",
						"function": map[string]interface{}{
							"name":      ToolPressButton,
							"arguments": `{"button": "LEFT"}`,
						},
					}},
				},
			}},
		})
	})

	resp, err := a.Invoke(context.Background(), Request{
		Prompt: "choose a button",
		System: "play the game",
		Images: [][]byte{{0x89, 0x50, 0x4e, 0x47}},
		Tools:  GameTools(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := raw["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(messages))
	}
	user := messages[1].(map[string]interface{})
	parts := user["content"].([]interface{})
	if len(parts) != 2 {
		t.Fatalf("expected text+image parts, got %d", len(parts))
	}
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	if !strings.HasPrefix(image["url"].(string), "data:image/png;base64,") {
		t.Errorf("image not sent as data URL: %v", image["url"])
	}
	if raw["tool_choice"] != "auto" {
		t.Errorf("expected tool_choice auto, got %v", raw["tool_choice"])
	}

	if resp.Text != "going left" {
		t.Errorf("expected text %q, got %q", "going left", resp.Text)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	button, ok := resp.ToolCalls[0].StringArg("button")
	if !ok || button != "LEFT" {
		t.Errorf("expected button LEFT, got %q", button)
	}
}

func TestOpenAIAdapterStatusError(t *testing.T) {
	a := newTestOpenAIAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "bad key"},
		})
	})

	_, err := a.Invoke(context.Background(), Request{Prompt: "hi"})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %T: %v", err, err)
	}
	if authErr.Message != "bad key" {
		t.Errorf("expected upstream message, got %q", authErr.Message)
	}
}

func TestOpenAIAdapterTextOnly(t *testing.T) {
	a := newTestOpenAIAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		json.NewDecoder(r.Body).Decode(&raw)
		messages := raw["messages"].([]interface{})
		user := messages[len(messages)-1].(map[string]interface{})
		if _, isString := user["content"].(string); !isString {
			t.Errorf("text-only request should use a plain string content")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{"content": "summary text"},
			}},
		})
	})

	resp, err := a.Invoke(context.Background(), Request{Prompt: "summarize"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "summary text" {
		t.Errorf("expected summary text, got %q", resp.Text)
	}
}
