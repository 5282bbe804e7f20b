package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIAdapter calls the OpenAI chat-completions API over HTTP.
type OpenAIAdapter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIAdapter creates an adapter for the given key and model.
func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "openai adapter requires an API key",
		}}
	}
	if model == "" {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "openai adapter requires a model name",
		}}
	}
	return &OpenAIAdapter{
		apiKey:     apiKey,
		model:      model,
		baseURL:    openaiAPIURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openaiRequest struct {
	Model      string          `json:"model"`
	Messages   []openaiMessage `json:"messages"`
	Tools      []openaiTool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
	MaxTokens  int             `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Invoke sends one request to the chat-completions API and normalizes the
// response. Images travel as base64 data URLs.
func (a *OpenAIAdapter) Invoke(ctx context.Context, req Request) (*Response, error) {
	messages := []openaiMessage{}
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}

	if len(req.Images) > 0 {
		parts := []openaiContentPart{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			parts = append(parts, openaiContentPart{
				Type: "image_url",
				ImageURL: &openaiImageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
				},
			})
		}
		messages = append(messages, openaiMessage{Role: "user", Content: parts})
	} else {
		messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})
	}

	body := openaiRequest{
		Model:     a.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			body.Tools = append(body.Tools, openaiTool{
				Type: "function",
				Function: openaiFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Schema(),
				},
			})
		}
		body.ToolChoice = "auto"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Message: "failed to encode openai request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Message: "failed to build openai request", Cause: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{
			ClientError: ClientError{Message: "openai request failed", Cause: err},
			Provider:    a.Name(),
			Retryable:   true,
		}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ProviderError{
			ClientError: ClientError{Message: "failed to read openai response", Cause: err},
			Provider:    a.Name(),
			Retryable:   true,
		}
	}

	var parsed openaiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ClientError{Message: "failed to decode openai response", Cause: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("openai returned status %d", httpResp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return nil, ErrorFromStatusCode(httpResp.StatusCode, message, a.Name())
	}

	resp := &Response{}
	if len(parsed.Choices) > 0 {
		choice := parsed.Choices[0]
		resp.Text = choice.Message.Content
		for _, call := range choice.Message.ToolCalls {
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})
		}
	}
	return resp, nil
}
