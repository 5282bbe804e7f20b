package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// pressButtonPattern is the last-resort parse for backends that narrate a
// button press in free text instead of emitting a structured call.
var pressButtonPattern = regexp.MustCompile(`press_button\((.*?)\)`)

// GollmAdapter wraps a gollm.LLM instance. It serves text-first backends such
// as ollama-hosted models, where tool calls come back embedded in the
// response text rather than as structured API objects.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
}

// NewGollmAdapter creates an adapter for the given gollm provider. If apiKey
// is empty, gollm reads it from environment variables.
func NewGollmAdapter(provider, apiKey, model string, opts ...gollm.ConfigOption) (*GollmAdapter, error) {
	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetMaxRetries(0), // one attempt per decision, never retried
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if model != "" {
		gollmOpts = append(gollmOpts, gollm.SetModel(model))
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, opts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: fmt.Sprintf("failed to create gollm LLM for provider %s", provider),
			Cause:   err,
		}}
	}
	return &GollmAdapter{provider: provider, llm: llm}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{provider: provider, llm: llm}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Invoke sends one request through gollm and parses tool calls out of the
// generated text.
func (a *GollmAdapter) Invoke(ctx context.Context, req Request) (*Response, error) {
	promptOpts := []gollm.PromptOption{}
	if req.System != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(req.System), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Schema(),
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}

	prompt := gollm.NewPrompt(req.Prompt, promptOpts...)

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}

	resp := &Response{Text: text}
	if len(req.Tools) > 0 {
		resp.ToolCalls = a.parseToolCalls(text)
	}
	return resp, nil
}

// parseToolCalls extracts tool calls embedded in response text. Structured
// JSON is tried first, then the free-text press_button pattern.
func (a *GollmAdapter) parseToolCalls(text string) []ToolCall {
	if calls := parseJSONToolCalls(text); len(calls) > 0 {
		return calls
	}

	matches := pressButtonPattern.FindAllStringSubmatch(text, -1)
	if len(matches) != 1 {
		return nil
	}
	args, _ := json.Marshal(map[string]string{"button": matches[0][1]})
	return []ToolCall{{
		ID:        "call_" + uuid.New().String()[:8],
		Name:      ToolPressButton,
		Arguments: args,
	}}
}

// parseJSONToolCalls looks for the JSON shapes text-only backends use to
// express a call: a tool_calls array, or a single tool_call/function_call
// object.
func parseJSONToolCalls(text string) []ToolCall {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil
	}
	body := []byte(text[start : end+1])

	type rawCall struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	var wrapper struct {
		ToolCalls    []rawCall `json:"tool_calls"`
		ToolCall     *rawCall  `json:"tool_call"`
		FunctionCall *rawCall  `json:"function_call"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil
	}

	raw := wrapper.ToolCalls
	if wrapper.ToolCall != nil {
		raw = append(raw, *wrapper.ToolCall)
	}
	if wrapper.FunctionCall != nil {
		raw = append(raw, *wrapper.FunctionCall)
	}

	var calls []ToolCall
	for _, rc := range raw {
		if rc.Name == "" {
			continue
		}
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: rc.Arguments,
		})
	}
	return calls
}

// translateError converts a gollm error into the package error hierarchy by
// classifying the message content.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	pe := ProviderError{
		ClientError: ClientError{Message: msg, Cause: err},
		Provider:    a.provider,
	}
	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key"):
		pe.StatusCode = 401
		return &AuthenticationError{ProviderError: pe}
	case strings.Contains(msgLower, "403") || strings.Contains(msgLower, "forbidden"):
		pe.StatusCode = 403
		return &AccessDeniedError{ProviderError: pe}
	case strings.Contains(msgLower, "404") || strings.Contains(msgLower, "not found"):
		pe.StatusCode = 404
		return &NotFoundError{ProviderError: pe}
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		pe.StatusCode = 429
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "too many tokens"):
		pe.StatusCode = 413
		return &ContextLengthError{ProviderError: pe}
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "internal server"):
		pe.StatusCode = 500
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	default:
		pe.Retryable = true
		return &pe
	}
}
