package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiAdapter calls the Gemini API through the official genai SDK, which
// handles inline image blobs and function declarations natively.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGeminiAdapter creates an adapter for the given key and model.
func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	if model == "" {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "gemini adapter requires a model name",
		}}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "failed to create gemini client",
			Cause:   err,
		}}
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

// Name returns the provider identifier.
func (a *GeminiAdapter) Name() string {
	return "gemini"
}

// Invoke sends one request through the genai SDK and normalizes the response.
func (a *GeminiAdapter) Invoke(ctx context.Context, req Request) (*Response, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiSchema(t),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, ErrorFromStatusCode(apiErr.Code, apiErr.Message, a.Name())
		}
		return nil, &ProviderError{
			ClientError: ClientError{Message: "gemini request failed", Cause: err},
			Provider:    a.Name(),
			Retryable:   true,
		}
	}

	resp := &Response{}
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				if resp.Text != "" {
					resp.Text += "\n"
				}
				resp.Text += part.Text
			}
			if part.FunctionCall != nil {
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					continue
				}
				id := part.FunctionCall.ID
				if id == "" {
					id = "call_" + uuid.New().String()[:8]
				}
				resp.ToolCalls = append(resp.ToolCalls, ToolCall{
					ID:        id,
					Name:      part.FunctionCall.Name,
					Arguments: args,
				})
			}
		}
	}
	return resp, nil
}

// geminiSchema converts a tool definition into the SDK's schema type.
func geminiSchema(t ToolDefinition) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(t.Parameters))
	var required []string
	for _, p := range t.Parameters {
		properties[p.Name] = &genai.Schema{
			Type:        geminiType(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

func geminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
