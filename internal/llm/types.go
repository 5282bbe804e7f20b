// Package llm provides a provider-agnostic client for the game-playing
// decision calls. Each backend is wrapped by a ProviderAdapter that translates
// the shared request/response types into its native API.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Button is a Game Boy button the model may press.
type Button string

const (
	ButtonA      Button = "A"
	ButtonB      Button = "B"
	ButtonSelect Button = "SELECT"
	ButtonStart  Button = "START"
	ButtonRight  Button = "RIGHT"
	ButtonLeft   Button = "LEFT"
	ButtonUp     Button = "UP"
	ButtonDown   Button = "DOWN"
	ButtonR      Button = "R"
	ButtonL      Button = "L"
)

// buttonCodes maps buttons to the numeric codes the emulator expects.
var buttonCodes = map[Button]int{
	ButtonA: 0, ButtonB: 1, ButtonSelect: 2, ButtonStart: 3,
	ButtonRight: 4, ButtonLeft: 5, ButtonUp: 6, ButtonDown: 7,
	ButtonR: 8, ButtonL: 9,
}

// Code returns the emulator wire code for the button.
func (b Button) Code() (int, bool) {
	code, ok := buttonCodes[b]
	return code, ok
}

// ParseButton normalizes a raw button argument. Models occasionally quote or
// lowercase the value, so both are tolerated.
func ParseButton(raw string) (Button, bool) {
	b := Button(strings.ToUpper(strings.Trim(strings.TrimSpace(raw), `'"`)))
	_, ok := buttonCodes[b]
	return b, ok
}

// Buttons lists every valid button in wire-code order.
func Buttons() []Button {
	return []Button{
		ButtonA, ButtonB, ButtonSelect, ButtonStart,
		ButtonRight, ButtonLeft, ButtonUp, ButtonDown,
		ButtonR, ButtonL,
	}
}

// ToolParameter describes one parameter of a tool.
type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolDefinition is a tool the model can call, in provider-neutral form.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// Schema renders the parameters as a JSON-Schema object, the shape every
// provider's function-calling API accepts.
func (t ToolDefinition) Schema() map[string]interface{} {
	properties := make(map[string]interface{}, len(t.Parameters))
	var required []string
	for _, p := range t.Parameters {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// ToolCall is a tool invocation extracted from a model response.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// StringArg decodes a string-typed argument from the call, tolerating
// providers that return all argument values as strings.
func (c ToolCall) StringArg(name string) (string, bool) {
	var args map[string]interface{}
	if err := json.Unmarshal(c.Arguments, &args); err != nil {
		return "", false
	}
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Request is the input to a single provider call.
type Request struct {
	Prompt    string
	System    string
	Images    [][]byte
	Tools     []ToolDefinition
	MaxTokens int
}

// Response is the normalized output of a provider call.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// ProviderAdapter translates requests into one backend's native API.
type ProviderAdapter interface {
	Name() string
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// ActionKind discriminates Action.
type ActionKind string

const (
	// ActionPress asks the emulator to press a button.
	ActionPress ActionKind = "press"
	// ActionNote appends text to the long-term notepad.
	ActionNote ActionKind = "note"
)

// Action is one normalized instruction derived from a model tool call.
type Action struct {
	Kind   ActionKind
	Button Button // set when Kind is ActionPress
	Note   string // set when Kind is ActionNote
}
