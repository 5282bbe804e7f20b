package llm

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func TestNormalizeActionsOrderPreserved(t *testing.T) {
	calls := []ToolCall{
		noteCall("first note"),
		pressCall("A"),
		noteCall("second note"),
	}

	actions := NormalizeActions(calls, zap.NewNop())
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[0].Kind != ActionNote || actions[1].Kind != ActionPress || actions[2].Kind != ActionNote {
		t.Errorf("action order not preserved: %+v", actions)
	}
}

func TestNormalizeActionsDropsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		calls []ToolCall
		want  int
	}{
		{
			name:  "unknown tool ignored",
			calls: []ToolCall{{ID: "x", Name: "launch_missiles", Arguments: json.RawMessage(`{}`)}, pressCall("B")},
			want:  1,
		},
		{
			name:  "unknown button dropped",
			calls: []ToolCall{pressCall("Z"), pressCall("DOWN")},
			want:  1,
		},
		{
			name:  "missing button argument dropped",
			calls: []ToolCall{{ID: "x", Name: ToolPressButton, Arguments: json.RawMessage(`{}`)}},
			want:  0,
		},
		{
			name:  "invalid json dropped",
			calls: []ToolCall{{ID: "x", Name: ToolPressButton, Arguments: json.RawMessage(`not json`)}, noteCall("still here")},
			want:  1,
		},
		{
			name:  "empty notepad content dropped",
			calls: []ToolCall{noteCall("")},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := NormalizeActions(tt.calls, zap.NewNop())
			if len(actions) != tt.want {
				t.Errorf("expected %d actions, got %d: %+v", tt.want, len(actions), actions)
			}
		})
	}
}

func TestParseButton(t *testing.T) {
	tests := []struct {
		raw  string
		want Button
		ok   bool
	}{
		{"A", ButtonA, true},
		{"a", ButtonA, true},
		{" down ", ButtonDown, true},
		{`"START"`, ButtonStart, true},
		{"'select'", ButtonSelect, true},
		{"X", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseButton(tt.raw)
		if ok != tt.ok {
			t.Errorf("ParseButton(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseButton(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestButtonCodes(t *testing.T) {
	want := map[Button]int{
		ButtonA: 0, ButtonB: 1, ButtonSelect: 2, ButtonStart: 3,
		ButtonRight: 4, ButtonLeft: 5, ButtonUp: 6, ButtonDown: 7,
		ButtonR: 8, ButtonL: 9,
	}
	for button, code := range want {
		got, ok := button.Code()
		if !ok || got != code {
			t.Errorf("Code(%s) = %d, %v; want %d", button, got, ok, code)
		}
	}
}
