package llm

import "go.uber.org/zap"

// NormalizeActions converts raw tool calls into the ordered action list the
// decision engine applies. Malformed or unknown calls are dropped with a
// warning; one bad call never discards the rest.
func NormalizeActions(calls []ToolCall, logger *zap.Logger) []Action {
	var actions []Action
	for _, call := range calls {
		switch call.Name {
		case ToolPressButton:
			raw, ok := call.StringArg("button")
			if !ok {
				logger.Warn("press_button call missing button argument",
					zap.String("call_id", call.ID))
				continue
			}
			button, ok := ParseButton(raw)
			if !ok {
				logger.Warn("press_button call with unknown button",
					zap.String("call_id", call.ID),
					zap.String("button", raw))
				continue
			}
			actions = append(actions, Action{Kind: ActionPress, Button: button})

		case ToolUpdateNotepad:
			content, ok := call.StringArg("content")
			if !ok || content == "" {
				logger.Warn("update_notepad call with empty content",
					zap.String("call_id", call.ID))
				continue
			}
			actions = append(actions, Action{Kind: ActionNote, Note: content})

		default:
			logger.Warn("ignoring unknown tool call",
				zap.String("call_id", call.ID),
				zap.String("name", call.Name))
		}
	}
	return actions
}
