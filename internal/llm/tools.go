package llm

// Tool names the model is allowed to call.
const (
	ToolPressButton   = "press_button"
	ToolUpdateNotepad = "update_notepad"
)

// GameTools returns the fixed tool set offered on every decision call:
// press_button drives the emulator, update_notepad feeds long-term memory.
func GameTools() []ToolDefinition {
	buttons := Buttons()
	enum := make([]string, len(buttons))
	for i, b := range buttons {
		enum[i] = string(b)
	}

	pressButton := ToolDefinition{
		Name:        ToolPressButton,
		Description: "Press a button on the Game Boy emulator to control the game",
		Parameters: []ToolParameter{{
			Name:        "button",
			Type:        "string",
			Description: "Button to press (A, B, START, SELECT, UP, DOWN, LEFT, RIGHT, R, L)",
			Required:    true,
			Enum:        enum,
		}},
	}

	updateNotepad := ToolDefinition{
		Name:        ToolUpdateNotepad,
		Description: "Update the AI's long-term memory with new information about the game state",
		Parameters: []ToolParameter{{
			Name:        "content",
			Type:        "string",
			Description: "Content to add to the notepad. Only include important information about game progress, objectives, or status.",
			Required:    true,
		}},
	}

	return []ToolDefinition{pressButton, updateNotepad}
}
