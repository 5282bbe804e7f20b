package engine

import (
	"fmt"
	"strings"

	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/memory"
)

// systemInstruction mandates structured tool calling; several backends will
// otherwise narrate the button press instead of executing it.
const systemInstruction = `You are an AI playing Pokémon Red. Your ONLY job is to press buttons to control the game.

IMPORTANT: You MUST use the press_button function to specify which button to press.

Always select the appropriate button based on the context:
- A: To confirm, advance text, or select
- B: To cancel or go back
- Directional buttons: To navigate
- START: To open the menu

If you need to add important information to the long-term memory, use update_notepad.`

// mapNames translates Pokémon Red/Blue map IDs into readable names.
// Incomplete; unknown IDs fall back to the numeric form.
var mapNames = map[int]string{
	0:  "Pallet Town",
	1:  "Viridian City",
	2:  "Pewter City",
	3:  "Cerulean City",
	12: "Route 1",
	13: "Route 2",
	14: "Route 3",
	15: "Route 4",
	37: "Red's House 1F",
	38: "Red's House 2F",
	39: "Blue's House",
	40: "Oak's Lab",
}

// MapName returns the readable name for a map ID.
func MapName(id int) string {
	if name, ok := mapNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Area (Map ID: %d)", id)
}

var compassDirections = map[string]string{
	"UP":    "north",
	"DOWN":  "south",
	"LEFT":  "west",
	"RIGHT": "east",
}

// directionGuidance describes player orientation and interaction rules for
// the prompt. Only emitted when telemetry is available.
func directionGuidance(pos *memory.Position) string {
	compass := compassDirections[pos.Direction]
	if compass == "" {
		compass = pos.Direction
	}
	return fmt.Sprintf(`## Navigation Tips:
- To INTERACT with objects or NPCs, you MUST be FACING them and then press A
- Your current direction is %s (facing %s)
- Your current position is (X=%d, Y=%d) on map %d
- If you need to face a different direction, press the appropriate directional button first
- In buildings, look for exits via stairs, doors, or red mats and walk directly over them`,
		pos.Direction, compass, pos.X, pos.Y, pos.MapID)
}

// buildPrompt assembles the decision prompt from long-term memory, the
// short-term ring, optional telemetry, and optional chat suggestions.
func buildPrompt(notepad, recentActions string, pos *memory.Position, chatSummary string) string {
	var b strings.Builder

	b.WriteString("You are playing Pokémon Red. Look at this screenshot and choose ONE button to press.\n\n")

	if pos != nil {
		fmt.Fprintf(&b, "## Current Location\nYou are in %s\nPosition: X=%d, Y=%d\n\n", MapName(pos.MapID), pos.X, pos.Y)
		fmt.Fprintf(&b, "## Current Direction\nYou are facing: %s\n\n", pos.Direction)
	}

	b.WriteString(`## Controls:
- A: To confirm, select, talk, or advance text
- B: To cancel or go back
- UP, DOWN, LEFT, RIGHT: To move or navigate menus
- START: To open the main menu
- SELECT: Rarely used special function

## Navigation Rules:
- If you've pressed the same button 3+ times with no change, TRY A DIFFERENT DIRECTION
- You must be DIRECTLY ON TOP of exits (red mats, doors, stairs) to use them
- To INTERACT with objects or NPCs, you MUST be FACING them and then press A
- If a text box is shown, your character cannot move, you must press A
- When you enter a new area or discover something important, UPDATE THE NOTEPAD using the update_notepad function

`)

	b.WriteString(recentActions)
	b.WriteString("\n\n")

	if pos != nil {
		b.WriteString(directionGuidance(pos))
		b.WriteString("\n\n")
	}

	b.WriteString("## Long-term Memory (Game State):\n")
	b.WriteString(notepad)
	b.WriteString("\n")

	if chatSummary != "" {
		b.WriteString("## Viewer Chat Suggestions:\n")
		b.WriteString(chatSummary)
		b.WriteString("\n")
	}

	b.WriteString("\nChoose the appropriate button for this situation and use the press_button function to execute it.\n")
	return b.String()
}
