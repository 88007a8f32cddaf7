package generation

import (
	"fmt"
	"strings"
)

// PromptInputs are the resolved ingredients for one generation prompt.
// All fields are plain text; empty fields are omitted from the prompt.
// The builder is deterministic: the same inputs always produce the same
// prompt, so a concept can be traced back to what requested it.
type PromptInputs struct {
	// RoomPrompt describes the room type (from the style catalog)
	RoomPrompt string

	// StylePrompt describes the target style (from the style catalog)
	StylePrompt string

	// RoomOverride and StyleOverride carry the user's free text when it
	// matched no catalog entry; a non-empty override replaces the
	// corresponding catalog fragment
	RoomOverride  string
	StyleOverride string

	// Constraints is the user's free-text constraints
	Constraints string

	// Analysis is the structural analyzer's prompt-ready description
	Analysis string

	// Design intent, flattened
	DesiredChanges []string
	MustPreserve   []string
	Materials      []string

	// ConditioningNote describes which conditioning images accompany the
	// prompt and why (see the conditioning bundle's Describe)
	ConditioningNote string

	// Corrective is refinement guidance injected on a retry after a
	// failed structure validation
	Corrective string

	// StructureStrength and StyleStrength bias the instruction wording;
	// both are in [0,1]
	StructureStrength float64
	StyleStrength     float64

	// Variation differentiates sibling concepts in one request
	Variation int
}

// BuildPrompt renders a generation prompt from the resolved inputs.
func BuildPrompt(in PromptInputs) string {
	var sb strings.Builder

	sb.WriteString("Photorealistic interior renovation concept. ")
	switch {
	case in.RoomOverride != "":
		sb.WriteString(fmt.Sprintf("The room is a %s. ", in.RoomOverride))
	case in.RoomPrompt != "":
		sb.WriteString(in.RoomPrompt)
		sb.WriteString(" ")
	}
	switch {
	case in.StyleOverride != "":
		sb.WriteString(fmt.Sprintf("Design it in %s style. ", in.StyleOverride))
	case in.StylePrompt != "":
		sb.WriteString(in.StylePrompt)
		sb.WriteString(" ")
	}

	if in.Analysis != "" {
		sb.WriteString("Current room: ")
		sb.WriteString(in.Analysis)
		sb.WriteString(" ")
	}

	if len(in.DesiredChanges) > 0 {
		sb.WriteString("Desired changes: ")
		sb.WriteString(strings.Join(in.DesiredChanges, ", "))
		sb.WriteString(". ")
	}
	if len(in.MustPreserve) > 0 {
		sb.WriteString("Keep unchanged: ")
		sb.WriteString(strings.Join(in.MustPreserve, ", "))
		sb.WriteString(". ")
	}
	if len(in.Materials) > 0 {
		sb.WriteString("Preferred materials: ")
		sb.WriteString(strings.Join(in.Materials, ", "))
		sb.WriteString(". ")
	}
	if in.Constraints != "" {
		sb.WriteString("Additional constraints: ")
		sb.WriteString(in.Constraints)
		sb.WriteString(". ")
	}

	sb.WriteString(structureInstruction(in.StructureStrength))
	sb.WriteString(styleInstruction(in.StyleStrength))

	if in.ConditioningNote != "" {
		sb.WriteString(in.ConditioningNote)
		sb.WriteString(" ")
	}
	if in.Corrective != "" {
		sb.WriteString("Correction from a previous attempt: ")
		sb.WriteString(in.Corrective)
		sb.WriteString(" ")
	}
	if in.Variation > 0 {
		sb.WriteString(fmt.Sprintf("Render design variation %d, distinct from sibling concepts. ", in.Variation))
	}

	sb.WriteString("Maintain realistic lighting, proportions and perspective.")
	return sb.String()
}

func structureInstruction(strength float64) string {
	switch {
	case strength >= 0.8:
		return "Preserve the room's exact geometry: walls, windows, doors and ceiling lines must match the original photo. "
	case strength >= 0.5:
		return "Keep the room's overall layout recognizable; walls, windows and doors stay in place. "
	case strength > 0:
		return "The room's general shape should remain plausible. "
	default:
		return ""
	}
}

func styleInstruction(strength float64) string {
	switch {
	case strength >= 0.8:
		return "Apply the target style boldly across every surface and furnishing. "
	case strength >= 0.5:
		return "Apply the target style clearly while keeping the result livable. "
	case strength > 0:
		return "Apply light touches of the target style. "
	default:
		return ""
	}
}
