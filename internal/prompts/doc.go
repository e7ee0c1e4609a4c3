// Package prompts contains the instruction text sent to models.
//
// Prompt text is Go code rather than config files because it is program
// logic: it is selected by mode, interpolated, and checked by tests.
// Each instruction profile lives in its own file with an exported
// constructor; the structured-output schema lives next to the brief
// profile it belongs to.
package prompts

import "strings"

// Profile is a fixed instruction template: the developer/system message
// plus the user prompt used when a caller does not supply one.
type Profile struct {
	Name              string
	Instructions      string
	DefaultUserPrompt string
}

// UserPrompt returns override when it is non-blank, else the default.
func (p Profile) UserPrompt(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return p.DefaultUserPrompt
}
