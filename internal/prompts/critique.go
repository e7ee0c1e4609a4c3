package prompts

import "fmt"

const critiqueInstructions = `You are a demanding editor reviewing a meeting preparation document before it reaches an executive.
Improve this draft without inventing facts. Every claim must be supported by the draft or the source research.
Tighten weak sections, remove filler, flag unsupported statements as assumptions, and keep the original section structure.
Return only the improved document in Markdown.`

const critiqueTemplate = `DRAFT:
%s

SOURCE RESEARCH:
%s`

// Critique is the profile for the optional refinement pass.
func Critique() Profile {
	return Profile{
		Name:              "critique",
		Instructions:      critiqueInstructions,
		DefaultUserPrompt: "Revise the draft below using only the source research.",
	}
}

// CritiqueInput joins a first draft with the research it was written from.
func CritiqueInput(draft, research string) string {
	return fmt.Sprintf(critiqueTemplate, draft, research)
}
