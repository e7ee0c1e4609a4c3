// Package llm provides model API clients behind one request/response
// shape. Wire formats differ per provider; conversion happens at the
// provider boundary (openai.go, anthropic.go, ollama.go, gemini.go).
package llm

import (
	"fmt"
	"strings"
)

// Features a provider may refuse.
const (
	FeatureTools        = "tools"
	FeatureSchema       = "schema"
	FeatureEffort       = "effort"
	FeatureContinuation = "continuation"
)

// UnsupportedError reports that a provider or model cannot honor one
// feature of a request. Callers may drop the feature and try again.
type UnsupportedError struct {
	Provider string
	Feature  string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s not supported", e.Provider, e.Feature)
}

// Message is one turn of a conversation.
type Message struct {
	Role       string // system, user, assistant, tool
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string // for tool results
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string // provider-assigned; correlates the result
	Name      string
	Arguments map[string]any
}

// ToolOutput is the result of one ToolCall, submitted back to the model.
type ToolOutput struct {
	CallID string
	Output string
}

// Tool describes a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// Schema constrains output to JSON matching a JSON Schema.
type Schema struct {
	Name   string
	Schema map[string]any
}

// Request is a provider-neutral generation request.
type Request struct {
	Model string
	// Instructions is sent with developer (or system) authority.
	Instructions    string
	Messages        []Message
	Effort          string // low, medium, high; empty leaves the provider default
	MaxOutputTokens int
	Schema          *Schema
	Tools           []Tool

	// PreviousResponseID continues a stored response; ToolOutputs are
	// then the only new input. Only providers with server-side state
	// support it.
	PreviousResponseID string
	ToolOutputs        []ToolOutput
}

// Response is a provider-neutral generation result.
type Response struct {
	ID           string
	Model        string
	Output       Output
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// Text returns the response text regardless of its shape.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return ExtractText(r.Output)
}

// Output is the body of a response. Providers return one of
// OutputText, ContentParts or ChatCompletion.
type Output interface {
	isOutput()
}

// OutputText is a single convenience text field.
type OutputText struct {
	Text string
}

// ContentPart is one typed block of a structured response.
type ContentPart struct {
	Type string // "output_text", "text", "refusal", ...
	Text string
}

// ContentParts is a list of typed content blocks.
type ContentParts struct {
	Parts []ContentPart
}

// ChatCompletion is a chat-style response with one or more choices.
type ChatCompletion struct {
	Choices []Message
}

func (OutputText) isOutput()     {}
func (ContentParts) isOutput()   {}
func (ChatCompletion) isOutput() {}

// ExtractText returns the text of o. Content parts contribute only their
// text blocks; a chat completion contributes its first choice.
func ExtractText(o Output) string {
	switch v := o.(type) {
	case OutputText:
		return strings.TrimSpace(v.Text)
	case ContentParts:
		var parts []string
		for _, p := range v.Parts {
			if (p.Type == "output_text" || p.Type == "text") && p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		return strings.TrimSpace(strings.Join(parts, ""))
	case ChatCompletion:
		if len(v.Choices) == 0 {
			return ""
		}
		return strings.TrimSpace(v.Choices[0].Content)
	default:
		return ""
	}
}
