package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		out  Output
		want string
	}{
		{
			name: "output text",
			out:  OutputText{Text: "  # Brief\n"},
			want: "# Brief",
		},
		{
			name: "content parts joined",
			out: ContentParts{Parts: []ContentPart{
				{Type: "output_text", Text: "Part one. "},
				{Type: "refusal", Text: "ignored"},
				{Type: "text", Text: "Part two."},
			}},
			want: "Part one. Part two.",
		},
		{
			name: "content parts empty",
			out:  ContentParts{},
			want: "",
		},
		{
			name: "chat completion first choice",
			out: ChatCompletion{Choices: []Message{
				{Role: "assistant", Content: "first"},
				{Role: "assistant", Content: "second"},
			}},
			want: "first",
		},
		{
			name: "chat completion no choices",
			out:  ChatCompletion{},
			want: "",
		},
		{
			name: "nil output",
			out:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.out); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponseText_Nil(t *testing.T) {
	var r *Response
	if r.Text() != "" {
		t.Error("nil response should have empty text")
	}
}

func TestUnsupportedError(t *testing.T) {
	var err error = &UnsupportedError{Provider: "gemini", Feature: FeatureTools}
	if err.Error() != "gemini: tools not supported" {
		t.Errorf("Error() = %q", err.Error())
	}

	var ue *UnsupportedError
	if !errors.As(fmt.Errorf("dispatch: %w", err), &ue) || ue.Feature != FeatureTools {
		t.Error("UnsupportedError should survive wrapping")
	}
}

func TestClientsImplementInterface(t *testing.T) {
	var _ Client = (*OpenAIClient)(nil)
	var _ Client = (*AnthropicClient)(nil)
	var _ Client = (*OllamaClient)(nil)
	var _ Client = (*GeminiClient)(nil)
	var _ Client = (*MultiClient)(nil)
}
