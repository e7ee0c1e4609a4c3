package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mtgprep/mtgprep/internal/prompts"
)

// Unknown fills a section the model left out.
const Unknown = "(Unknown)"

// RenderSections maps structured brief JSON onto markdown sections in
// prompts.BriefSections order. Text that is not a JSON object is
// returned unchanged.
func RenderSections(raw string) string {
	var fields map[string]any
	if err := json.Unmarshal([]byte(stripFence(raw)), &fields); err != nil {
		return raw
	}

	var sb strings.Builder
	for i, s := range prompts.BriefSections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("## ")
		sb.WriteString(s.Heading)
		sb.WriteByte('\n')
		sb.WriteString(renderField(fields[s.Field], s.List))
	}
	return sb.String()
}

func renderField(v any, list bool) string {
	switch val := v.(type) {
	case nil:
		return Unknown
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return Unknown
		}
		if list {
			return "- " + val
		}
		return val
	case []any:
		var lines []string
		for _, item := range val {
			text := strings.TrimSpace(fmt.Sprint(item))
			if s, ok := item.(string); ok {
				text = strings.TrimSpace(s)
			}
			if text != "" {
				lines = append(lines, "- "+text)
			}
		}
		if len(lines) == 0 {
			return Unknown
		}
		return strings.Join(lines, "\n")
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return Unknown
		}
		return string(out)
	}
}

// stripFence removes a ```json ... ``` wrapper some models add.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
