package prompts

// Section maps one structured-output field to a markdown heading.
type Section struct {
	Field   string
	Heading string
	List    bool
}

// BriefSections lists the structured brief fields in render order.
var BriefSections = []Section{
	{Field: "tldr", Heading: "TL;DR", List: true},
	{Field: "objectives", Heading: "Meeting Objectives", List: true},
	{Field: "account_snapshot", Heading: "Account Snapshot"},
	{Field: "attendees", Heading: "Attendee One-Pagers", List: true},
	{Field: "whats_new", Heading: "What's New", List: true},
	{Field: "hypotheses", Heading: "Hypotheses & Win Themes", List: true},
	{Field: "questions", Heading: "Smart Questions to Ask", List: true},
	{Field: "risks", Heading: "Risks & Counters", List: true},
	{Field: "action_plan", Heading: "14-Day Action Plan", List: true},
	{Field: "validation_checklist", Heading: "Validation Checklist", List: true},
}

// BriefSchemaName names the schema in model requests.
const BriefSchemaName = "brief_sections"

// BriefSchema returns the JSON schema for structured brief output.
func BriefSchema() map[string]any {
	props := make(map[string]any, len(BriefSections))
	required := make([]string, 0, len(BriefSections))
	for _, s := range BriefSections {
		if s.List {
			props[s.Field] = map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			}
		} else {
			props[s.Field] = map[string]any{"type": "string"}
		}
		required = append(required, s.Field)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
