// Package compose assembles the context text handed to the model.
//
// Composition is pure: the same inputs always produce byte-identical
// output. Every section header is always present; missing evidence is
// replaced by a literal placeholder so the model can see what is absent.
package compose

import (
	"fmt"
	"strings"

	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/prompts"
)

// Placeholders for absent evidence.
const (
	NoneProvided   = "(none provided)"
	NotProvided    = "(not provided)"
	NoCRMContext   = "(no HubSpot context)"
	NoResearchData = "(no research data available)"
)

// Mode selects the instruction template.
type Mode int

const (
	// ModeInternal is a brief for an internal or account meeting built
	// from chat history and CRM records.
	ModeInternal Mode = iota
	// ModeExternalBD is a business development report built from web
	// research on a prospect.
	ModeExternalBD
)

func (m Mode) String() string {
	if m == ModeExternalBD {
		return "external_bd"
	}
	return "internal"
}

// Instructions returns the fixed profile for mode. A non-blank override
// replaces the profile's default user prompt.
func Instructions(mode Mode, override string) prompts.Profile {
	p := prompts.ExecutiveBrief()
	if mode == ModeExternalBD {
		p = prompts.BusinessDevelopment()
	}
	p.DefaultUserPrompt = p.UserPrompt(override)
	return p
}

// ConversationInput is the evidence for an internal meeting brief.
type ConversationInput struct {
	Purpose      string
	Contacts     []hubspot.Contact
	Transcript   string
	LookbackDays int
}

// Conversation composes the internal brief context.
func Conversation(in ConversationInput) string {
	var attendees, accounts []string
	for _, c := range in.Contacts {
		line := fmt.Sprintf("- %s — %s (%s)", c.FullName(), c.Title, c.Email)
		if c.LinkedInURL != "" {
			line += " — " + c.LinkedInURL
		}
		attendees = append(attendees, line)
		accounts = append(accounts, fmt.Sprintf("• %s — lifecycle: %s  (contact: %s)",
			or(c.Company, "—"), or(c.LifecycleStage, "n/a"), c.Email))
	}

	var sb strings.Builder
	section(&sb, "MEETING PURPOSE:", or(strings.TrimSpace(in.Purpose), NotProvided))
	section(&sb, "ATTENDEES:", orLines(attendees, NoneProvided))
	section(&sb, "ACCOUNT CONTEXT (HubSpot):", orLines(accounts, NoCRMContext))
	fmt.Fprintf(&sb, "RECENT SLACK (last %d days):\n%s", in.LookbackDays, or(in.Transcript, NoneProvided))
	return sb.String()
}

func section(sb *strings.Builder, header, body string) {
	sb.WriteString(header)
	sb.WriteByte('\n')
	sb.WriteString(body)
	sb.WriteString("\n\n")
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func orLines(lines []string, fallback string) string {
	if len(lines) == 0 {
		return fallback
	}
	return strings.Join(lines, "\n")
}
