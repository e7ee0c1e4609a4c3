package compose

import (
	"strings"
	"testing"

	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/prompts"
	"github.com/mtgprep/mtgprep/internal/research"
)

func TestConversation(t *testing.T) {
	got := Conversation(ConversationInput{
		Purpose: "Q4 renewal",
		Contacts: []hubspot.Contact{{
			FirstName: "Jane", LastName: "Doe", Title: "VP Growth", Email: "jane@acme.com",
			Company: "Acme", LifecycleStage: "customer", LinkedInURL: "https://linkedin.com/in/jd",
		}},
		Transcript:   "• [2025-06-01T09:00:00Z] alice: morning",
		LookbackDays: 14,
	})

	want := "MEETING PURPOSE:\nQ4 renewal\n\n" +
		"ATTENDEES:\n- Jane Doe — VP Growth (jane@acme.com) — https://linkedin.com/in/jd\n\n" +
		"ACCOUNT CONTEXT (HubSpot):\n• Acme — lifecycle: customer  (contact: jane@acme.com)\n\n" +
		"RECENT SLACK (last 14 days):\n• [2025-06-01T09:00:00Z] alice: morning"
	if got != want {
		t.Errorf("got:\n%s\n\nwant:\n%s", got, want)
	}
}

func TestConversation_Placeholders(t *testing.T) {
	got := Conversation(ConversationInput{LookbackDays: 7})
	for _, want := range []string{
		"MEETING PURPOSE:\n" + NotProvided,
		"ATTENDEES:\n" + NoneProvided,
		"ACCOUNT CONTEXT (HubSpot):\n" + NoCRMContext,
		"RECENT SLACK (last 7 days):\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func bdFixture() BDInput {
	return BDInput{
		Company:        "Acme",
		Industry:       "Retail",
		MeetingContext: "Intro call",
		Research: research.CompanyResearch{
			Overview: research.Bucket{Name: research.Overview, Items: []research.Item{
				{Title: "Acme overview", Link: "https://acme.com", Snippet: "Widgets for everyone"},
			}},
			News: research.Bucket{Name: research.News},
		},
		Competitive: research.Bucket{Name: research.Competitive, Placeholder: true, Items: []research.Item{
			{Title: research.UnavailableTitle, Snippet: "skipped"},
		}},
		Attendees: []Attendee{
			{
				Name: "Jane Doe", Title: "CMO", Email: "jane@acme.com",
				LinkedIn: research.LinkedInMatch{URL: "https://linkedin.com/in/jd", Verified: true, Confidence: research.ConfidenceHigh, Snippet: "Growth leader"},
				CRM:      &hubspot.Contact{ID: "123"},
			},
			{Name: "Bob Roe"},
		},
	}
}

func TestBD_SectionOrder(t *testing.T) {
	got := BD(bdFixture())

	headers := []string{
		"TARGET COMPANY: Acme",
		"MEETING ATTENDEES: Jane Doe (CMO), Bob Roe",
		"INDUSTRY: Retail",
		"MEETING CONTEXT: Intro call",
		"RESEARCH INTELLIGENCE:",
		"## Company Overview Research",
		"## Recent News & Developments",
		"## Executive & Leadership",
		"## Financial Signals",
		"## Digital Presence",
		"## Competitive Landscape",
		"## Website Content",
		"## Meeting Attendee Profiles",
		"### Jane Doe",
		"### Bob Roe",
	}
	last := -1
	for _, h := range headers {
		i := strings.Index(got, h)
		if i < 0 {
			t.Fatalf("missing %q in:\n%s", h, got)
		}
		if i < last {
			t.Errorf("%q out of order", h)
		}
		last = i
	}

	for _, want := range []string{
		"**Acme overview**\nSource: https://acme.com\nWidgets for everyone",
		"## Recent News & Developments\n" + NoResearchData,
		"**" + research.UnavailableTitle + "**",
		"**HubSpot Status:** Existing contact found (ID: 123)",
		"**HubSpot Status:** Not in HubSpot",
		"**LinkedIn:** Not found",
		"- Growth leader",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestBD_Empty(t *testing.T) {
	got := BD(BDInput{})
	for _, want := range []string{
		"TARGET COMPANY: " + NotProvided,
		"MEETING ATTENDEES: " + NoneProvided,
		"## Company Overview Research\n" + NoResearchData,
		"## Website Content\n" + NoResearchData,
		"## Meeting Attendee Profiles\n" + NoneProvided,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestBD_Deterministic(t *testing.T) {
	in := bdFixture()
	first := BD(in)
	for range 5 {
		if BD(in) != first {
			t.Fatal("composition is not deterministic")
		}
	}
}

func TestInstructions(t *testing.T) {
	if Instructions(ModeInternal, "").Name == Instructions(ModeExternalBD, "").Name {
		t.Error("modes should select different profiles")
	}
	if got := Instructions(ModeInternal, "Focus on renewal.").DefaultUserPrompt; got != "Focus on renewal." {
		t.Errorf("override not applied: %q", got)
	}
	if got := Instructions(ModeInternal, "  ").DefaultUserPrompt; got != prompts.ExecutiveBrief().DefaultUserPrompt {
		t.Errorf("blank override replaced default: %q", got)
	}
	if ModeExternalBD.String() != "external_bd" {
		t.Errorf("String() = %q", ModeExternalBD.String())
	}
}
