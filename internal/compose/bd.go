package compose

import (
	"fmt"
	"strings"

	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/research"
)

// Attendee is a meeting participant with whatever enrichment was found.
type Attendee struct {
	Name       string
	Title      string
	Company    string
	Email      string
	LinkedIn   research.LinkedInMatch
	CRM        *hubspot.Contact
	Background research.Background
}

// BDInput is the evidence for an external business development report.
type BDInput struct {
	Company        string
	Industry       string
	MeetingContext string
	Attendees      []Attendee
	Research       research.CompanyResearch
	Competitive    research.Bucket
	Website        *research.Page
}

// BD composes the business development report context.
func BD(in BDInput) string {
	var names []string
	for _, a := range in.Attendees {
		if a.Title != "" {
			names = append(names, fmt.Sprintf("%s (%s)", a.Name, a.Title))
		} else {
			names = append(names, a.Name)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "TARGET COMPANY: %s\n", or(strings.TrimSpace(in.Company), NotProvided))
	fmt.Fprintf(&sb, "MEETING ATTENDEES: %s\n", or(strings.Join(names, ", "), NoneProvided))
	fmt.Fprintf(&sb, "INDUSTRY: %s\n", or(strings.TrimSpace(in.Industry), NotProvided))
	fmt.Fprintf(&sb, "MEETING CONTEXT: %s\n\n", or(strings.TrimSpace(in.MeetingContext), NotProvided))
	sb.WriteString("RESEARCH INTELLIGENCE:\n")

	r := in.Research
	buckets := []struct {
		heading string
		b       research.Bucket
	}{
		{"Company Overview Research", r.Overview},
		{"Recent News & Developments", r.News},
		{"Executive & Leadership", r.Executive},
		{"Financial Signals", r.Financial},
		{"Digital Presence", r.Digital},
		{"Competitive Landscape", in.Competitive},
	}
	for _, s := range buckets {
		fmt.Fprintf(&sb, "## %s\n", s.heading)
		writeBucket(&sb, s.b)
		sb.WriteByte('\n')
	}

	sb.WriteString("## Website Content\n")
	switch w := in.Website; {
	case w == nil:
		sb.WriteString(NoResearchData + "\n")
	case w.Error != "":
		fmt.Fprintf(&sb, "Source: %s\n(website could not be read: %s)\n", w.URL, w.Error)
	default:
		fmt.Fprintf(&sb, "**%s**\nSource: %s\n%s\n", or(w.Title, w.URL), w.URL, or(w.Content, NoResearchData))
	}
	sb.WriteByte('\n')

	sb.WriteString("## Meeting Attendee Profiles\n")
	if len(in.Attendees) == 0 {
		sb.WriteString(NoneProvided + "\n")
	}
	for i, a := range in.Attendees {
		if i > 0 {
			sb.WriteByte('\n')
		}
		writeAttendee(&sb, a)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeBucket(sb *strings.Builder, b research.Bucket) {
	if len(b.Items) == 0 {
		sb.WriteString(NoResearchData + "\n")
		return
	}
	for _, it := range b.Items {
		fmt.Fprintf(sb, "**%s**\n", it.Title)
		if it.Link != "" {
			fmt.Fprintf(sb, "Source: %s\n", it.Link)
		}
		if it.Snippet != "" {
			sb.WriteString(it.Snippet + "\n")
		}
	}
}

func writeAttendee(sb *strings.Builder, a Attendee) {
	fmt.Fprintf(sb, "### %s\n", a.Name)
	fmt.Fprintf(sb, "**Title:** %s\n", or(a.Title, NotProvided))
	if a.Company != "" {
		fmt.Fprintf(sb, "**Company:** %s\n", a.Company)
	}
	fmt.Fprintf(sb, "**Email:** %s\n", or(a.Email, NotProvided))

	switch {
	case !a.LinkedIn.Found():
		sb.WriteString("**LinkedIn:** Not found\n")
	case a.LinkedIn.Verified:
		fmt.Fprintf(sb, "**LinkedIn:** %s (name confirmed in profile title)\n", a.LinkedIn.URL)
	default:
		fmt.Fprintf(sb, "**LinkedIn:** %s (unverified match, confidence: %s)\n", a.LinkedIn.URL, a.LinkedIn.Confidence)
	}

	if a.CRM != nil {
		fmt.Fprintf(sb, "**HubSpot Status:** Existing contact found (ID: %s)\n", a.CRM.ID)
		if a.CRM.LifecycleStage != "" {
			fmt.Fprintf(sb, "**Lifecycle Stage:** %s\n", a.CRM.LifecycleStage)
		}
	} else {
		sb.WriteString("**HubSpot Status:** Not in HubSpot\n")
	}

	var bg []string
	if a.LinkedIn.Snippet != "" {
		bg = append(bg, a.LinkedIn.Snippet)
	}
	for _, b := range []research.Bucket{a.Background.Info, a.Background.Highlights} {
		for _, it := range b.Items {
			if it.Snippet != "" {
				bg = append(bg, it.Snippet)
			}
		}
	}
	sb.WriteString("**Professional Background:**\n")
	if len(bg) == 0 {
		sb.WriteString(NoResearchData + "\n")
		return
	}
	for _, s := range bg {
		fmt.Fprintf(sb, "- %s\n", s)
	}
}
