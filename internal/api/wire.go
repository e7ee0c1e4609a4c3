package api

import (
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/mtgprep/mtgprep/internal/brief"
	"github.com/mtgprep/mtgprep/internal/compose"
	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/research"
)

// RunRequest is the body of POST /api/run.
type RunRequest struct {
	ChannelID    string `json:"channel_id"`
	Limit        int    `json:"limit,omitempty"`
	LookbackDays int    `json:"lookback_days,omitempty"`
	Effort       string `json:"effort,omitempty"`
	// ResolveNames defaults to true when omitted.
	ResolveNames *bool  `json:"resolve_names,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	// AttendeeEmails is a comma-separated address list.
	AttendeeEmails string `json:"attendee_emails,omitempty"`
	Purpose        string `json:"purpose,omitempty"`
	Format         string `json:"format,omitempty"`
}

// RunResponse is the body returned by POST /api/run.
type RunResponse struct {
	BriefMarkdown string         `json:"brief_markdown"`
	BriefHTML     string         `json:"brief_html,omitempty"`
	Meta          map[string]any `json:"meta"`
}

// Attendee is an attendee as entered by the user.
type Attendee struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Email       string `json:"email,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

func (a Attendee) input() brief.AttendeeInput {
	return brief.AttendeeInput{
		Name:     a.Name,
		Title:    a.Title,
		Company:  a.Company,
		Email:    a.Email,
		LinkedIn: a.LinkedInURL,
	}
}

// Background is an attendee's web background in response form.
type Background struct {
	BackgroundInfo   []research.Item `json:"background_info"`
	CareerHighlights []research.Item `json:"career_highlights"`
}

// ResearchedAttendee is an attendee with enrichment, returned by the
// research phase and accepted back by the report phase.
type ResearchedAttendee struct {
	Name               string           `json:"name"`
	Title              string           `json:"title"`
	Company            string           `json:"company"`
	Email              string           `json:"email"`
	LinkedInURL        string           `json:"linkedin_url"`
	LinkedInSnippet    string           `json:"linkedin_snippet"`
	LinkedInVerified   bool             `json:"linkedin_verified"`
	LinkedInConfidence string           `json:"linkedin_confidence,omitempty"`
	HubSpotContact     *hubspot.Contact `json:"hubspot_contact"`
	BackgroundResearch Background       `json:"background_research"`
}

func researchedFrom(a compose.Attendee) ResearchedAttendee {
	return ResearchedAttendee{
		Name:               a.Name,
		Title:              a.Title,
		Company:            a.Company,
		Email:              a.Email,
		LinkedInURL:        a.LinkedIn.URL,
		LinkedInSnippet:    a.LinkedIn.Snippet,
		LinkedInVerified:   a.LinkedIn.Verified,
		LinkedInConfidence: string(a.LinkedIn.Confidence),
		HubSpotContact:     a.CRM,
		BackgroundResearch: Background{
			BackgroundInfo:   nonNil(a.Background.Info.Items),
			CareerHighlights: nonNil(a.Background.Highlights.Items),
		},
	}
}

func (r ResearchedAttendee) attendee() compose.Attendee {
	a := compose.Attendee{
		Name:    strings.TrimSpace(r.Name),
		Title:   r.Title,
		Company: r.Company,
		Email:   r.Email,
		CRM:     r.HubSpotContact,
		LinkedIn: research.LinkedInMatch{
			URL:        r.LinkedInURL,
			Snippet:    r.LinkedInSnippet,
			Verified:   r.LinkedInVerified,
			Confidence: research.Confidence(r.LinkedInConfidence),
		},
	}
	a.Background.Info = research.Bucket{Name: research.AttendeeBackground, Items: r.BackgroundResearch.BackgroundInfo}
	a.Background.Highlights = research.Bucket{Name: research.CareerHighlights, Items: r.BackgroundResearch.CareerHighlights}
	return a
}

func nonNil(items []research.Item) []research.Item {
	if items == nil {
		return []research.Item{}
	}
	return items
}

// ResearchRequest is the body of POST /api/bd/research-attendees.
type ResearchRequest struct {
	Attendees     []Attendee `json:"attendees"`
	TargetCompany string     `json:"target_company"`
	// CheckHubSpot defaults to true when omitted.
	CheckHubSpot *bool `json:"check_hubspot,omitempty"`
}

// ResearchResponse is the body returned by POST /api/bd/research-attendees.
type ResearchResponse struct {
	TotalResearched     int                  `json:"total_researched"`
	LinkedInFound       int                  `json:"linkedin_found"`
	HubSpotFound        int                  `json:"hubspot_found"`
	ResearchedAttendees []ResearchedAttendee `json:"researched_attendees"`
}

// BDRequest is the body of POST /api/bd/generate and
// POST /api/debug/prompt-preview.
type BDRequest struct {
	CompanyName    string `json:"company_name"`
	Industry       string `json:"industry,omitempty"`
	MeetingContext string `json:"meeting_context,omitempty"`
	Website        string `json:"website,omitempty"`
	Effort         string `json:"effort,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	// Attendees are researched server-side when ResearchedAttendees is
	// empty.
	Attendees           []Attendee           `json:"attendees,omitempty"`
	ResearchedAttendees []ResearchedAttendee `json:"researched_attendees,omitempty"`
	CheckHubSpot        *bool                `json:"check_hubspot,omitempty"`
	Format              string               `json:"format,omitempty"`
}

func (b BDRequest) request() brief.BDRequest {
	req := brief.BDRequest{
		Company:        b.CompanyName,
		Industry:       b.Industry,
		MeetingContext: b.MeetingContext,
		Website:        b.Website,
		CheckCRM:       orTrue(b.CheckHubSpot),
		Instruction:    b.Prompt,
		Effort:         b.Effort,
	}
	for _, a := range b.Attendees {
		req.Attendees = append(req.Attendees, a.input())
	}
	for _, r := range b.ResearchedAttendees {
		if strings.TrimSpace(r.Name) != "" {
			req.Researched = append(req.Researched, r.attendee())
		}
	}
	return req
}

// BDResponse is the body returned by POST /api/bd/generate.
type BDResponse struct {
	ReportMarkdown string         `json:"report_markdown"`
	ReportHTML     string         `json:"report_html,omitempty"`
	Meta           map[string]any `json:"meta"`
}

// ChannelSummary is one entry of GET /api/channels.
type ChannelSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
}

func orTrue(b *bool) bool {
	return b == nil || *b
}

// parseAttendeeEmails accepts an RFC 5322 address list. Input that does
// not parse as one falls back to a plain comma split keeping entries
// that look like addresses.
func parseAttendeeEmails(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var out []string
	if list, err := mail.ParseAddressList(raw); err == nil {
		for _, a := range list {
			out = append(out, strings.ToLower(a.Address))
		}
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); strings.Contains(part, "@") {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
