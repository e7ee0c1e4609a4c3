package research

import (
	"context"
	"fmt"
	"strings"
)

// Confidence grades an identity match.
type Confidence string

// Confidence levels.
const (
	ConfidenceNone   Confidence = ""
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// LinkedInMatch is a probable profile for a person. The match is a
// name heuristic: Verified means both name tokens appear in the result
// title, which is stronger than a snippet-only match but still not proof.
type LinkedInMatch struct {
	URL        string     `json:"url,omitempty"`
	Title      string     `json:"title,omitempty"`
	Snippet    string     `json:"snippet,omitempty"`
	Verified   bool       `json:"verified"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// Found reports whether a profile was matched.
func (m LinkedInMatch) Found() bool {
	return m.URL != ""
}

const linkedInProfilePath = "linkedin.com/in/"

// AttendeeLinkedIn looks for a person's LinkedIn profile. Results must
// link to a profile page and mention both the first and last name.
func (a *Aggregator) AttendeeLinkedIn(ctx context.Context, name, company, title string) LinkedInMatch {
	first, last := nameTokens(name)
	if first == "" || !a.searchConfigured() {
		return LinkedInMatch{}
	}

	parts := []string{strings.TrimSpace(name), strings.TrimSpace(company)}
	if title = strings.TrimSpace(title); title != "" {
		parts = append(parts, title)
	}
	parts = append(parts, "linkedin")
	q := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")

	b := a.bucket(ctx, "linkedin", q, 5)
	if b.Placeholder {
		return LinkedInMatch{}
	}

	mentions := func(s string) bool {
		s = strings.ToLower(s)
		return strings.Contains(s, first) && strings.Contains(s, last)
	}
	for _, it := range b.Items {
		if !strings.Contains(strings.ToLower(it.Link), linkedInProfilePath) {
			continue
		}
		inTitle := mentions(it.Title)
		if !inTitle && !mentions(it.Snippet) {
			continue
		}
		m := LinkedInMatch{URL: it.Link, Title: it.Title, Snippet: it.Snippet, Confidence: ConfidenceMedium}
		if inTitle {
			m.Verified = true
			m.Confidence = ConfidenceHigh
		}
		return m
	}
	return LinkedInMatch{}
}

// nameTokens returns the lowercased first and last name tokens.
func nameTokens(name string) (string, string) {
	f := strings.Fields(strings.ToLower(name))
	if len(f) == 0 {
		return "", ""
	}
	return f[0], f[len(f)-1]
}

// Background is what the web says about a person.
type Background struct {
	Info       Bucket `json:"background_info"`
	Highlights Bucket `json:"career_highlights"`
}

// AttendeeBackground runs two background searches on a person. Failures
// leave the buckets empty.
func (a *Aggregator) AttendeeBackground(ctx context.Context, name, company, title string) Background {
	info := strings.Join(strings.Fields(fmt.Sprintf("%s %s %s background experience", name, company, title)), " ")
	highlights := strings.Join(strings.Fields(name+" career achievements awards interview"), " ")
	return Background{
		Info:       a.quiet(ctx, AttendeeBackground, info, 3),
		Highlights: a.quiet(ctx, CareerHighlights, highlights, 3),
	}
}
