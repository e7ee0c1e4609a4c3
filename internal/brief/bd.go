package brief

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mtgprep/mtgprep/internal/compose"
	"github.com/mtgprep/mtgprep/internal/prompts"
	"github.com/mtgprep/mtgprep/internal/reasoning"
	"github.com/mtgprep/mtgprep/internal/research"
	"github.com/mtgprep/mtgprep/internal/usage"
)

// researchConcurrency bounds the attendees researched at once.
const researchConcurrency = 4

// AttendeeInput is an attendee as supplied by the caller.
type AttendeeInput struct {
	Name    string
	Title   string
	Company string
	Email   string
	// LinkedIn is a known profile URL, used when adding to the CRM.
	LinkedIn string
}

// AttendeeResearch is the outcome of researching a list of attendees.
type AttendeeResearch struct {
	Attendees     []compose.Attendee
	LinkedInFound int
	CRMFound      int
}

// BDRequest asks for an external business development report.
type BDRequest struct {
	Company        string
	Industry       string
	MeetingContext string
	Website        string
	// Attendees are researched before the report unless Researched is
	// already populated from an earlier ResearchAttendees call.
	Attendees  []AttendeeInput
	Researched []compose.Attendee
	CheckCRM   bool
	// Instruction replaces the default user prompt when non-blank.
	Instruction string
	Effort      string
}

// ResearchAttendees looks up each named attendee: a CRM match when
// checkCRM is set, a LinkedIn profile (from the CRM record when it has
// one, otherwise from web search) and background research. Attendees
// without a company are researched against targetCompany. Individual
// lookups are best-effort; only cancellation fails the call.
func (s *Service) ResearchAttendees(ctx context.Context, attendees []AttendeeInput, targetCompany string, checkCRM bool) (*AttendeeResearch, error) {
	out, err := s.researchAttendees(ctx, attendees, targetCompany, checkCRM)
	if err != nil {
		return nil, err
	}
	if len(out.Attendees) == 0 {
		return nil, invalid("at least one attendee with a name is required")
	}

	s.record(ctx, usage.Event{
		Type: usage.EventAttendeeResearch,
		Data: map[string]any{
			"target_company":   strings.TrimSpace(targetCompany),
			"attendee_count":   len(attendees),
			"total_researched": len(out.Attendees),
			"linkedin_found":   out.LinkedInFound,
			"hubspot_found":    out.CRMFound,
		},
	})
	return out, nil
}

func (s *Service) researchAttendees(ctx context.Context, attendees []AttendeeInput, targetCompany string, checkCRM bool) (*AttendeeResearch, error) {
	targetCompany = strings.TrimSpace(targetCompany)

	var named []AttendeeInput
	for _, a := range attendees {
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			continue
		}
		if strings.TrimSpace(a.Company) == "" {
			a.Company = targetCompany
		}
		named = append(named, a)
	}

	out := &AttendeeResearch{Attendees: make([]compose.Attendee, len(named))}
	if len(named) == 0 {
		return out, nil
	}

	useCRM := checkCRM && s.deps.CRM != nil && s.deps.CRM.Configured()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(researchConcurrency)
	for i, a := range named {
		g.Go(func() error {
			out.Attendees[i] = s.researchAttendee(gctx, a, useCRM)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, a := range out.Attendees {
		if a.LinkedIn.Found() {
			out.LinkedInFound++
		}
		if a.CRM != nil {
			out.CRMFound++
		}
	}
	s.logger.Info("attendees researched",
		"total", len(out.Attendees),
		"linkedin_found", out.LinkedInFound,
		"crm_found", out.CRMFound,
	)
	return out, nil
}

func (s *Service) researchAttendee(ctx context.Context, in AttendeeInput, useCRM bool) compose.Attendee {
	a := compose.Attendee{
		Name:    in.Name,
		Title:   strings.TrimSpace(in.Title),
		Company: strings.TrimSpace(in.Company),
		Email:   strings.TrimSpace(in.Email),
	}

	if useCRM {
		a.CRM = s.deps.CRM.Find(ctx, a.Name, a.Email, a.Company)
	}
	if a.CRM != nil && a.CRM.LinkedInURL != "" {
		a.LinkedIn = research.LinkedInMatch{
			URL:        a.CRM.LinkedInURL,
			Verified:   true,
			Confidence: research.ConfidenceHigh,
		}
	} else if s.deps.Research != nil {
		a.LinkedIn = s.deps.Research.AttendeeLinkedIn(ctx, a.Name, a.Company, a.Title)
	}
	if s.deps.Research != nil {
		a.Background = s.deps.Research.AttendeeBackground(ctx, a.Name, a.Company, a.Title)
	}
	return a
}

// researchFacets counts the research buckets that came back with real
// results.
func researchFacets(in compose.BDInput) int {
	n := 0
	for _, b := range append(in.Research.Buckets(), in.Competitive) {
		if !b.Empty() {
			n++
		}
	}
	return n
}

// PrepareBDReport researches the target company (and the attendees,
// unless already researched) and generates the intelligence report.
func (s *Service) PrepareBDReport(ctx context.Context, req BDRequest) (*Result, error) {
	start := s.now()

	effort, err := s.effort(req.Effort)
	if err != nil {
		return nil, err
	}
	in, err := s.gatherBD(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := s.deps.Generator.Generate(ctx, reasoning.Request{
		Profile: compose.Instructions(compose.ModeExternalBD, req.Instruction),
		Context: compose.BD(in.BDInput),
		Effort:  effort,
		Options: s.cfg.Options,
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"company_name":    in.Company,
		"industry":        in.Industry,
		"attendees_found": len(in.Attendees),
		"linkedin_found":  in.linkedInFound,
		"hubspot_found":   in.crmFound,
		"website_scraped": in.Website != nil && in.Website.Error == "",
		"research_facets": researchFacets(in.BDInput),
		"effort":          effort,
		"duration_ms":     s.now().Sub(start).Milliseconds(),
	}
	generationMeta(meta, res)

	s.record(ctx, usage.Event{
		Type:         usage.EventIntelligenceReport,
		Model:        res.Model,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Data: map[string]any{
			"company_name":    in.Company,
			"attendees_count": len(in.Attendees),
			"effort":          effort,
		},
	})

	return &Result{Markdown: res.Markdown, Meta: meta}, nil
}

// Preview is the prompt a BD report would send, without the model call.
type Preview struct {
	Profile     string         `json:"profile"`
	Mode        string         `json:"mode"`
	Instruction string         `json:"system_message"`
	UserPrompt  string         `json:"user_prompt"`
	Context     string         `json:"research_context"`
	Stats       map[string]int `json:"prompt_stats"`
}

// PreviewBDPrompt gathers the same research as PrepareBDReport and
// returns the composed prompt with character counts.
func (s *Service) PreviewBDPrompt(ctx context.Context, req BDRequest) (*Preview, error) {
	in, err := s.gatherBD(ctx, req)
	if err != nil {
		return nil, err
	}

	p := compose.Instructions(compose.ModeExternalBD, req.Instruction)
	text := compose.BD(in.BDInput)
	return &Preview{
		Profile:     p.Name,
		Mode:        compose.ModeExternalBD.String(),
		Instruction: p.Instructions,
		UserPrompt:  p.DefaultUserPrompt,
		Context:     text,
		Stats:       promptStats(p, text),
	}, nil
}

func promptStats(p prompts.Profile, text string) map[string]int {
	n := func(s string) int { return len([]rune(s)) }
	return map[string]int{
		"system_message_length":   n(p.Instructions),
		"user_prompt_length":      n(p.DefaultUserPrompt),
		"research_context_length": n(text),
		"total_length":            n(p.Instructions) + n(p.DefaultUserPrompt) + n(text),
	}
}

type bdEvidence struct {
	compose.BDInput
	linkedInFound int
	crmFound      int
}

// gatherBD runs company research and, when needed, attendee research
// side by side.
func (s *Service) gatherBD(ctx context.Context, req BDRequest) (*bdEvidence, error) {
	company := strings.TrimSpace(req.Company)
	if company == "" {
		return nil, invalid("company_name is required")
	}

	ev := &bdEvidence{BDInput: compose.BDInput{
		Company:        company,
		Industry:       strings.TrimSpace(req.Industry),
		MeetingContext: strings.TrimSpace(req.MeetingContext),
		Attendees:      req.Researched,
	}}

	var dossier *research.Dossier
	g, gctx := errgroup.WithContext(ctx)
	if s.deps.Research != nil {
		g.Go(func() error {
			d, err := s.deps.Research.Gather(gctx, research.Target{
				Company:   company,
				Executive: executive(req),
				Industry:  ev.Industry,
				Website:   strings.TrimSpace(req.Website),
			})
			dossier = d
			return err
		})
	}
	if len(req.Researched) == 0 && len(req.Attendees) > 0 {
		g.Go(func() error {
			r, err := s.researchAttendees(gctx, req.Attendees, company, req.CheckCRM)
			if err != nil {
				return err
			}
			ev.Attendees = r.Attendees
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if dossier != nil {
		ev.Research = dossier.Company
		ev.Competitive = dossier.Competitive
		ev.Website = dossier.Website
	}
	for _, a := range ev.Attendees {
		if a.LinkedIn.Found() {
			ev.linkedInFound++
		}
		if a.CRM != nil {
			ev.crmFound++
		}
	}
	return ev, nil
}

// executive picks the attendee whose leadership the company research
// focuses on: the first one, if any.
func executive(req BDRequest) string {
	if len(req.Researched) > 0 {
		return req.Researched[0].Name
	}
	for _, a := range req.Attendees {
		if name := strings.TrimSpace(a.Name); name != "" {
			return name
		}
	}
	return ""
}
