package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mtgprep/mtgprep/internal/brief"
	"github.com/mtgprep/mtgprep/internal/usage"
)

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	msg := "invalid request body"
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		msg = "request body is required"
	case errors.As(err, &tooLarge):
		msg = "request body too large"
	}
	s.errorResponse(w, http.StatusBadRequest, errTypeInvalidRequest, msg)
	return false
}

// wantHTML reports whether a request asked for rendered HTML too.
func wantHTML(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), "html")
}

// GET /api/channels
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.svc.Channels(r.Context())
	if err != nil {
		s.fail(w, r, "list channels", err)
		return
	}

	out := make([]ChannelSummary, 0, len(channels))
	for _, c := range channels {
		out = append(out, ChannelSummary{ID: c.ID, Name: c.Name, IsPrivate: c.IsPrivate})
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"channels": out}, s.logger)
}

// POST /api/run {"channel_id": "C123", "attendee_emails": "a@x.com, b@y.com"}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.PrepareConversationBrief(r.Context(), brief.ConversationRequest{
		ChannelID:      req.ChannelID,
		LookbackDays:   req.LookbackDays,
		MaxMessages:    req.Limit,
		ResolveNames:   orTrue(req.ResolveNames),
		AttendeeEmails: parseAttendeeEmails(req.AttendeeEmails),
		Purpose:        req.Purpose,
		Instruction:    req.Prompt,
		Effort:         req.Effort,
	})
	if err != nil {
		s.fail(w, r, "conversation brief", err)
		return
	}

	resp := RunResponse{BriefMarkdown: res.Markdown, Meta: res.Meta}
	if wantHTML(req.Format) {
		resp.BriefHTML = s.renderHTML(res.Markdown)
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// POST /api/bd/research-attendees
func (s *Server) handleResearchAttendees(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	if !s.decode(w, r, &req) {
		return
	}

	attendees := make([]brief.AttendeeInput, 0, len(req.Attendees))
	for _, a := range req.Attendees {
		attendees = append(attendees, a.input())
	}
	res, err := s.svc.ResearchAttendees(r.Context(), attendees, req.TargetCompany, orTrue(req.CheckHubSpot))
	if err != nil {
		s.fail(w, r, "attendee research", err)
		return
	}

	resp := ResearchResponse{
		TotalResearched:     len(res.Attendees),
		LinkedInFound:       res.LinkedInFound,
		HubSpotFound:        res.CRMFound,
		ResearchedAttendees: make([]ResearchedAttendee, 0, len(res.Attendees)),
	}
	for _, a := range res.Attendees {
		resp.ResearchedAttendees = append(resp.ResearchedAttendees, researchedFrom(a))
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// POST /api/bd/generate
func (s *Server) handleBDGenerate(w http.ResponseWriter, r *http.Request) {
	var req BDRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.PrepareBDReport(r.Context(), req.request())
	if err != nil {
		s.fail(w, r, "intelligence report", err)
		return
	}

	resp := BDResponse{ReportMarkdown: res.Markdown, Meta: res.Meta}
	if wantHTML(req.Format) {
		resp.ReportHTML = s.renderHTML(res.Markdown)
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// POST /api/bd/add-to-hubspot {"name": "...", "email": "..."}
func (s *Server) handleAddToHubSpot(w http.ResponseWriter, r *http.Request) {
	var req Attendee
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.AddToCRM(r.Context(), req.input())
	if err != nil {
		s.fail(w, r, "hubspot add", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, res, s.logger)
}

// POST /api/debug/prompt-preview
func (s *Server) handlePromptPreview(w http.ResponseWriter, r *http.Request) {
	var req BDRequest
	if !s.decode(w, r, &req) {
		return
	}

	preview, err := s.svc.PreviewBDPrompt(r.Context(), req.request())
	if err != nil {
		s.fail(w, r, "prompt preview", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, preview, s.logger)
}

// GET /api/usage-logs?limit=100&event_type=conversation_brief&since=24h
//
// since is an RFC 3339 time or a duration back from now; when given,
// the response carries a summary of that period by event type and model.
func (s *Server) handleUsageLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.errorResponse(w, http.StatusBadRequest, errTypeInvalidRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	now := time.Now()
	var since time.Time
	if v := q.Get("since"); v != "" {
		t, ok := parseSince(v, now)
		if !ok {
			s.errorResponse(w, http.StatusBadRequest, errTypeInvalidRequest, "since must be an RFC 3339 time or a positive duration such as 24h")
			return
		}
		since = t
	}

	events := []usage.Event{}
	var report *usage.Report
	if s.usage != nil {
		found, err := s.usage.Recent(r.Context(), q.Get("event_type"), limit)
		if err != nil {
			s.fail(w, r, "usage log", err)
			return
		}
		if found != nil {
			events = found
		}
		if !since.IsZero() {
			if report, err = s.usage.Report(since, now); err != nil {
				s.fail(w, r, "usage summary", err)
				return
			}
		}
	}

	resp := map[string]any{
		"logs":          events,
		"total_entries": len(events),
	}
	if report != nil {
		resp["summary"] = report
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

func parseSince(v string, now time.Time) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return now.Add(-d), true
	}
	return time.Time{}, false
}
