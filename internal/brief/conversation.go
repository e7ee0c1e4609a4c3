package brief

import (
	"context"
	"strings"

	"github.com/mtgprep/mtgprep/internal/collector"
	"github.com/mtgprep/mtgprep/internal/compose"
	"github.com/mtgprep/mtgprep/internal/config"
	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/reasoning"
	"github.com/mtgprep/mtgprep/internal/usage"
)

// ConversationRequest asks for an internal meeting brief built from a
// channel's recent history. Zero LookbackDays and MaxMessages take the
// configured defaults.
type ConversationRequest struct {
	ChannelID      string
	LookbackDays   int
	MaxMessages    int
	ResolveNames   bool
	AttendeeEmails []string
	Purpose        string
	// Instruction replaces the default user prompt when non-blank.
	Instruction string
	Effort      string
}

// PrepareConversationBrief collects the channel transcript, looks up
// attendees in the CRM, and generates the brief. Chat failures are
// returned; CRM failures degrade to a brief without account context.
func (s *Service) PrepareConversationBrief(ctx context.Context, req ConversationRequest) (*Result, error) {
	start := s.now()

	req.ChannelID = strings.TrimSpace(req.ChannelID)
	if req.ChannelID == "" {
		return nil, invalid("channel_id is required")
	}
	if req.LookbackDays < 0 || req.MaxMessages < 0 {
		return nil, invalid("lookback_days and messages_limit must not be negative")
	}
	if req.LookbackDays == 0 {
		req.LookbackDays = s.cfg.LookbackDays
	}
	if req.MaxMessages == 0 {
		req.MaxMessages = s.cfg.MaxMessages
	}
	effort, err := s.effort(req.Effort)
	if err != nil {
		return nil, err
	}
	if err := s.requireChat(); err != nil {
		return nil, err
	}

	transcript, err := s.collect(ctx, collector.Options{
		ChannelID:     req.ChannelID,
		LookbackDays:  req.LookbackDays,
		MaxMessages:   req.MaxMessages,
		ResolveNames:  req.ResolveNames,
		ExpandThreads: true,
	})
	if err != nil {
		return nil, err
	}

	contacts := s.contacts(ctx, req.AttendeeEmails)

	text := compose.Conversation(compose.ConversationInput{
		Purpose:      req.Purpose,
		Contacts:     contacts,
		Transcript:   transcript.Text,
		LookbackDays: req.LookbackDays,
	})
	res, err := s.deps.Generator.Generate(ctx, reasoning.Request{
		Profile: compose.Instructions(compose.ModeInternal, req.Instruction),
		Context: text,
		Effort:  effort,
		Options: s.cfg.Options,
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"channel_id":          req.ChannelID,
		"lookback_days":       req.LookbackDays,
		"messages_limit":      req.MaxMessages,
		"messages_included":   len(transcript.Lines),
		"threads_expanded":    transcript.Threads,
		"attendees_requested": len(req.AttendeeEmails),
		"attendees_found":     len(contacts),
		"effort":              effort,
		"duration_ms":         s.now().Sub(start).Milliseconds(),
	}
	generationMeta(meta, res)

	s.record(ctx, usage.Event{
		Type:         usage.EventConversationBrief,
		Model:        res.Model,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Data: map[string]any{
			"channel_id":        req.ChannelID,
			"lookback_days":     req.LookbackDays,
			"messages_included": len(transcript.Lines),
			"attendees_found":   len(contacts),
			"effort":            effort,
		},
	})

	return &Result{Markdown: res.Markdown, Meta: meta}, nil
}

func (s *Service) collect(ctx context.Context, opts collector.Options) (*collector.Transcript, error) {
	if s.cfg.CollectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CollectTimeout)
		defer cancel()
	}
	return s.deps.Collector.Collect(ctx, opts)
}

// contacts fetches CRM records for emails under the CRM phase deadline.
// An unconfigured CRM or a failed fetch yields no contacts.
func (s *Service) contacts(ctx context.Context, emails []string) []hubspot.Contact {
	if len(emails) == 0 || s.deps.CRM == nil || !s.deps.CRM.Configured() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, crmTimeout)
	defer cancel()

	contacts, err := s.deps.CRM.FetchByEmails(ctx, emails)
	if err != nil {
		s.logger.Warn("crm fetch failed, continuing without account context",
			"emails", len(emails), "error", err)
		return nil
	}
	return contacts
}

func (s *Service) requireChat() error {
	if s.deps.Collector == nil || !s.deps.Collector.Configured() {
		return config.MissingError("slack.token")
	}
	return nil
}

func parseEffort(e string) (string, error) {
	effort, err := config.ParseEffort(e)
	if err != nil {
		return "", invalid("%v", err)
	}
	return effort, nil
}
