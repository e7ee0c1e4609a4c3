// Package brief is the service surface of mtgprep. It runs the
// pipelines end to end: collect evidence, compose the prompt, invoke
// the model and log the event.
package brief

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtgprep/mtgprep/internal/collector"
	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/reasoning"
	"github.com/mtgprep/mtgprep/internal/research"
	"github.com/mtgprep/mtgprep/internal/slack"
	"github.com/mtgprep/mtgprep/internal/usage"
)

// ErrInvalidRequest marks caller mistakes such as a missing channel id.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// crmTimeout bounds the CRM phase of a conversation brief.
const crmTimeout = 30 * time.Second

// Collector gathers chat history.
type Collector interface {
	Configured() bool
	Collect(ctx context.Context, opts collector.Options) (*collector.Transcript, error)
	Channels(ctx context.Context, prefixes ...string) ([]slack.Channel, error)
}

// CRM resolves and creates contacts.
type CRM interface {
	Configured() bool
	Find(ctx context.Context, name, email, company string) *hubspot.Contact
	FetchByEmails(ctx context.Context, emails []string) ([]hubspot.Contact, error)
	Create(ctx context.Context, a hubspot.NewContact) (id string, created bool)
}

// Researcher gathers web research on companies and people.
type Researcher interface {
	Gather(ctx context.Context, t research.Target) (*research.Dossier, error)
	AttendeeLinkedIn(ctx context.Context, name, company, title string) research.LinkedInMatch
	AttendeeBackground(ctx context.Context, name, company, title string) research.Background
}

// Generator produces documents from composed prompts.
type Generator interface {
	Generate(ctx context.Context, req reasoning.Request) (*reasoning.Result, error)
}

// UsageRecorder logs completed operations.
type UsageRecorder interface {
	Record(ctx context.Context, ev usage.Event) error
}

// Deps are the collaborators of a Service. Usage may be nil.
type Deps struct {
	Collector Collector
	CRM       CRM
	Research  Researcher
	Generator Generator
	Usage     UsageRecorder
}

// Config holds request defaults.
type Config struct {
	LookbackDays    int
	MaxMessages     int
	CollectTimeout  time.Duration
	ChannelPrefixes []string
	// Effort applies when a request does not set one.
	Effort  string
	Options reasoning.Options
}

// Result is a generated document plus a flat map of counters and
// echoed request fields.
type Result struct {
	Markdown string         `json:"markdown"`
	Meta     map[string]any `json:"meta"`
}

// Service runs the brief and report pipelines.
type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service.
func New(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 14
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 300
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With("component", "brief"),
		now:    time.Now,
	}
}

// Channels lists the chat channels a brief can be prepared from.
func (s *Service) Channels(ctx context.Context) ([]slack.Channel, error) {
	if err := s.requireChat(); err != nil {
		return nil, err
	}
	return s.deps.Collector.Channels(ctx, s.cfg.ChannelPrefixes...)
}

func (s *Service) record(ctx context.Context, ev usage.Event) {
	if s.deps.Usage == nil {
		return
	}
	ev.ClientIP = usage.ClientIP(ctx)
	// The caller may already be gone; the event still belongs in the log.
	if err := s.deps.Usage.Record(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("usage record failed", "event", ev.Type, "error", err)
	}
}

func (s *Service) effort(requested string) (string, error) {
	e := requested
	if e == "" {
		e = s.cfg.Effort
	}
	return parseEffort(e)
}

func generationMeta(meta map[string]any, res *reasoning.Result) {
	meta["model"] = res.Model
	meta["tool_turns"] = res.ToolTurns
	meta["critiqued"] = res.Critiqued
	meta["input_tokens"] = res.InputTokens
	meta["output_tokens"] = res.OutputTokens
}
