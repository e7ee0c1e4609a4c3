package brief

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/mtgprep/mtgprep/internal/apiclient"
	"github.com/mtgprep/mtgprep/internal/collector"
	"github.com/mtgprep/mtgprep/internal/config"
	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/reasoning"
	"github.com/mtgprep/mtgprep/internal/research"
	"github.com/mtgprep/mtgprep/internal/slack"
	"github.com/mtgprep/mtgprep/internal/usage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCollector struct {
	unconfigured bool
	transcript   *collector.Transcript
	err          error
	channels     []slack.Channel

	gotOpts     collector.Options
	gotPrefixes []string
}

func (f *fakeCollector) Configured() bool { return !f.unconfigured }

func (f *fakeCollector) Collect(_ context.Context, opts collector.Options) (*collector.Transcript, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if f.transcript == nil {
		return &collector.Transcript{LookbackDays: opts.LookbackDays}, nil
	}
	return f.transcript, nil
}

func (f *fakeCollector) Channels(_ context.Context, prefixes ...string) ([]slack.Channel, error) {
	f.gotPrefixes = prefixes
	return f.channels, nil
}

type fakeCRM struct {
	unconfigured bool
	contacts     []hubspot.Contact
	fetchErr     error
	byName       map[string]*hubspot.Contact
	createID     string
	created      bool

	mu        sync.Mutex
	finds     []string
	gotEmails []string
	gotCreate hubspot.NewContact
}

func (f *fakeCRM) Configured() bool { return !f.unconfigured }

func (f *fakeCRM) Find(_ context.Context, name, _, company string) *hubspot.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds = append(f.finds, name+"@"+company)
	return f.byName[name]
}

func (f *fakeCRM) FetchByEmails(_ context.Context, emails []string) ([]hubspot.Contact, error) {
	f.gotEmails = emails
	return f.contacts, f.fetchErr
}

func (f *fakeCRM) Create(_ context.Context, a hubspot.NewContact) (string, bool) {
	f.gotCreate = a
	return f.createID, f.created
}

type fakeResearch struct {
	mu        sync.Mutex
	linkedIn  map[string]research.LinkedInMatch
	lookups   []string
	targets   []research.Target
	dossier   *research.Dossier
	gatherErr error
}

func (f *fakeResearch) Gather(_ context.Context, t research.Target) (*research.Dossier, error) {
	f.mu.Lock()
	f.targets = append(f.targets, t)
	f.mu.Unlock()
	if f.gatherErr != nil {
		return nil, f.gatherErr
	}
	if f.dossier != nil {
		return f.dossier, nil
	}
	return &research.Dossier{}, nil
}

func (f *fakeResearch) AttendeeLinkedIn(_ context.Context, name, company, _ string) research.LinkedInMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, name+"@"+company)
	return f.linkedIn[name]
}

func (f *fakeResearch) AttendeeBackground(_ context.Context, name, _, _ string) research.Background {
	return research.Background{Info: research.Bucket{
		Name:  research.AttendeeBackground,
		Items: []research.Item{{Title: name + " profile", Snippet: name + " leads sales"}},
	}}
}

type fakeGenerator struct {
	result *reasoning.Result
	err    error
	calls  []reasoning.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req reasoning.Request) (*reasoning.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &reasoning.Result{Markdown: "# Brief", Model: "gpt-5", InputTokens: 120, OutputTokens: 40}, nil
}

type fakeUsage struct {
	mu     sync.Mutex
	events []usage.Event
}

func (f *fakeUsage) Record(_ context.Context, ev usage.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fixture struct {
	collector *fakeCollector
	crm       *fakeCRM
	research  *fakeResearch
	gen       *fakeGenerator
	usage     *fakeUsage
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		collector: &fakeCollector{},
		crm:       &fakeCRM{},
		research:  &fakeResearch{},
		gen:       &fakeGenerator{},
		usage:     &fakeUsage{},
	}
	f.svc = New(Deps{
		Collector: f.collector,
		CRM:       f.crm,
		Research:  f.research,
		Generator: f.gen,
		Usage:     f.usage,
	}, Config{
		Effort:          "high",
		ChannelPrefixes: []string{"bd-", "internal-"},
		Options:         reasoning.Options{Structured: true},
	}, nil)
	return f
}

func TestChannels(t *testing.T) {
	f := newFixture(t)
	f.collector.channels = []slack.Channel{{ID: "C1", Name: "bd-acme"}}

	got, err := f.svc.Channels(context.Background())
	if err != nil {
		t.Fatalf("Channels() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "C1" {
		t.Errorf("Channels() = %+v", got)
	}
	if strings.Join(f.collector.gotPrefixes, ",") != "bd-,internal-" {
		t.Errorf("prefixes = %v", f.collector.gotPrefixes)
	}
}

func TestPrepareConversationBrief(t *testing.T) {
	f := newFixture(t)
	f.collector.transcript = &collector.Transcript{
		Text:  "• [2025-06-01T10:00:00Z] Jane: renewal slipping",
		Lines: make([]collector.Line, 3),
	}
	f.crm.contacts = []hubspot.Contact{{
		ID: "1", FirstName: "Dana", LastName: "Lee", Email: "dana@acme.com",
		Title: "VP Ops", Company: "Acme", LifecycleStage: "customer",
	}}

	ctx := usage.WithClientIP(context.Background(), "192.0.2.1")
	res, err := f.svc.PrepareConversationBrief(ctx, ConversationRequest{
		ChannelID:      " C123 ",
		ResolveNames:   true,
		AttendeeEmails: []string{"dana@acme.com"},
		Purpose:        "Q3 renewal",
	})
	if err != nil {
		t.Fatalf("PrepareConversationBrief() error: %v", err)
	}
	if res.Markdown != "# Brief" {
		t.Errorf("Markdown = %q", res.Markdown)
	}

	opts := f.collector.gotOpts
	if opts.ChannelID != "C123" || opts.LookbackDays != 14 || opts.MaxMessages != 300 || !opts.ResolveNames {
		t.Errorf("collector options = %+v", opts)
	}

	if len(f.gen.calls) != 1 {
		t.Fatalf("generator calls = %d, want 1", len(f.gen.calls))
	}
	call := f.gen.calls[0]
	if call.Profile.Name != "executive_brief" {
		t.Errorf("profile = %q", call.Profile.Name)
	}
	if call.Effort != "high" {
		t.Errorf("effort = %q, want high", call.Effort)
	}
	if !call.Options.Structured {
		t.Error("configured options not passed through")
	}
	for _, want := range []string{"MEETING PURPOSE:\nQ3 renewal", "Dana Lee", "lifecycle: customer", "renewal slipping", "last 14 days"} {
		if !strings.Contains(call.Context, want) {
			t.Errorf("context missing %q:\n%s", want, call.Context)
		}
	}

	for key, want := range map[string]any{
		"channel_id":        "C123",
		"lookback_days":     14,
		"messages_limit":    300,
		"messages_included": 3,
		"attendees_found":   1,
		"effort":            "high",
		"model":             "gpt-5",
	} {
		if got := res.Meta[key]; got != want {
			t.Errorf("Meta[%q] = %v, want %v", key, got, want)
		}
	}

	if len(f.usage.events) != 1 {
		t.Fatalf("usage events = %d, want 1", len(f.usage.events))
	}
	ev := f.usage.events[0]
	if ev.Type != usage.EventConversationBrief || ev.ClientIP != "192.0.2.1" || ev.InputTokens != 120 {
		t.Errorf("usage event = %+v", ev)
	}
}

func TestPrepareConversationBrief_CRMFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.crm.fetchErr = &apiclient.RemoteError{Service: "hubspot", Status: 500, Message: "boom"}

	res, err := f.svc.PrepareConversationBrief(context.Background(), ConversationRequest{
		ChannelID:      "C1",
		AttendeeEmails: []string{"x@y.com"},
	})
	if err != nil {
		t.Fatalf("PrepareConversationBrief() error: %v", err)
	}
	if res.Meta["attendees_found"] != 0 {
		t.Errorf("attendees_found = %v, want 0", res.Meta["attendees_found"])
	}
	if !strings.Contains(f.gen.calls[0].Context, "(no HubSpot context)") {
		t.Errorf("context should note missing CRM data:\n%s", f.gen.calls[0].Context)
	}
}

func TestPrepareConversationBrief_SkipsUnconfiguredCRM(t *testing.T) {
	f := newFixture(t)
	f.crm.unconfigured = true

	if _, err := f.svc.PrepareConversationBrief(context.Background(), ConversationRequest{
		ChannelID:      "C1",
		AttendeeEmails: []string{"x@y.com"},
	}); err != nil {
		t.Fatalf("PrepareConversationBrief() error: %v", err)
	}
	if f.crm.gotEmails != nil {
		t.Error("unconfigured CRM should not be queried")
	}
}

func TestPrepareConversationBrief_Errors(t *testing.T) {
	remote := &apiclient.RemoteError{Service: "slack", Message: "channel_not_found"}

	tests := []struct {
		name    string
		setup   func(*fixture)
		req     ConversationRequest
		wantErr error
	}{
		{
			name:    "missing channel",
			req:     ConversationRequest{ChannelID: "  "},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "negative lookback",
			req:     ConversationRequest{ChannelID: "C1", LookbackDays: -1},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "bad effort",
			req:     ConversationRequest{ChannelID: "C1", Effort: "maximum"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "chat not configured",
			setup:   func(f *fixture) { f.collector.unconfigured = true },
			req:     ConversationRequest{ChannelID: "C1"},
			wantErr: config.ErrNotConfigured,
		},
		{
			name:    "history failure",
			setup:   func(f *fixture) { f.collector.err = remote },
			req:     ConversationRequest{ChannelID: "C1"},
			wantErr: remote,
		},
		{
			name:    "generation timeout",
			setup:   func(f *fixture) { f.gen.err = reasoning.ErrTimeout },
			req:     ConversationRequest{ChannelID: "C1"},
			wantErr: reasoning.ErrTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.svc.PrepareConversationBrief(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(f.usage.events) != 0 {
				t.Errorf("failed request logged %d usage events", len(f.usage.events))
			}
		})
	}
}

func TestPrepareConversationBrief_InstructionOverride(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.PrepareConversationBrief(context.Background(), ConversationRequest{
		ChannelID:   "C1",
		Instruction: "Focus on pricing.",
		Effort:      "LOW",
	}); err != nil {
		t.Fatalf("PrepareConversationBrief() error: %v", err)
	}
	call := f.gen.calls[0]
	if call.Profile.DefaultUserPrompt != "Focus on pricing." {
		t.Errorf("user prompt = %q", call.Profile.DefaultUserPrompt)
	}
	if call.Effort != "low" {
		t.Errorf("effort = %q, want low", call.Effort)
	}
}
