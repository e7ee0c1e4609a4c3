// Package collector turns recent chat history for one channel into a
// plain-text transcript suitable for a model prompt.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mtgprep/mtgprep/internal/slack"
)

// EmptyPlaceholder is the transcript text when the window has no messages.
const EmptyPlaceholder = "(no recent Slack messages in window)"

const (
	historyPageSize = 200
	repliesLimit    = 100
)

// API is the subset of the chat client the collector uses.
type API interface {
	Channels(ctx context.Context, cursor string) (slack.Page[slack.Channel], error)
	History(ctx context.Context, req slack.HistoryRequest) (slack.Page[slack.Message], error)
	Replies(ctx context.Context, channel, threadTS string, limit int) ([]slack.Message, error)
	UserInfo(ctx context.Context, id string) (*slack.User, error)
}

// Config holds collector limits.
type Config struct {
	MaxPages     int // history pages per collection
	MaxThreads   int // most recent thread roots expanded
	NameCacheTTL time.Duration
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Options selects what one collection gathers.
type Options struct {
	ChannelID     string
	LookbackDays  int
	MaxMessages   int
	ResolveNames  bool
	ExpandThreads bool
}

// Line is one rendered transcript entry.
type Line struct {
	Timestamp time.Time
	Author    string
	Text      string
	Reply     bool
}

func (l Line) String() string {
	prefix := "• "
	if l.Reply {
		prefix = "    ◦ "
	}
	return fmt.Sprintf("%s[%s] %s: %s", prefix, l.Timestamp.UTC().Format(time.RFC3339), l.Author, l.Text)
}

// Transcript is the result of a collection.
type Transcript struct {
	Text         string
	LookbackDays int
	Lines        []Line
	// Messages counts raw messages fetched, including replies.
	Messages int
	Threads  int
}

// Collector gathers channel transcripts.
type Collector struct {
	api    API
	names  *NameCache
	cfg    Config
	logger *slog.Logger
}

// New creates a Collector. The name cache lives as long as the Collector.
func New(api API, cfg Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Collector{api: api, cfg: cfg, logger: logger.With("component", "collector")}
	c.names = NewNameCache(func(ctx context.Context, id string) (string, error) {
		u, err := api.UserInfo(ctx, id)
		if err != nil {
			return "", err
		}
		return u.DisplayName(), nil
	}, cfg.NameCacheTTL, cfg.Now)
	return c
}

// Names exposes the identity cache.
func (c *Collector) Names() *NameCache {
	return c.names
}

type message struct {
	slack.Message
	at      time.Time
	replies []message
}

// Collect fetches the channel's history inside the lookback window and
// renders it oldest first. History errors are returned; reply and name
// lookups are best-effort.
func (c *Collector) Collect(ctx context.Context, opts Options) (*Transcript, error) {
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("collect: channel id is required")
	}
	if opts.MaxMessages <= 0 {
		return nil, fmt.Errorf("collect: max messages must be positive")
	}
	if opts.LookbackDays < 0 {
		opts.LookbackDays = 0
	}

	// Whole seconds, matching the oldest= bound sent upstream.
	cutoff := time.Unix(c.cfg.Now().Add(-time.Duration(opts.LookbackDays)*24*time.Hour).Unix(), 0)

	msgs, err := c.history(ctx, opts.ChannelID, cutoff, opts.MaxMessages)
	if err != nil {
		return nil, err
	}
	t := &Transcript{LookbackDays: opts.LookbackDays, Messages: len(msgs)}

	if opts.ExpandThreads {
		t.Threads = c.expand(ctx, opts.ChannelID, msgs)
		for _, m := range msgs {
			t.Messages += len(m.replies)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].at.Before(msgs[j].at) })

	author := func(m message) string {
		id := m.User
		if id == "" {
			id = m.BotID
		}
		if id == "" {
			if m.Username != "" {
				return m.Username
			}
			return "unknown"
		}
		if !opts.ResolveNames {
			return id
		}
		name, err := c.names.Resolve(ctx, id)
		if err != nil {
			c.logger.Debug("name lookup failed", "user", id, "error", err)
			return id
		}
		return name
	}

	emit := func(m message, reply bool) bool {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			return true
		}
		t.Lines = append(t.Lines, Line{Timestamp: m.at, Author: author(m), Text: text, Reply: reply})
		return len(t.Lines) < opts.MaxMessages
	}

emission:
	for _, m := range msgs {
		if !emit(m, false) {
			break
		}
		for _, r := range m.replies {
			if !emit(r, true) {
				break emission
			}
		}
	}

	if len(t.Lines) == 0 {
		t.Text = EmptyPlaceholder
		return t, nil
	}
	rendered := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		rendered[i] = l.String()
	}
	t.Text = strings.Join(rendered, "\n")
	return t, nil
}

// history pages backwards from now to cutoff.
func (c *Collector) history(ctx context.Context, channel string, cutoff time.Time, max int) ([]message, error) {
	var out []message
	cursor := ""
	for page := 0; page < c.cfg.MaxPages; page++ {
		p, err := c.api.History(ctx, slack.HistoryRequest{
			Channel: channel,
			Oldest:  strconv.FormatInt(cutoff.Unix(), 10),
			Cursor:  cursor,
			Limit:   historyPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("channel history: %w", err)
		}
		for _, m := range p.Items {
			at, ok := ParseTS(m.TS)
			if !ok {
				continue
			}
			if at.Before(cutoff) {
				continue
			}
			out = append(out, message{Message: m, at: at})
		}
		c.logger.Debug("history page", "channel", channel, "page", page+1, "messages", len(p.Items))

		cursor = p.NextCursor
		if cursor == "" || len(out) >= max {
			break
		}
	}
	return out, nil
}

// expand attaches replies to the most recent thread roots and returns
// the number of threads expanded.
func (c *Collector) expand(ctx context.Context, channel string, msgs []message) int {
	var roots []int
	for i, m := range msgs {
		if m.IsThreadRoot() {
			roots = append(roots, i)
		}
	}
	sort.SliceStable(roots, func(a, b int) bool { return msgs[roots[a]].at.After(msgs[roots[b]].at) })
	if len(roots) > c.cfg.MaxThreads {
		roots = roots[:c.cfg.MaxThreads]
	}

	expanded := 0
	for _, i := range roots {
		replies, err := c.api.Replies(ctx, channel, msgs[i].TS, repliesLimit)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Warn("thread replies failed", "channel", channel, "thread", msgs[i].TS, "error", err)
			continue
		}
		for _, r := range replies {
			if r.TS == msgs[i].TS {
				continue
			}
			at, ok := ParseTS(r.TS)
			if !ok {
				continue
			}
			msgs[i].replies = append(msgs[i].replies, message{Message: r, at: at})
		}
		sort.SliceStable(msgs[i].replies, func(a, b int) bool {
			return msgs[i].replies[a].at.Before(msgs[i].replies[b].at)
		})
		expanded++
	}
	return expanded
}

// ParseTS converts a Slack "seconds.micros" timestamp to a time.
func ParseTS(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	secStr, fracStr, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var nsec int64
	if fracStr != "" {
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		for i := len(fracStr); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	return time.Unix(sec, nsec).UTC(), true
}
