// Package usage keeps an append-only log of service events: briefs and
// reports generated, attendees researched, contacts added. Records are
// indexed by timestamp and event type for listing and aggregation.
package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Event types.
const (
	EventConversationBrief  = "conversation_brief"
	EventAttendeeResearch   = "attendee_research"
	EventIntelligenceReport = "intelligence_report"
	EventCRMAdd             = "hubspot_add"
)

// Event is one logged operation.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Type         string         `json:"event_type"`
	ClientIP     string         `json:"client_ip,omitempty"`
	Model        string         `json:"model,omitempty"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	Data         map[string]any `json:"data,omitempty"`
}

// tsLayout is fixed-width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Summary holds aggregated event counts and token totals.
type Summary struct {
	TotalEvents       int   `json:"total_events"`
	TotalInputTokens  int64 `json:"total_input_tokens"`
	TotalOutputTokens int64 `json:"total_output_tokens"`
}

// Store is an append-only SQLite event log. All public methods are safe
// for concurrent use (SQLite serializes writes).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens the event log at dbPath, creating the schema on first
// use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_events (
		id            TEXT PRIMARY KEY,
		timestamp     TEXT NOT NULL,
		event_type    TEXT NOT NULL,
		client_ip     TEXT,
		model         TEXT,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		data          TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_type ON usage_events(event_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists ev. An empty ID gets a UUIDv7 and a zero Timestamp
// gets the current time. The context is used for cancellation only.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if ev.Type == "" {
		return errors.New("usage event type is required")
	}
	if ev.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage event ID: %w", err)
		}
		ev.ID = id.String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}

	var data []byte
	if len(ev.Data) > 0 {
		var err error
		if data, err = json.Marshal(ev.Data); err != nil {
			return fmt.Errorf("encode usage event data: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events
			(id, timestamp, event_type, client_ip, model, input_tokens, output_tokens, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Timestamp.UTC().Format(tsLayout),
		ev.Type,
		ev.ClientIP,
		ev.Model,
		ev.InputTokens,
		ev.OutputTokens,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. A non-empty
// eventType restricts the listing to that type.
func (s *Store) Recent(ctx context.Context, eventType string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, event_type, COALESCE(client_ip, ''), COALESCE(model, ''),
			input_tokens, output_tokens, COALESCE(data, '')
		 FROM usage_events
		 WHERE ? = '' OR event_type = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		eventType, eventType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev       Event
			ts, data string
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.Type, &ev.ClientIP, &ev.Model,
			&ev.InputTokens, &ev.OutputTokens, &data); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		if ev.Timestamp, err = time.Parse(tsLayout, ts); err != nil {
			return nil, fmt.Errorf("parse usage event %s timestamp: %w", ev.ID, err)
		}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
				return nil, fmt.Errorf("decode usage event %s data: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Summary returns aggregated totals for events within [start, end).
func (s *Store) Summary(start, end time.Time) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM usage_events
		 WHERE timestamp >= ? AND timestamp < ?`,
		start.UTC().Format(tsLayout),
		end.UTC().Format(tsLayout),
	)

	var sum Summary
	if err := row.Scan(&sum.TotalEvents, &sum.TotalInputTokens, &sum.TotalOutputTokens); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// SummaryByType returns per-event-type totals for events within [start, end).
func (s *Store) SummaryByType(start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy("event_type", start, end)
}

// SummaryByModel returns per-model totals for events within [start, end).
// Events that made no model call are grouped under the key "".
func (s *Store) SummaryByModel(start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy("model", start, end)
}

func (s *Store) summaryGroupedBy(column string, start, end time.Time) (map[string]*Summary, error) {
	// column is always a constant from our own methods, never user input.
	query := fmt.Sprintf(
		`SELECT COALESCE(%s, ''), COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM usage_events
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY %s
		 ORDER BY COUNT(*) DESC`,
		column, column,
	)

	rows, err := s.db.Query(query,
		start.UTC().Format(tsLayout),
		end.UTC().Format(tsLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var key string
		var sum Summary
		if err := rows.Scan(&key, &sum.TotalEvents, &sum.TotalInputTokens, &sum.TotalOutputTokens); err != nil {
			return nil, fmt.Errorf("scan usage by %s: %w", column, err)
		}
		result[key] = &sum
	}
	return result, rows.Err()
}

// Report is the usage for one period: overall totals plus breakdowns
// by event type and by model.
type Report struct {
	Start   time.Time           `json:"start"`
	End     time.Time           `json:"end"`
	Totals  *Summary            `json:"totals"`
	ByType  map[string]*Summary `json:"by_event_type"`
	ByModel map[string]*Summary `json:"by_model"`
}

// Report aggregates events within [start, end).
func (s *Store) Report(start, end time.Time) (*Report, error) {
	totals, err := s.Summary(start, end)
	if err != nil {
		return nil, err
	}
	byType, err := s.SummaryByType(start, end)
	if err != nil {
		return nil, err
	}
	byModel, err := s.SummaryByModel(start, end)
	if err != nil {
		return nil, err
	}
	return &Report{
		Start:   start.UTC(),
		End:     end.UTC(),
		Totals:  totals,
		ByType:  byType,
		ByModel: byModel,
	}, nil
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for event records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address set by WithClientIP, or "".
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
