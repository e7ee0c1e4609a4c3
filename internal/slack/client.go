// Package slack reads channels, message history and user profiles from
// the Slack Web API.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mtgprep/mtgprep/internal/apiclient"
)

// Channel is a conversation the token can see.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsArchived bool   `json:"is_archived"`
}

// Message is one history or reply entry.
type Message struct {
	TS         string `json:"ts"`
	ThreadTS   string `json:"thread_ts,omitempty"`
	User       string `json:"user,omitempty"`
	BotID      string `json:"bot_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Text       string `json:"text"`
	ReplyCount int    `json:"reply_count,omitempty"`
}

// IsThreadRoot reports whether m starts a thread.
func (m Message) IsThreadRoot() bool {
	return m.ThreadTS != "" && m.ThreadTS == m.TS
}

// User is the subset of users.info the collector needs.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Profile  struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
	} `json:"profile"`
}

// Page is one page of a cursor-paginated listing.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

type metadata struct {
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// Client is a Slack Web API client.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a Slack client. httpClient may be nil.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		api: apiclient.New(apiclient.Options{
			Service:    "slack",
			BaseURL:    baseURL,
			Token:      token,
			Check:      checkOK,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
	}
}

// Configured reports whether a token is set.
func (c *Client) Configured() bool {
	return c.api.Configured()
}

// checkOK turns Slack's {"ok": false, "error": "..."} into an error.
func checkOK(body []byte) error {
	var env struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	if !env.OK {
		if env.Error == "" {
			env.Error = "unknown_error"
		}
		return errors.New(env.Error)
	}
	return nil
}

// Channels returns one page of non-archived public and private channels.
func (c *Client) Channels(ctx context.Context, cursor string) (Page[Channel], error) {
	q := url.Values{
		"types":            {"public_channel,private_channel"},
		"exclude_archived": {"true"},
		"limit":            {"1000"},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var out struct {
		metadata
		Channels []Channel `json:"channels"`
	}
	if err := c.api.Call(ctx, apiclient.Request{Endpoint: "conversations.list", Query: q}, &out); err != nil {
		return Page[Channel]{}, err
	}
	return Page[Channel]{Items: out.Channels, NextCursor: out.ResponseMetadata.NextCursor}, nil
}

// HistoryRequest selects one page of channel history.
type HistoryRequest struct {
	Channel string
	Oldest  string // seconds since epoch, inclusive
	Cursor  string
	Limit   int
}

// History returns one page of channel messages, newest first.
func (c *Client) History(ctx context.Context, req HistoryRequest) (Page[Message], error) {
	q := url.Values{
		"channel":   {req.Channel},
		"inclusive": {"true"},
		"limit":     {strconv.Itoa(req.Limit)},
	}
	if req.Oldest != "" {
		q.Set("oldest", req.Oldest)
	}
	if req.Cursor != "" {
		q.Set("cursor", req.Cursor)
	}

	var out struct {
		metadata
		Messages []Message `json:"messages"`
	}
	if err := c.api.Call(ctx, apiclient.Request{Endpoint: "conversations.history", Query: q}, &out); err != nil {
		return Page[Message]{}, err
	}
	return Page[Message]{Items: out.Messages, NextCursor: out.ResponseMetadata.NextCursor}, nil
}

// Replies returns a thread's messages; the first element is the root.
func (c *Client) Replies(ctx context.Context, channel, threadTS string, limit int) ([]Message, error) {
	q := url.Values{
		"channel": {channel},
		"ts":      {threadTS},
		"limit":   {strconv.Itoa(limit)},
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.api.Call(ctx, apiclient.Request{Endpoint: "conversations.replies", Query: q}, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// UserInfo looks up a user by id.
func (c *Client) UserInfo(ctx context.Context, id string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.api.Call(ctx, apiclient.Request{Endpoint: "users.info", Query: url.Values{"user": {id}}}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// DisplayName picks the best human label: profile display name, then
// real name, then the id.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.Profile.DisplayName != "":
		return u.Profile.DisplayName
	case u.Profile.RealName != "":
		return u.Profile.RealName
	case u.RealName != "":
		return u.RealName
	default:
		return u.ID
	}
}
