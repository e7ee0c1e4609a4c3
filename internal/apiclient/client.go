// Package apiclient performs authenticated JSON calls against a remote
// REST API with rate-limit handling. HTTP 429 responses are waited out
// and retried until the call succeeds or fails for another reason;
// every other failure surfaces as a *RemoteError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mtgprep/mtgprep/internal/httpkit"
)

// Defaults for a Client.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxWait  = 5 * time.Second
	DefaultWait     = 1 * time.Second
	errorBodyLimit  = 300
	maxResponseBody = 16 << 20
)

// RemoteError is a non-retryable failure reported by the remote service,
// either as an HTTP status or as an application-level error payload.
type RemoteError struct {
	Service string
	Status  int // 0 for application-level errors on a 2xx response
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s error: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s API error %d: %s", e.Service, e.Status, e.Message)
}

// IsRemote reports whether err is, or wraps, a *RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// Request describes one call.
type Request struct {
	Method   string // defaults to GET
	Endpoint string // path relative to the base URL, e.g. "conversations.history"
	Query    url.Values
	Body     any // JSON-encoded when non-nil
}

// Options configures a Client.
type Options struct {
	// Service names the remote in errors and logs.
	Service string
	BaseURL string
	Token   string
	// AuthHeader carries the token. Empty means "Authorization" with a
	// Bearer prefix; any other header gets the raw token.
	AuthHeader string
	// Check inspects a successful body for application-level failures.
	Check func(body []byte) error
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxWait caps the Retry-After wait on 429. Zero means DefaultMaxWait.
	MaxWait time.Duration
	// HTTPClient overrides the client built from httpkit.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls one remote API.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = httpkit.NewClient(
			httpkit.WithTimeout(opts.Timeout),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		)
	}

	return &Client{
		opts:       opts,
		httpClient: hc,
		logger:     logger.With("service", opts.Service),
		sleep:      sleepCtx,
	}
}

// Configured reports whether a token is set.
func (c *Client) Configured() bool {
	return c.opts.Token != ""
}

// Call performs req and decodes the JSON response into out (which may be
// nil). Rate-limited attempts are retried after the server-requested
// wait; there is no attempt limit, so callers bound the total time with
// ctx.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", req.Endpoint, err)
		}
	}

	for attempt := 1; ; attempt++ {
		body, retryAfter, err := c.do(ctx, req, payload)
		if err != nil {
			return err
		}
		if retryAfter < 0 {
			if c.opts.Check != nil {
				if err := c.opts.Check(body); err != nil {
					return &RemoteError{Service: c.opts.Service, Message: err.Error()}
				}
			}
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode %s response: %w", req.Endpoint, err)
			}
			return nil
		}

		c.logger.Debug("rate limited, waiting",
			"endpoint", req.Endpoint,
			"attempt", attempt,
			"wait", retryAfter,
		)
		if err := c.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

// do performs one attempt. A non-negative wait means the attempt was
// rate limited and should be repeated after that long.
func (c *Client) do(ctx context.Context, req Request, payload []byte) ([]byte, time.Duration, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.opts.BaseURL + "/" + strings.TrimLeft(req.Endpoint, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create %s request: %w", req.Endpoint, err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", c.opts.Service, req.Endpoint, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := RetryAfter(resp.Header.Get("Retry-After"), c.opts.MaxWait)
		httpkit.DrainAndClose(resp.Body, 4096)
		return nil, wait, nil
	}
	if resp.StatusCode >= 400 {
		msg := httpkit.ReadErrorBody(resp.Body, errorBodyLimit)
		return nil, 0, &RemoteError{Service: c.opts.Service, Status: resp.StatusCode, Message: msg}
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, 0, fmt.Errorf("read %s response: %w", req.Endpoint, err)
	}
	return data, -1, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.opts.Token == "" {
		return
	}
	if c.opts.AuthHeader == "" || strings.EqualFold(c.opts.AuthHeader, "Authorization") {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		return
	}
	req.Header.Set(c.opts.AuthHeader, c.opts.Token)
}

// RetryAfter converts a Retry-After header to a wait: integer seconds
// capped at max, or DefaultWait when the header is missing or not an
// integer.
func RetryAfter(header string, max time.Duration) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return min(DefaultWait, max)
	}
	return min(time.Duration(secs)*time.Second, max)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
