package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtgprep/mtgprep/internal/apiclient"
	"github.com/mtgprep/mtgprep/internal/config"
	"github.com/mtgprep/mtgprep/internal/httpkit"
)

const errorBodyLimit = 4096

// newModelHTTPClient returns a client for model APIs. Reasoning models
// can think for minutes before sending headers, so there is no client
// timeout; the caller's context bounds each call.
func newModelHTTPClient(logger *slog.Logger) *http.Client {
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 10 * time.Minute
	return httpkit.NewClient(
		httpkit.WithTimeout(0),
		httpkit.WithTransport(t),
		httpkit.WithRetry(2, time.Second),
		httpkit.WithLogger(logger),
	)
}

// postJSON sends body to url and decodes a 200 response into out.
// Any other status becomes a *apiclient.RemoteError carrying the
// (truncated) error body.
func postJSON(ctx context.Context, hc *http.Client, logger *slog.Logger, service, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	logger.Log(ctx, config.LevelTrace, "request payload", "json", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, errorBodyLimit)
		logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return &apiclient.RemoteError{Service: service, Status: resp.StatusCode, Message: errBody}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}
