// Package fetch downloads web pages and reduces them to readable text
// for inclusion in research context.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mtgprep/mtgprep/internal/httpkit"
)

const (
	// DefaultTimeout bounds one page download.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBytes caps the downloaded body.
	DefaultMaxBytes int64 = 5 << 20

	// DefaultMaxChars caps extracted text, in runes.
	DefaultMaxChars = 5000

	// TruncatedSuffix marks text cut at the character limit.
	TruncatedSuffix = "...[truncated]"
)

// Page is the readable content of one URL.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
	StatusCode  int    `json:"status_code"`
}

// Fetcher downloads and extracts readable content from web pages.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// New creates a Fetcher. httpClient may be nil.
func New(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = httpkit.NewClient(httpkit.WithTimeout(DefaultTimeout))
	}
	return &Fetcher{client: httpClient, maxBytes: DefaultMaxBytes}
}

// NormalizeURL adds an https scheme to bare hosts.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// Fetch downloads rawURL and extracts its text, truncated to maxChars
// runes (0 means DefaultMaxChars) with TruncatedSuffix appended.
// Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxChars int) (*Page, error) {
	rawURL = NormalizeURL(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("fetch: url is required")
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid url: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpkit.DrainAndClose(resp.Body, 4096)
		return nil, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}

	page := &Page{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	switch {
	case isHTML(page.ContentType):
		page.Title, page.Content = extractHTML(string(body))
	case utf8.Valid(body):
		page.Content = cleanWhitespace(string(body))
	default:
		return nil, fmt.Errorf("fetch %s: binary content (%s)", rawURL, page.ContentType)
	}

	if cut, ok := truncateRunes(page.Content, maxChars); ok {
		page.Content = cut + TruncatedSuffix
		page.Truncated = true
	}
	return page, nil
}

func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// truncateRunes cuts s to at most n runes and reports whether it cut.
func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
