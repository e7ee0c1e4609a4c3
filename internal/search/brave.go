package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mtgprep/mtgprep/internal/apiclient"
)

// DefaultBraveURL is the Brave Search API root.
const DefaultBraveURL = "https://api.search.brave.com/res/v1"

// Brave implements the Provider interface for the Brave Search API.
// Rate limits are handled by the shared API client.
type Brave struct {
	api *apiclient.Client
}

// NewBrave creates a Brave Search provider. baseURL defaults to
// DefaultBraveURL; httpClient may be nil.
func NewBrave(apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger) *Brave {
	if baseURL == "" {
		baseURL = DefaultBraveURL
	}
	return &Brave{
		api: apiclient.New(apiclient.Options{
			Service:    "brave",
			BaseURL:    baseURL,
			Token:      apiKey,
			AuthHeader: "X-Subscription-Token",
			HTTPClient: httpClient,
			Logger:     logger,
		}),
	}
}

func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	params := url.Values{
		"q":     {query},
		"count": {strconv.Itoa(opts.count())},
	}
	if opts.Language != "" {
		params.Set("search_lang", opts.Language)
	}

	var br braveResponse
	if err := b.api.Call(ctx, apiclient.Request{Endpoint: "web/search", Query: params}, &br); err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}

	results := make([]Result, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
	}
	return results, nil
}
