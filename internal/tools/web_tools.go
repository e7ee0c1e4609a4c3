package tools

import (
	"github.com/mtgprep/mtgprep/internal/fetch"
	"github.com/mtgprep/mtgprep/internal/search"
)

// RegisterSearch adds the web_search tool. It is skipped when no search
// provider is configured.
func (r *Registry) RegisterSearch(mgr *search.Manager) {
	if !mgr.Configured() {
		return
	}
	r.Register(&Tool{
		Name:        "web_search",
		Description: "Search the web for recent news, company facts or a person's public profile. Returns titles, URLs and snippets.",
		Parameters:  search.ToolDefinition(),
		Handler:     search.ToolHandler(mgr),
	})
}

// RegisterFetch adds the scrape_url tool.
func (r *Registry) RegisterFetch(f *fetch.Fetcher) {
	if f == nil {
		return
	}
	r.Register(&Tool{
		Name:        "scrape_url",
		Description: "Fetch a web page and return its readable text, truncated. Use on company sites and articles found by web_search.",
		Parameters:  fetch.ToolDefinition(),
		Handler:     fetch.ToolHandler(f),
	})
}
