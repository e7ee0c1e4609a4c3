// Package research gathers web intelligence on companies and people.
//
// Every query is a fixed template with a small result cap. Failures never
// reach the caller: an unconfigured or failing search becomes a single
// placeholder item so a report can still be written from partial research.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mtgprep/mtgprep/internal/fetch"
	"github.com/mtgprep/mtgprep/internal/search"
)

// Bucket names.
const (
	Overview           = "overview"
	News               = "news"
	Executive          = "executive"
	Financial          = "financial"
	Digital            = "digital"
	Competitive        = "competitive"
	AttendeeBackground = "attendee_background"
	CareerHighlights   = "career_highlights"
)

// UnavailableTitle marks the placeholder item used when no search
// provider is configured.
const UnavailableTitle = "Web search unavailable"

// maxConcurrent bounds simultaneous outbound searches per fan-out.
const maxConcurrent = 4

// Searcher runs web searches.
type Searcher interface {
	Configured() bool
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
}

// Scraper downloads readable page text.
type Scraper interface {
	Fetch(ctx context.Context, url string, maxChars int) (*fetch.Page, error)
}

// Item is one search hit.
type Item struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Bucket is the capped result set for one research facet.
type Bucket struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
	// Placeholder is true when Items holds a single unavailable/failed
	// marker instead of real results.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Empty reports whether the bucket has no real results.
func (b Bucket) Empty() bool {
	return len(b.Items) == 0 || b.Placeholder
}

// CompanyResearch is the five-facet company profile.
type CompanyResearch struct {
	Overview  Bucket `json:"overview"`
	News      Bucket `json:"news"`
	Executive Bucket `json:"executive"`
	Financial Bucket `json:"financial"`
	Digital   Bucket `json:"digital"`
}

// Buckets returns the facets in report order.
func (c CompanyResearch) Buckets() []Bucket {
	return []Bucket{c.Overview, c.News, c.Executive, c.Financial, c.Digital}
}

// Aggregator runs research queries.
type Aggregator struct {
	searcher Searcher
	scraper  Scraper
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Aggregator. searcher and scraper may be nil, in which
// case every bucket is a placeholder and scrapes report an error page.
func New(searcher Searcher, scraper Scraper, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		searcher: searcher,
		scraper:  scraper,
		logger:   logger.With("component", "research"),
		now:      time.Now,
	}
}

func (a *Aggregator) searchConfigured() bool {
	return a.searcher != nil && a.searcher.Configured()
}

// bucket runs one templated query. It never fails.
func (a *Aggregator) bucket(ctx context.Context, name, query string, limit int) Bucket {
	b := Bucket{Name: name}
	if !a.searchConfigured() {
		b.Items = []Item{{
			Title:   UnavailableTitle,
			Snippet: fmt.Sprintf("No search provider is configured; %s research was skipped.", name),
		}}
		b.Placeholder = true
		return b
	}

	results, err := a.searcher.Search(ctx, query, search.Options{Count: limit})
	if err != nil {
		a.logger.Warn("research search failed", "bucket", name, "query", query, "error", err)
		b.Items = []Item{{Title: "Search failed: " + name, Snippet: err.Error()}}
		b.Placeholder = true
		return b
	}

	for i, r := range results {
		if i == limit {
			break
		}
		b.Items = append(b.Items, Item{Title: r.Title, Snippet: r.Snippet, Link: r.URL})
	}
	return b
}

// quiet is bucket for facets where failure should read as "nothing found".
func (a *Aggregator) quiet(ctx context.Context, name, query string, limit int) Bucket {
	b := a.bucket(ctx, name, query, limit)
	if b.Placeholder {
		return Bucket{Name: name}
	}
	return b
}

// Company researches a company across five facets concurrently.
// executive, when given, focuses the leadership query on that person.
func (a *Aggregator) Company(ctx context.Context, name, executive string) CompanyResearch {
	name = strings.TrimSpace(name)
	execQuery := name + " leadership team executives"
	if executive = strings.TrimSpace(executive); executive != "" {
		execQuery = fmt.Sprintf("%s %s CEO executive", executive, name)
	}

	var out CompanyResearch
	jobs := []struct {
		dst   *Bucket
		name  string
		query string
		limit int
	}{
		{&out.Overview, Overview, name + " company overview business model", 5},
		{&out.News, News, fmt.Sprintf("%s news %d announcements", name, a.now().Year()), 5},
		{&out.Executive, Executive, execQuery, 3},
		{&out.Financial, Financial, name + " revenue funding financial results", 3},
		{&out.Digital, Digital, name + " website digital marketing ecommerce conversion", 3},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for _, j := range jobs {
		g.Go(func() error {
			*j.dst = a.bucket(gctx, j.name, j.query, j.limit)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Competitive researches the competitive landscape.
func (a *Aggregator) Competitive(ctx context.Context, name, industry string) Bucket {
	q := strings.TrimSpace(name) + " competitors"
	if industry = strings.TrimSpace(industry); industry != "" {
		q += " " + industry
	}
	return a.bucket(ctx, Competitive, q+" market", 5)
}

// Page is a scraped page. Error is set instead of returning an error.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Scrape reads a page as text capped at 5000 characters. Failures come
// back as a page with Error set.
func (a *Aggregator) Scrape(ctx context.Context, url string) Page {
	url = fetch.NormalizeURL(url)
	if a.scraper == nil {
		return Page{URL: url, Title: "Scrape failed", Error: "page fetching is not configured"}
	}
	p, err := a.scraper.Fetch(ctx, url, fetch.DefaultMaxChars)
	if err != nil {
		a.logger.Warn("scrape failed", "url", url, "error", err)
		return Page{URL: url, Title: "Scrape failed", Error: err.Error()}
	}
	return Page{URL: p.URL, Title: p.Title, Content: p.Content}
}

// Target describes a company to research for a report.
type Target struct {
	Company   string
	Executive string
	Industry  string
	Website   string
}

// Dossier is everything gathered about a target.
type Dossier struct {
	Company     CompanyResearch `json:"company"`
	Competitive Bucket          `json:"competitive"`
	Website     *Page           `json:"website,omitempty"`
}

// Gather runs company, competitive and website research side by side.
func (a *Aggregator) Gather(ctx context.Context, t Target) (*Dossier, error) {
	if strings.TrimSpace(t.Company) == "" {
		return nil, errors.New("research: company name is required")
	}

	d := &Dossier{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Company = a.Company(gctx, t.Company, t.Executive)
		return nil
	})
	g.Go(func() error {
		d.Competitive = a.Competitive(gctx, t.Company, t.Industry)
		return nil
	})
	if t.Website != "" {
		g.Go(func() error {
			p := a.Scrape(gctx, t.Website)
			d.Website = &p
			return nil
		})
	}
	_ = g.Wait()
	return d, ctx.Err()
}
