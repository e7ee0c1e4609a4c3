package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mtgprep/mtgprep/internal/fetch"
	"github.com/mtgprep/mtgprep/internal/search"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results map[string][]search.Result
	err     error
	off     bool
}

func (f *fakeSearcher) Configured() bool { return !f.off }

func (f *fakeSearcher) Search(_ context.Context, q string, _ search.Options) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[q], nil
}

type fakeScraper struct {
	page *fetch.Page
	err  error
}

func (f *fakeScraper) Fetch(context.Context, string, int) (*fetch.Page, error) {
	return f.page, f.err
}

func newAggregator(s Searcher, sc Scraper) *Aggregator {
	a := New(s, sc, nil)
	a.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return a
}

func TestCompany_Queries(t *testing.T) {
	s := &fakeSearcher{results: map[string][]search.Result{
		"Acme company overview business model": {
			{Title: "1"}, {Title: "2"}, {Title: "3"}, {Title: "4"}, {Title: "5"}, {Title: "6"},
		},
	}}
	got := newAggregator(s, nil).Company(context.Background(), "Acme", "Jo Smith")

	want := map[string]bool{
		"Acme company overview business model":                true,
		"Acme news 2025 announcements":                        true,
		"Jo Smith Acme CEO executive":                         true,
		"Acme revenue funding financial results":              true,
		"Acme website digital marketing ecommerce conversion": true,
	}
	if len(s.queries) != len(want) {
		t.Fatalf("queries = %v", s.queries)
	}
	for _, q := range s.queries {
		if !want[q] {
			t.Errorf("unexpected query %q", q)
		}
	}
	if len(got.Overview.Items) != 5 {
		t.Errorf("overview items = %d, want cap of 5", len(got.Overview.Items))
	}
	if got.News.Name != News || !got.News.Empty() {
		t.Errorf("news = %+v, want empty news bucket", got.News)
	}
}

func TestCompany_SearchUnavailable(t *testing.T) {
	for name, s := range map[string]Searcher{
		"nil":          nil,
		"unconfigured": &fakeSearcher{off: true},
	} {
		t.Run(name, func(t *testing.T) {
			a := newAggregator(s, nil)
			buckets := append(a.Company(context.Background(), "Acme", "").Buckets(),
				a.Competitive(context.Background(), "Acme", "retail"))
			for _, b := range buckets {
				if len(b.Items) != 1 || b.Items[0].Title != UnavailableTitle || !b.Placeholder {
					t.Errorf("bucket %s = %+v, want one unavailable item", b.Name, b)
				}
			}
		})
	}
}

func TestBucket_SearchFailure(t *testing.T) {
	s := &fakeSearcher{err: errors.New("502 bad gateway")}
	b := newAggregator(s, nil).Competitive(context.Background(), "Acme", "")
	if len(b.Items) != 1 || !strings.HasPrefix(b.Items[0].Title, "Search failed") {
		t.Fatalf("bucket = %+v", b)
	}
	if s.queries[0] != "Acme competitors market" {
		t.Errorf("query = %q", s.queries[0])
	}
}

func TestAttendeeLinkedIn(t *testing.T) {
	q := "Jane Doe Acme VP Marketing linkedin"
	tests := []struct {
		name     string
		results  []search.Result
		wantURL  string
		verified bool
	}{
		{
			name: "title match",
			results: []search.Result{
				{Title: "Jane Doe - Acme", URL: "https://www.linkedin.com/company/acme"},
				{Title: "Jane Doe - VP Marketing - Acme | LinkedIn", URL: "https://www.linkedin.com/in/janedoe"},
			},
			wantURL:  "https://www.linkedin.com/in/janedoe",
			verified: true,
		},
		{
			name: "snippet match",
			results: []search.Result{
				{Title: "Marketing leader | LinkedIn", Snippet: "jane doe leads growth at Acme", URL: "https://linkedin.com/in/jd"},
			},
			wantURL: "https://linkedin.com/in/jd",
		},
		{
			name: "different person",
			results: []search.Result{
				{Title: "Jane Smith | LinkedIn", URL: "https://linkedin.com/in/janesmith"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{results: map[string][]search.Result{q: tt.results}}
			got := newAggregator(s, nil).AttendeeLinkedIn(context.Background(), "Jane Doe", "Acme", "VP Marketing")
			if got.URL != tt.wantURL || got.Verified != tt.verified {
				t.Errorf("match = %+v", got)
			}
			if got.Found() && got.Confidence == ConfidenceNone {
				t.Error("found match should carry a confidence")
			}
		})
	}
}

func TestAttendeeBackground_FailureIsEmpty(t *testing.T) {
	s := &fakeSearcher{err: errors.New("timeout")}
	bg := newAggregator(s, nil).AttendeeBackground(context.Background(), "Jane Doe", "Acme", "")
	if len(bg.Info.Items) != 0 || len(bg.Highlights.Items) != 0 {
		t.Errorf("background = %+v, want empty buckets", bg)
	}
	if s.queries[0] != "Jane Doe Acme background experience" {
		t.Errorf("query = %q", s.queries[0])
	}
}

func TestScrape(t *testing.T) {
	ok := newAggregator(nil, &fakeScraper{page: &fetch.Page{URL: "https://acme.com", Title: "Acme", Content: "widgets"}})
	if p := ok.Scrape(context.Background(), "acme.com"); p.Error != "" || p.Content != "widgets" {
		t.Errorf("page = %+v", p)
	}

	bad := newAggregator(nil, &fakeScraper{err: errors.New("dns")})
	p := bad.Scrape(context.Background(), "acme.com")
	if p.Error == "" || p.Title != "Scrape failed" || p.URL != "https://acme.com" {
		t.Errorf("page = %+v", p)
	}
}

func TestGather(t *testing.T) {
	s := &fakeSearcher{}
	sc := &fakeScraper{page: &fetch.Page{URL: "https://acme.com", Content: "home"}}
	d, err := newAggregator(s, sc).Gather(context.Background(), Target{Company: "Acme", Industry: "retail", Website: "acme.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.queries) != 6 {
		t.Errorf("queries = %d, want 6", len(s.queries))
	}
	if d.Website == nil || d.Website.Content != "home" {
		t.Errorf("website = %+v", d.Website)
	}

	if _, err := newAggregator(s, sc).Gather(context.Background(), Target{}); err == nil {
		t.Error("expected error without company")
	}
}
