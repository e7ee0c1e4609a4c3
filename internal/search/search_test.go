package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockProvider struct {
	name    string
	results []Result
	err     error
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Search(_ context.Context, _ string, _ Options) ([]Result, error) {
	return m.results, m.err
}

func TestManager_PrimaryDefaultsToFirst(t *testing.T) {
	mgr := NewManager("")
	mgr.Register(&mockProvider{name: "a", results: []Result{{Title: "A"}}})
	mgr.Register(&mockProvider{name: "b", results: []Result{{Title: "B"}}})

	got, err := mgr.Search(context.Background(), "q", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Title != "A" {
		t.Errorf("got %q, want A", got[0].Title)
	}
	if p := mgr.Providers(); len(p) != 2 || p[0] != "a" {
		t.Errorf("Providers() = %v", p)
	}
}

func TestManager_CapsResults(t *testing.T) {
	mgr := NewManager("m")
	mgr.Register(&mockProvider{name: "m", results: make([]Result, 9)})

	got, _ := mgr.Search(context.Background(), "q", Options{Count: 3})
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestManager_Unconfigured(t *testing.T) {
	var mgr *Manager
	if _, err := mgr.Search(context.Background(), "q", Options{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("nil manager err = %v", err)
	}
	if _, err := NewManager("x").Search(context.Background(), "q", Options{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty manager err = %v", err)
	}
}

func TestBrave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "key" {
			t.Errorf("token header = %q", r.Header.Get("X-Subscription-Token"))
		}
		if r.URL.Path != "/web/search" || r.URL.Query().Get("count") != "3" {
			t.Errorf("url = %s", r.URL)
		}
		w.Write([]byte(`{"web":{"results":[{"title":"Acme","url":"https://acme.com","description":"Widgets"}]}}`))
	}))
	defer srv.Close()

	got, err := NewBrave("key", srv.URL, nil, nil).Search(context.Background(), "acme", Options{Count: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Snippet != "Widgets" {
		t.Errorf("results = %+v", got)
	}
}

func TestSearXNG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		w.Write([]byte(`{"results":[{"title":"1","url":"u1","content":"c"},{"title":"2","url":"u2"},{"title":"3","url":"u3"}]}`))
	}))
	defer srv.Close()

	got, err := NewSearXNG(srv.URL+"/").Search(context.Background(), "acme", Options{Count: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestToolHandler(t *testing.T) {
	mgr := NewManager("m")
	mgr.Register(&mockProvider{name: "m", results: []Result{{Title: "Acme", URL: "https://acme.com"}}})
	h := ToolHandler(mgr)

	out, err := h(context.Background(), map[string]any{"query": "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"title":"Acme"`) {
		t.Errorf("out = %s", out)
	}
	if _, err := h(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error for missing query")
	}
}

func TestFormatResults(t *testing.T) {
	got := FormatResults([]Result{{Title: "A", URL: "u", Snippet: "s"}, {Title: "B", URL: "v"}})
	want := "1. A\n   u\n   s\n\n2. B\n   v"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if FormatResults(nil) != "No results found." {
		t.Error("empty results")
	}
}
