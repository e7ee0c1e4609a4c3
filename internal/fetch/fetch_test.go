package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractHTML(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title> Acme Widgets </title><style>.x{}</style></head>
<body>
<nav>Home About</nav>
<script>var tracking = 1;</script>
<main>
<h1>We make widgets</h1>
<p>Founded in   1999 with <strong>bold</strong> ideas.</p>
</main>
<noscript>enable js</noscript>
</body>
</html>`

	title, text := extractHTML(page)
	if title != "Acme Widgets" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{"We make widgets", "Founded in 1999 with bold ideas."} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	for _, bad := range []string{"tracking", ".x{}", "enable js"} {
		if strings.Contains(text, bad) {
			t.Errorf("text should not contain %q", bad)
		}
	}
}

func TestFetch_Truncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>" + strings.Repeat("é", 6000) + "</p></body></html>"))
	}))
	defer srv.Close()

	page, err := New(nil).Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !page.Truncated || !strings.HasSuffix(page.Content, TruncatedSuffix) {
		t.Fatalf("expected truncation, got %d runes", utf8.RuneCountInString(page.Content))
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(page.Content, TruncatedSuffix)); n != DefaultMaxChars {
		t.Errorf("runes = %d, want %d", n, DefaultMaxChars)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New(nil).Fetch(context.Background(), srv.URL, 0); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetch_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("line one\n\n\nline   two"))
	}))
	defer srv.Close()

	page, err := New(nil).Fetch(context.Background(), srv.URL, 100)
	if err != nil {
		t.Fatal(err)
	}
	if page.Content != "line one\nline two" || page.Truncated {
		t.Errorf("page = %+v", page)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"acme.com":          "https://acme.com",
		" http://acme.com ": "http://acme.com",
		"":                  "",
	}
	for in, want := range tests {
		if got := NormalizeURL(in); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToolHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>About</title><p>Hello</p>"))
	}))
	defer srv.Close()

	out, err := ToolHandler(New(nil))(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"title":"About"`) {
		t.Errorf("out = %s", out)
	}
	if _, err := ToolHandler(New(nil))(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error for missing url")
	}
}
