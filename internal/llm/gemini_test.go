package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"# Brief"},{"text":" more"}]}}],
			"usageMetadata":{"promptTokenCount":30,"candidatesTokenCount":7}
		}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), "key", srv.URL, srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Generate(context.Background(), Request{
		Model:        "gemini-2.5-flash",
		Instructions: "be terse",
		Messages:     []Message{{Role: "user", Content: "context"}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "# Brief more" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.InputTokens != 30 || resp.OutputTokens != 7 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestGeminiGenerate_Unsupported(t *testing.T) {
	c, err := NewGeminiClient(context.Background(), "key", "http://127.0.0.1:1", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		req  Request
		want string
	}{
		{Request{Tools: []Tool{{Name: "web_search"}}}, FeatureTools},
		{Request{Effort: "low"}, FeatureEffort},
		{Request{PreviousResponseID: "r"}, FeatureContinuation},
	} {
		_, err := c.Generate(context.Background(), tt.req)
		var ue *UnsupportedError
		if !errors.As(err, &ue) || ue.Feature != tt.want {
			t.Errorf("err = %v, want unsupported %s", err, tt.want)
		}
	}
}
