package reasoning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mtgprep/mtgprep/internal/apiclient"
	"github.com/mtgprep/mtgprep/internal/llm"
	"github.com/mtgprep/mtgprep/internal/prompts"
	"github.com/mtgprep/mtgprep/internal/tools"
)

// scriptedClient answers each Generate call with fn(call index, request).
type scriptedClient struct {
	reqs []llm.Request
	fn   func(n int, req llm.Request) (*llm.Response, error)
}

func (c *scriptedClient) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.reqs = append(c.reqs, req)
	return c.fn(len(c.reqs)-1, req)
}

func (c *scriptedClient) Ping(context.Context) error { return nil }

func text(s string) *llm.Response {
	return &llm.Response{ID: "resp", Output: llm.OutputText{Text: s}, InputTokens: 10, OutputTokens: 5}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProfile() prompts.Profile {
	return prompts.Profile{Name: "test", Instructions: "INSTRUCTIONS", DefaultUserPrompt: "DEFAULT PROMPT"}
}

func newGenerator(client llm.Client, registry *tools.Registry, cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = "o3"
	}
	return New(client, registry, cfg, quietLogger())
}

func TestGenerate_RequestShape(t *testing.T) {
	client := &scriptedClient{fn: func(int, llm.Request) (*llm.Response, error) {
		return text("# Brief"), nil
	}}
	g := newGenerator(client, nil, Config{MaxOutputTokens: 3000})

	res, err := g.Generate(context.Background(), Request{
		Profile: testProfile(),
		Context: "MEETING PURPOSE:\nrenewal",
		Effort:  "high",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := llm.Request{
		Model:           "o3",
		Instructions:    "INSTRUCTIONS",
		Messages:        []llm.Message{{Role: "user", Content: "DEFAULT PROMPT\n\nMEETING PURPOSE:\nrenewal"}},
		Effort:          "high",
		MaxOutputTokens: 3000,
	}
	if diff := cmp.Diff(want, client.reqs[0]); diff != "" {
		t.Errorf("request (-want +got):\n%s", diff)
	}
	if res.Markdown != "# Brief" || res.Draft != "# Brief" || res.Critiqued || res.Model != "o3" {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerate_UserPromptOverride(t *testing.T) {
	client := &scriptedClient{fn: func(int, llm.Request) (*llm.Response, error) { return text("ok"), nil }}
	g := newGenerator(client, nil, Config{})

	_, err := g.Generate(context.Background(), Request{Profile: testProfile(), UserPrompt: "Focus on pricing.", Context: "ctx"})
	if err != nil {
		t.Fatal(err)
	}
	if got := client.reqs[0].Messages[0].Content; got != "Focus on pricing.\n\nctx" {
		t.Errorf("user content = %q", got)
	}
}

func TestGenerate_DropsUnsupportedFeatures(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&tools.Tool{Name: "web_search", Handler: func(context.Context, map[string]any) (string, error) { return "", nil }})

	client := &scriptedClient{fn: func(_ int, req llm.Request) (*llm.Response, error) {
		switch {
		case len(req.Tools) > 0:
			return nil, &llm.UnsupportedError{Provider: "x", Feature: llm.FeatureTools}
		case req.Effort != "":
			return nil, &llm.UnsupportedError{Provider: "x", Feature: llm.FeatureEffort}
		}
		return text("ok"), nil
	}}
	g := newGenerator(client, registry, Config{})

	res, err := g.Generate(context.Background(), Request{
		Profile: testProfile(),
		Effort:  "high",
		Options: Options{Tools: true},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(client.reqs) != 3 {
		t.Errorf("calls = %d, want 3", len(client.reqs))
	}
	last := client.reqs[len(client.reqs)-1]
	if len(last.Tools) != 0 || last.Effort != "" {
		t.Errorf("final request kept refused features: %+v", last)
	}
	if res.Model != "o3" {
		t.Errorf("model = %q", res.Model)
	}
}

func TestGenerate_FallbackModel(t *testing.T) {
	client := &scriptedClient{fn: func(_ int, req llm.Request) (*llm.Response, error) {
		if req.Model == "o3" {
			return nil, &llm.UnsupportedError{Provider: "openai", Feature: llm.FeatureTools}
		}
		return text("from fallback"), nil
	}}
	g := newGenerator(client, nil, Config{FallbackModel: "gemini-2.5-flash"})

	res, err := g.Generate(context.Background(), Request{Profile: testProfile(), Effort: "high"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Model != "gemini-2.5-flash" || res.Markdown != "from fallback" {
		t.Errorf("result = %+v", res)
	}
	if last := client.reqs[len(client.reqs)-1]; last.Effort != "" {
		t.Errorf("fallback request should drop effort, got %q", last.Effort)
	}
}

func TestGenerate_UnsupportedWithoutFallback(t *testing.T) {
	client := &scriptedClient{fn: func(int, llm.Request) (*llm.Response, error) {
		return nil, &llm.UnsupportedError{Provider: "openai", Feature: llm.FeatureTools}
	}}
	g := newGenerator(client, nil, Config{})

	_, err := g.Generate(context.Background(), Request{Profile: testProfile()})
	var ue *llm.UnsupportedError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UnsupportedError", err)
	}
	if len(client.reqs) != 1 {
		t.Errorf("calls = %d, want 1", len(client.reqs))
	}
}

func TestGenerate_TransportErrorPropagates(t *testing.T) {
	remote := &apiclient.RemoteError{Service: "openai", Status: 401, Message: "bad key"}
	client := &scriptedClient{fn: func(int, llm.Request) (*llm.Response, error) { return nil, remote }}
	g := newGenerator(client, nil, Config{FallbackModel: "other"})

	_, err := g.Generate(context.Background(), Request{Profile: testProfile(), Options: Options{Critique: true}})
	if !errors.Is(err, remote) {
		t.Fatalf("err = %v, want the remote error", err)
	}
	if len(client.reqs) != 1 {
		t.Errorf("calls = %d, want 1 (no retry, no fallback)", len(client.reqs))
	}
}

func searchRegistry(out string, err error) *tools.Registry {
	r := tools.NewRegistry()
	r.Register(&tools.Tool{
		Name: "web_search",
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			return out + ":" + args["query"].(string), err
		},
	})
	return r
}

func toolCallResponse(id string) *llm.Response {
	return &llm.Response{
		ID:     id,
		Output: llm.ContentParts{},
		ToolCalls: []llm.ToolCall{{
			ID: "call_1", Name: "web_search", Arguments: map[string]any{"query": "acme"},
		}},
	}
}

func TestGenerate_ToolLoopContinuation(t *testing.T) {
	client := &scriptedClient{fn: func(n int, req llm.Request) (*llm.Response, error) {
		if n == 0 {
			return toolCallResponse("r1"), nil
		}
		return text("# With research"), nil
	}}
	g := newGenerator(client, searchRegistry("results", nil), Config{})

	res, err := g.Generate(context.Background(), Request{Profile: testProfile(), Options: Options{Tools: true}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ToolTurns != 1 || res.Markdown != "# With research" {
		t.Errorf("result = %+v", res)
	}

	second := client.reqs[1]
	if second.PreviousResponseID != "r1" {
		t.Errorf("PreviousResponseID = %q", second.PreviousResponseID)
	}
	want := []llm.ToolOutput{{CallID: "call_1", Output: "results:acme"}}
	if diff := cmp.Diff(want, second.ToolOutputs); diff != "" {
		t.Errorf("tool outputs (-want +got):\n%s", diff)
	}
}

func TestGenerate_ToolLoopReplay(t *testing.T) {
	client := &scriptedClient{fn: func(n int, req llm.Request) (*llm.Response, error) {
		switch {
		case req.PreviousResponseID != "":
			return nil, &llm.UnsupportedError{Provider: "anthropic", Feature: llm.FeatureContinuation}
		case n == 0:
			return toolCallResponse("msg_1"), nil
		}
		return text("done"), nil
	}}
	g := newGenerator(client, searchRegistry("", errors.New("provider down")), Config{})

	res, err := g.Generate(context.Background(), Request{Profile: testProfile(), Context: "ctx", Options: Options{Tools: true}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Markdown != "done" {
		t.Errorf("markdown = %q", res.Markdown)
	}

	replayed := client.reqs[len(client.reqs)-1].Messages
	if len(replayed) != 3 {
		t.Fatalf("replayed %d messages, want 3: %+v", len(replayed), replayed)
	}
	if replayed[1].Role != "assistant" || len(replayed[1].ToolCalls) != 1 {
		t.Errorf("assistant turn = %+v", replayed[1])
	}
	tool := replayed[2]
	if tool.Role != "tool" || tool.ToolCallID != "call_1" || !strings.HasPrefix(tool.Content, "error: ") {
		t.Errorf("tool turn = %+v", tool)
	}
}

func TestGenerate_MaxToolTurns(t *testing.T) {
	client := &scriptedClient{fn: func(n int, req llm.Request) (*llm.Response, error) {
		return toolCallResponse("r"), nil
	}}
	g := newGenerator(client, searchRegistry("x", nil), Config{MaxToolTurns: 2})

	_, err := g.Generate(context.Background(), Request{Profile: testProfile(), Options: Options{Tools: true}})
	if !errors.Is(err, ErrMaxToolTurns) {
		t.Fatalf("err = %v, want ErrMaxToolTurns", err)
	}
	if len(client.reqs) != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 turns)", len(client.reqs))
	}
}

func TestGenerate_Structured(t *testing.T) {
	client := &scriptedClient{fn: func(int, llm.Request) (*llm.Response, error) {
		return text(`{"tldr":["Renewal at risk"],"account_snapshot":"Acme, 200 seats"}`), nil
	}}
	g := newGenerator(client, nil, Config{})

	res, err := g.Generate(context.Background(), Request{Profile: testProfile(), Options: Options{Structured: true}})
	if err != nil {
		t.Fatal(err)
	}
	if client.reqs[0].Schema == nil || client.reqs[0].Schema.Name != prompts.BriefSchemaName {
		t.Errorf("schema not requested: %+v", client.reqs[0].Schema)
	}
	if !strings.HasPrefix(res.Markdown, "## TL;DR\n- Renewal at risk\n\n## Meeting Objectives\n(Unknown)") {
		t.Errorf("markdown = %q", res.Markdown)
	}
	if !strings.HasPrefix(res.Draft, "{") {
		t.Errorf("draft should keep the raw JSON, got %q", res.Draft)
	}
}

func TestGenerate_Critique(t *testing.T) {
	client := &scriptedClient{fn: func(n int, req llm.Request) (*llm.Response, error) {
		if n == 0 {
			return text("first draft"), nil
		}
		return text("improved draft"), nil
	}}
	g := newGenerator(client, nil, Config{})

	res, err := g.Generate(context.Background(), Request{Profile: testProfile(), Context: "SOURCE", Options: Options{Critique: true}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Critiqued || res.Markdown != "improved draft" || res.Draft != "first draft" {
		t.Errorf("result = %+v", res)
	}
	if res.InputTokens != 20 || res.OutputTokens != 10 {
		t.Errorf("usage should sum both calls, got %d/%d", res.InputTokens, res.OutputTokens)
	}

	critique := client.reqs[1]
	if critique.Instructions != prompts.Critique().Instructions {
		t.Error("critique pass should use the critique profile")
	}
	content := critique.Messages[0].Content
	if !strings.Contains(content, "first draft") || !strings.Contains(content, "SOURCE") {
		t.Errorf("critique input missing draft or source: %q", content)
	}
}

func TestGenerate_CritiqueFailureKeepsDraft(t *testing.T) {
	client := &scriptedClient{fn: func(n int, req llm.Request) (*llm.Response, error) {
		if n == 0 {
			return text("first draft"), nil
		}
		return nil, &apiclient.RemoteError{Service: "openai", Status: 500, Message: "overloaded"}
	}}
	g := newGenerator(client, nil, Config{})

	res, err := g.Generate(context.Background(), Request{Profile: testProfile(), Options: Options{Critique: true}})
	if err != nil {
		t.Fatalf("critique failure should not fail the request: %v", err)
	}
	if res.Critiqued || res.Markdown != "first draft" {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	client := &scriptedClient{fn: func(int, llm.Request) (*llm.Response, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}}
	g := newGenerator(client, nil, Config{Timeout: 10 * time.Millisecond})

	res, err := g.Generate(context.Background(), Request{Profile: testProfile()})
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if res != nil {
		t.Error("timeout must not return partial output")
	}
}

func TestGenerate_EmptyOutput(t *testing.T) {
	client := &scriptedClient{fn: func(int, llm.Request) (*llm.Response, error) {
		return &llm.Response{Output: llm.ContentParts{}}, nil
	}}
	_, err := newGenerator(client, nil, Config{}).Generate(context.Background(), Request{Profile: testProfile()})
	if !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("err = %v, want ErrEmptyOutput", err)
	}
}
