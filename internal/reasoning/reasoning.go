// Package reasoning invokes the model for one document: dispatch with
// feature fallback, an optional tool loop, text extraction, optional
// structured rendering and an optional critique pass, all under one
// deadline.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mtgprep/mtgprep/internal/llm"
	"github.com/mtgprep/mtgprep/internal/prompts"
	"github.com/mtgprep/mtgprep/internal/tools"
)

var (
	// ErrTimeout is returned when the whole operation outlives its
	// deadline. No partial output is returned with it.
	ErrTimeout = fmt.Errorf("reasoning timed out: %w", context.DeadlineExceeded)

	// ErrMaxToolTurns is returned when the model keeps requesting tools
	// past the configured number of turns.
	ErrMaxToolTurns = errors.New("tool loop exceeded maximum turns")

	// ErrEmptyOutput is returned when the model produced no text.
	ErrEmptyOutput = errors.New("model returned no text")
)

// Config holds the model settings for a Generator.
type Config struct {
	Model           string
	FallbackModel   string
	MaxOutputTokens int
	MaxToolTurns    int
	Timeout         time.Duration
}

// Options toggles the optional stages of one generation.
type Options struct {
	Structured bool // request JSON per prompts.BriefSchema and render it
	Critique   bool // run a refinement pass over the draft
	Tools      bool // offer the tool registry to the model
}

// Request is one document to generate.
type Request struct {
	Profile prompts.Profile
	// UserPrompt overrides Profile.DefaultUserPrompt when non-blank.
	UserPrompt string
	Context    string
	Effort     string
	Options    Options
}

// Result is the generated document and how it was produced.
type Result struct {
	Markdown     string
	Draft        string // first-pass text before critique
	Critiqued    bool
	ToolTurns    int
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator runs generations against one model client.
type Generator struct {
	client llm.Client
	tools  *tools.Registry
	cfg    Config
	logger *slog.Logger
}

// New creates a Generator. registry may be nil when tools are never
// offered.
func New(client llm.Client, registry *tools.Registry, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxToolTurns <= 0 {
		cfg.MaxToolTurns = 5
	}
	return &Generator{
		client: client,
		tools:  registry,
		cfg:    cfg,
		logger: logger.With("component", "reasoning"),
	}
}

// Generate produces one document. The configured timeout bounds the
// entire operation including the tool loop and critique.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := g.generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.logger.Error("generation timed out", "timeout", g.cfg.Timeout, "elapsed", time.Since(start))
			return nil, fmt.Errorf("%w after %s", ErrTimeout, g.cfg.Timeout)
		}
		return nil, err
	}

	g.logger.Info("generation complete",
		"model", res.Model,
		"tool_turns", res.ToolTurns,
		"critiqued", res.Critiqued,
		"input_tokens", res.InputTokens,
		"output_tokens", res.OutputTokens,
		"elapsed", time.Since(start),
	)
	return res, nil
}

func (g *Generator) generate(ctx context.Context, req Request) (*Result, error) {
	input := strings.TrimSpace(req.Profile.UserPrompt(req.UserPrompt)) + "\n\n" + req.Context

	lreq := llm.Request{
		Model:           g.cfg.Model,
		Instructions:    req.Profile.Instructions,
		Messages:        []llm.Message{{Role: "user", Content: input}},
		Effort:          req.Effort,
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}
	if req.Options.Structured {
		lreq.Schema = &llm.Schema{Name: prompts.BriefSchemaName, Schema: prompts.BriefSchema()}
	}
	if req.Options.Tools && g.tools.Len() > 0 {
		lreq.Tools = g.tools.Definitions()
	}

	res := &Result{}
	resp, lreq, err := g.dispatch(ctx, lreq)
	if err != nil {
		return nil, err
	}
	res.add(resp)

	resp, err = g.toolLoop(ctx, lreq, resp, res)
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyOutput
	}
	res.Model = lreq.Model
	res.Draft = text
	res.Markdown = text
	if lreq.Schema != nil {
		res.Markdown = RenderSections(text)
	}

	if req.Options.Critique {
		if err := g.critique(ctx, lreq, req, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Result) add(resp *llm.Response) {
	r.InputTokens += resp.InputTokens
	r.OutputTokens += resp.OutputTokens
}

// dispatch sends req, dropping features the provider refuses and
// redispatching. When nothing is left to drop it moves to the fallback
// model once. The request actually accepted is returned with the
// response. Errors other than unsupported features propagate unchanged.
func (g *Generator) dispatch(ctx context.Context, req llm.Request) (*llm.Response, llm.Request, error) {
	for {
		resp, err := g.client.Generate(ctx, req)
		if err == nil {
			return resp, req, nil
		}

		var ue *llm.UnsupportedError
		if !errors.As(err, &ue) || ue.Feature == llm.FeatureContinuation {
			return nil, req, err
		}

		if dropFeature(&req, ue.Feature) {
			g.logger.Warn("model feature unsupported, retrying without it",
				"model", req.Model, "feature", ue.Feature)
			continue
		}

		if g.cfg.FallbackModel == "" || req.Model == g.cfg.FallbackModel {
			return nil, req, err
		}
		g.logger.Warn("switching to fallback model", "model", req.Model, "fallback", g.cfg.FallbackModel, "feature", ue.Feature)
		req.Model = g.cfg.FallbackModel
		req.Tools = nil
		req.Effort = ""
	}
}

// dropFeature removes feature from req, reporting whether anything was
// removed.
func dropFeature(req *llm.Request, feature string) bool {
	switch feature {
	case llm.FeatureTools:
		if len(req.Tools) > 0 {
			req.Tools = nil
			return true
		}
	case llm.FeatureSchema:
		if req.Schema != nil {
			req.Schema = nil
			return true
		}
	case llm.FeatureEffort:
		if req.Effort != "" {
			req.Effort = ""
			return true
		}
	}
	return false
}
