package reasoning

import (
	"context"

	"github.com/mtgprep/mtgprep/internal/llm"
	"github.com/mtgprep/mtgprep/internal/prompts"
)

// critique asks the model to revise the draft against the source
// context. A failed pass leaves res untouched; only expiry of the
// overall deadline is returned as an error.
func (g *Generator) critique(ctx context.Context, draftReq llm.Request, req Request, res *Result) error {
	profile := prompts.Critique()
	creq := llm.Request{
		Model:        draftReq.Model,
		Instructions: profile.Instructions,
		Messages: []llm.Message{{
			Role:    "user",
			Content: profile.DefaultUserPrompt + "\n\n" + prompts.CritiqueInput(res.Draft, req.Context),
		}},
		Effort:          draftReq.Effort,
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}

	resp, _, err := g.dispatch(ctx, creq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		g.logger.Warn("critique pass failed, keeping first draft", "error", err)
		return nil
	}

	text := resp.Text()
	if text == "" {
		g.logger.Warn("critique pass returned no text, keeping first draft")
		return nil
	}
	res.add(resp)
	res.Markdown = text
	res.Critiqued = true
	return nil
}
