package reasoning

import (
	"context"
	"errors"

	"github.com/mtgprep/mtgprep/internal/llm"
)

// toolLoop executes tool calls until the model answers without any.
// Results go back by response id where the provider keeps state, and by
// replaying the conversation otherwise. Tool failures are reported to
// the model as text.
func (g *Generator) toolLoop(ctx context.Context, req llm.Request, resp *llm.Response, res *Result) (*llm.Response, error) {
	history := append([]llm.Message(nil), req.Messages...)
	replay := false

	for len(resp.ToolCalls) > 0 {
		if res.ToolTurns >= g.cfg.MaxToolTurns {
			g.logger.Warn("tool loop cap reached", "turns", res.ToolTurns, "pending_calls", len(resp.ToolCalls))
			return nil, ErrMaxToolTurns
		}
		res.ToolTurns++

		outputs := g.runTools(ctx, resp.ToolCalls)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history = append(history, llm.Message{Role: "assistant", Content: resp.Text(), ToolCalls: resp.ToolCalls})
		for _, o := range outputs {
			history = append(history, llm.Message{Role: "tool", ToolCallID: o.CallID, Content: o.Output})
		}

		var err error
		if !replay && resp.ID != "" {
			next := req
			next.PreviousResponseID = resp.ID
			next.ToolOutputs = outputs
			resp, err = g.client.Generate(ctx, next)
			var ue *llm.UnsupportedError
			if errors.As(err, &ue) && ue.Feature == llm.FeatureContinuation {
				replay = true
			} else if err != nil {
				return nil, err
			} else {
				res.add(resp)
				continue
			}
		}

		next := req
		next.Messages = history
		resp, next, err = g.dispatch(ctx, next)
		if err != nil {
			return nil, err
		}
		req = next
		res.add(resp)
	}
	return resp, nil
}

func (g *Generator) runTools(ctx context.Context, calls []llm.ToolCall) []llm.ToolOutput {
	outputs := make([]llm.ToolOutput, 0, len(calls))
	for _, call := range calls {
		out, err := g.tools.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			g.logger.Warn("tool call failed", "tool", call.Name, "error", err)
			out = "error: " + err.Error()
		} else {
			g.logger.Debug("tool call complete", "tool", call.Name, "result_len", len(out))
		}
		outputs = append(outputs, llm.ToolOutput{CallID: call.ID, Output: out})
	}
	return outputs
}
