package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtgprep/mtgprep/internal/config"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	anthropicMaxTokens  = 4096
)

// AnthropicClient is a client for the Anthropic Messages API. It has no
// reasoning effort knob, no JSON schema mode and no server-side
// continuation; tool results are replayed as message history.
type AnthropicClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", "anthropic")
	return &AnthropicClient{
		apiKey:     apiKey,
		url:        anthropicAPIURL,
		logger:     logger,
		httpClient: newModelHTTPClient(logger),
	}
}

// Anthropic request/response types

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []anthropicContent
}

type anthropicContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"` // for tool_result
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Generate sends a non-streaming Messages API request.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Response, error) {
	switch {
	case req.Effort != "":
		return nil, &UnsupportedError{Provider: "anthropic", Feature: FeatureEffort}
	case req.Schema != nil:
		return nil, &UnsupportedError{Provider: "anthropic", Feature: FeatureSchema}
	case req.PreviousResponseID != "":
		return nil, &UnsupportedError{Provider: "anthropic", Feature: FeatureContinuation}
	}

	msgs, system := convertToAnthropic(req.Messages)
	if req.Instructions != "" {
		system = strings.TrimSpace(req.Instructions + "\n\n" + system)
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	body := anthropicRequest{
		Model:     req.Model,
		Messages:  msgs,
		System:    system,
		MaxTokens: maxTokens,
		Tools:     convertToolsToAnthropic(req.Tools),
	}

	c.logger.Debug("preparing request",
		"model", req.Model,
		"messages", len(msgs),
		"tools", len(body.Tools),
		"system_len", len(system),
	)

	var resp anthropicResponse
	err := postJSON(ctx, c.httpClient, c.logger, "anthropic", c.url, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}, body, &resp)
	if err != nil {
		return nil, err
	}

	result := convertFromAnthropic(&resp)
	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.ToolCalls),
	)
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", result.Text())
	return result, nil
}

// Ping checks that the API key is accepted with a one-token request.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	body := anthropicRequest{
		Model:     "claude-sonnet-4-20250514",
		Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}
	var resp anthropicResponse
	return postJSON(ctx, c.httpClient, c.logger, "anthropic", c.url, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}, body, &resp)
}

// convertToAnthropic converts messages to Anthropic format.
// Extracts system messages into a separate system prompt.
func convertToAnthropic(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	var result []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemParts = append(systemParts, msg.Content)

		case "assistant":
			if len(msg.ToolCalls) == 0 {
				result = append(result, anthropicMessage{Role: "assistant", Content: msg.Content})
				continue
			}
			var blocks []anthropicContent
			if msg.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
			}
			for i, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("toolu_%s_%d", tc.Name, i)
				}
				blocks = append(blocks, anthropicContent{Type: "tool_use", ID: id, Name: tc.Name, Input: args})
			}
			result = append(result, anthropicMessage{Role: "assistant", Content: blocks})

		case "tool":
			result = append(result, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		default:
			result = append(result, anthropicMessage{Role: "user", Content: msg.Content})
		}
	}

	return result, strings.Join(systemParts, "\n\n")
}

func convertToolsToAnthropic(tools []Tool) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		params := any(t.Parameters)
		if t.Parameters == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: params})
	}
	return result
}

// convertFromAnthropic maps content blocks to typed content parts and
// tool_use blocks to tool calls.
func convertFromAnthropic(resp *anthropicResponse) *Response {
	out := &Response{
		ID:           resp.ID,
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}

	var parts []ContentPart
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			parts = append(parts, ContentPart{Type: "text", Text: block.Text})
		case "tool_use":
			args, ok := block.Input.(map[string]any)
			if !ok {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	out.Output = ContentParts{Parts: parts}
	return out
}
