package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// OllamaClient is a client for a local Ollama server's chat API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", "ollama")
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newModelHTTPClient(logger),
		logger:     logger,
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Format   map[string]any  `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"` // Ollama returns object, not string
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

// Generate sends a non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	switch {
	case req.Effort != "":
		return nil, &UnsupportedError{Provider: "ollama", Feature: FeatureEffort}
	case req.PreviousResponseID != "":
		return nil, &UnsupportedError{Provider: "ollama", Feature: FeatureContinuation}
	}

	body := ollamaRequest{Model: req.Model}
	if req.Instructions != "" {
		body.Messages = append(body.Messages, ollamaMessage{Role: "system", Content: req.Instructions})
	}
	for _, m := range req.Messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var otc ollamaToolCall
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		body.Messages = append(body.Messages, om)
	}
	for _, t := range req.Tools {
		var ot ollamaTool
		ot.Type = "function"
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.Parameters
		body.Tools = append(body.Tools, ot)
	}
	if req.Schema != nil {
		body.Format = req.Schema.Schema
	}
	if req.MaxOutputTokens > 0 {
		body.Options = &ollamaOptions{NumPredict: req.MaxOutputTokens}
	}

	c.logger.Debug("preparing request", "model", req.Model, "messages", len(body.Messages), "tools", len(body.Tools))

	var resp ollamaResponse
	if err := postJSON(ctx, c.httpClient, c.logger, "ollama", c.baseURL+"/api/chat", nil, body, &resp); err != nil {
		return nil, err
	}
	return convertFromOllama(&resp), nil
}

func convertFromOllama(resp *ollamaResponse) *Response {
	msg := Message{Role: "assistant", Content: resp.Message.Content}
	for i, tc := range resp.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	// Many models emit tool calls as JSON text instead of tool_calls.
	if len(msg.ToolCalls) == 0 && msg.Content != "" {
		if parsed := parseTextToolCalls(msg.Content); len(parsed) > 0 {
			msg.ToolCalls = parsed
			msg.Content = ""
		}
	}

	return &Response{
		Model:        resp.Model,
		Output:       ChatCompletion{Choices: []Message{msg}},
		ToolCalls:    msg.ToolCalls,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}
}

// parseTextToolCalls attempts to extract tool calls from content text.
// Handles common formats:
// - Raw JSON object: {"name": "...", "arguments": {...}}
// - JSON array: [{"name": "...", "arguments": {...}}]
// - Tagged: <tool_call>...</tool_call>
func parseTextToolCalls(content string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if start := strings.Index(content, "<tool_call>"); start != -1 {
		rest := content[start+len("<tool_call>"):]
		if end := strings.Index(rest, "</tool_call>"); end != -1 {
			rest = rest[:end]
		}
		content = strings.TrimSpace(rest)
	}

	type textCall struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	var calls []textCall
	if err := json.Unmarshal([]byte(content), &calls); err != nil || len(calls) == 0 {
		var single textCall
		if err := json.Unmarshal([]byte(content), &single); err != nil || single.Name == "" {
			return nil
		}
		calls = []textCall{single}
	}

	result := make([]ToolCall, 0, len(calls))
	for i, c := range calls {
		if c.Name == "" {
			continue
		}
		result = append(result, ToolCall{ID: fmt.Sprintf("call_%d", i), Name: c.Name, Arguments: c.Arguments})
	}
	return result
}

// Ping checks if Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}
	return nil
}
