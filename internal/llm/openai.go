package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtgprep/mtgprep/internal/apiclient"
	"github.com/mtgprep/mtgprep/internal/config"
)

// DefaultOpenAIURL is the OpenAI API base.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIClient is a client for the OpenAI Responses API. Responses are
// stored server-side, so tool results continue a response by id
// instead of replaying the conversation.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL uses
// DefaultOpenAIURL.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	logger = logger.With("provider", "openai")
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newModelHTTPClient(logger),
		logger:     logger,
	}
}

// OpenAI request/response types

type openaiRequest struct {
	Model              string           `json:"model"`
	Input              []openaiInput    `json:"input"`
	Reasoning          *openaiReasoning `json:"reasoning,omitempty"`
	MaxOutputTokens    int              `json:"max_output_tokens,omitempty"`
	Text               *openaiText      `json:"text,omitempty"`
	Tools              []openaiTool     `json:"tools,omitempty"`
	PreviousResponseID string           `json:"previous_response_id,omitempty"`
}

type openaiInput struct {
	Type      string `json:"type,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

type openaiReasoning struct {
	Effort string `json:"effort"`
}

type openaiText struct {
	Format openaiFormat `json:"format"`
}

type openaiFormat struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type openaiTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type openaiResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Status     string             `json:"status"`
	OutputText string             `json:"output_text"`
	Output     []openaiOutputItem `json:"output"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type openaiOutputItem struct {
	Type    string `json:"type"` // message, function_call, reasoning
	Role    string `json:"role,omitempty"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type openaiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Param   string `json:"param"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate sends one Responses API request.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, config.MissingError("openai.api_key")
	}
	body := openaiRequest{
		Model:              req.Model,
		MaxOutputTokens:    req.MaxOutputTokens,
		PreviousResponseID: req.PreviousResponseID,
	}
	if req.Effort != "" {
		body.Reasoning = &openaiReasoning{Effort: req.Effort}
	}
	if req.Schema != nil {
		body.Text = &openaiText{Format: openaiFormat{
			Type:   "json_schema",
			Name:   req.Schema.Name,
			Schema: req.Schema.Schema,
			Strict: true,
		}}
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, openaiTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}

	if req.PreviousResponseID != "" {
		for _, o := range req.ToolOutputs {
			body.Input = append(body.Input, openaiInput{Type: "function_call_output", CallID: o.CallID, Output: o.Output})
		}
	} else {
		body.Input = convertToOpenAI(req.Instructions, req.Messages)
	}

	c.logger.Debug("preparing request",
		"model", req.Model,
		"input_items", len(body.Input),
		"tools", len(body.Tools),
		"effort", req.Effort,
		"continuation", req.PreviousResponseID != "",
	)

	var resp openaiResponse
	err := postJSON(ctx, c.httpClient, c.logger, "openai", c.baseURL+"/responses",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, body, &resp)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	return convertFromOpenAI(&resp), nil
}

// convertToOpenAI maps instructions and messages to Responses API input
// items. Instructions carry the developer role.
func convertToOpenAI(instructions string, messages []Message) []openaiInput {
	var items []openaiInput
	if instructions != "" {
		items = append(items, openaiInput{Role: "developer", Content: instructions})
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			items = append(items, openaiInput{Role: "developer", Content: m.Content})
		case "assistant":
			if m.Content != "" {
				items = append(items, openaiInput{Role: "assistant", Content: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				items = append(items, openaiInput{Type: "function_call", CallID: tc.ID, Name: tc.Name, Arguments: string(args)})
			}
		case "tool":
			items = append(items, openaiInput{Type: "function_call_output", CallID: m.ToolCallID, Output: m.Content})
		default:
			items = append(items, openaiInput{Role: "user", Content: m.Content})
		}
	}
	return items
}

// convertFromOpenAI resolves the response shape: the convenience
// output_text field when present, otherwise the message content parts.
func convertFromOpenAI(resp *openaiResponse) *Response {
	out := &Response{
		ID:           resp.ID,
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}

	var parts []ContentPart
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				parts = append(parts, ContentPart{Type: c.Type, Text: c.Text})
			}
		case "function_call":
			args := map[string]any{}
			if item.Arguments != "" {
				if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
					args = map[string]any{"_raw": item.Arguments}
				}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: item.CallID, Name: item.Name, Arguments: args})
		}
	}

	if resp.OutputText != "" {
		out.Output = OutputText{Text: resp.OutputText}
	} else {
		out.Output = ContentParts{Parts: parts}
	}
	return out
}

// classifyOpenAIError turns a 400 naming an unsupported parameter into
// an *UnsupportedError. Everything else passes through.
func classifyOpenAIError(err error) error {
	var re *apiclient.RemoteError
	if !errors.As(err, &re) || re.Status != http.StatusBadRequest {
		return err
	}

	var body openaiErrorBody
	if json.Unmarshal([]byte(re.Message), &body) != nil {
		return err
	}
	e := body.Error
	if !strings.HasPrefix(e.Code, "unsupported_") && !strings.Contains(strings.ToLower(e.Message), "not supported") {
		return err
	}

	if f := featureForParam(e.Param); f != "" {
		return &UnsupportedError{Provider: "openai", Feature: f}
	}
	return err
}

func featureForParam(param string) string {
	switch {
	case strings.HasPrefix(param, "reasoning"):
		return FeatureEffort
	case strings.HasPrefix(param, "tools"):
		return FeatureTools
	case strings.HasPrefix(param, "text"), strings.HasPrefix(param, "response_format"):
		return FeatureSchema
	case param == "previous_response_id":
		return FeatureContinuation
	default:
		return ""
	}
}

// Ping checks that the API key is accepted.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if c.apiKey == "" {
		return config.MissingError("openai.api_key")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &apiclient.RemoteError{Service: "openai", Status: resp.StatusCode, Message: "ping failed"}
	}
	return nil
}
