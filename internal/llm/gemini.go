package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/mtgprep/mtgprep/internal/apiclient"
)

// GeminiClient calls Google Gemini through the genai SDK. It serves as
// a fallback model: plain text or JSON schema output, no tools, no
// effort, no continuation.
type GeminiClient struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiClient creates a Gemini client. An empty baseURL uses the
// SDK default endpoint.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, logger: logger.With("provider", "gemini")}, nil
}

// Generate sends one GenerateContent request.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	switch {
	case len(req.Tools) > 0:
		return nil, &UnsupportedError{Provider: "gemini", Feature: FeatureTools}
	case req.Effort != "":
		return nil, &UnsupportedError{Provider: "gemini", Feature: FeatureEffort}
	case req.PreviousResponseID != "":
		return nil, &UnsupportedError{Provider: "gemini", Feature: FeatureContinuation}
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.Schema.Schema
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	c.logger.Debug("preparing request", "model", req.Model, "contents", len(contents))

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &apiclient.RemoteError{Service: "gemini", Status: apiErr.Code, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return convertFromGemini(req.Model, resp), nil
}

func convertFromGemini(model string, resp *genai.GenerateContentResponse) *Response {
	out := &Response{Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	var parts []ContentPart
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p == nil || p.Thought || p.Text == "" {
				continue
			}
			parts = append(parts, ContentPart{Type: "text", Text: p.Text})
		}
	}
	out.Output = ContentParts{Parts: parts}
	return out
}

// Ping is a no-op; the SDK has no cheap health endpoint and key errors
// surface on the first Generate.
func (c *GeminiClient) Ping(ctx context.Context) error {
	return ctx.Err()
}
