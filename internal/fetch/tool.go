package fetch

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler exposes the fetcher as the model's scrape_url tool.
func ToolHandler(f *Fetcher) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		url, _ := args["url"].(string)
		if url == "" {
			return "", fmt.Errorf("scrape_url: url is required")
		}
		page, err := f.Fetch(ctx, url, DefaultMaxChars)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(page)
		if err != nil {
			return page.Content, nil
		}
		return string(out), nil
	}
}

// ToolDefinition returns the JSON Schema parameters for the scrape_url tool.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The page to read, e.g. a company's about or press page.",
			},
		},
		"required": []string{"url"},
	}
}
