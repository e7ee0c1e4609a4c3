package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ToolHandler exposes the manager as the model's web_search tool.
func ToolHandler(mgr *Manager) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return "", fmt.Errorf("web_search: query is required")
		}

		opts := Options{}
		if count, ok := args["count"].(float64); ok && count > 0 {
			opts.Count = min(int(count), 10)
		}

		results, err := mgr.Search(ctx, query, opts)
		if err != nil {
			return "", err
		}

		out, err := json.Marshal(results)
		if err != nil {
			return FormatResults(results), nil
		}
		return string(out), nil
	}
}

// ToolDefinition returns the JSON Schema parameters for the web_search tool.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query string.",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (1-10). Default: 5.",
			},
		},
		"required": []string{"query"},
	}
}

// FormatResults renders results as a numbered list.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			sb.WriteString("\n   " + r.Snippet)
		}
	}
	return sb.String()
}
