// Package tools defines the functions a model may call while drafting:
// web search, page scraping and CRM lookups.
package tools

import (
	"context"
	"fmt"

	"github.com/mtgprep/mtgprep/internal/llm"
)

// Handler executes one tool call and returns text for the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Registry holds available tools in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry, replacing any tool of the same
// name.
func (r *Registry) Register(t *Tool) {
	if _, ok := r.tools[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns all tools in the form sent to the model.
func (r *Registry) Definitions() []llm.Tool {
	if r == nil {
		return nil
	}
	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.Tool{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return defs
}

// Execute runs a tool by name. An unknown name returns
// *ErrToolUnavailable.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	if r == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	tool := r.tools[name]
	if tool == nil || tool.Handler == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	if args == nil {
		args = map[string]any{}
	}
	out, err := tool.Handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
