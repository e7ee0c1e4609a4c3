// Package search runs web searches for company and attendee research.
//
// Backends implement [Provider]; the [Manager] routes queries to the
// configured primary backend.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnavailable is returned when no provider is registered.
var ErrUnavailable = errors.New("web search not configured")

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results. Zero means 5.
	Count int `json:"count,omitempty"`

	// Language is an ISO 639-1 language code (e.g., "en", "de").
	Language string `json:"language,omitempty"`
}

func (o Options) count() int {
	if o.Count <= 0 {
		return 5
	}
	return o.Count
}

// Provider is the interface that search backends implement.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Manager holds configured providers and routes searches.
type Manager struct {
	providers map[string]Provider
	primary   string
}

// NewManager creates a search manager. When primary is empty the first
// registered provider becomes primary.
func NewManager(primary string) *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		primary:   primary,
	}
}

// Register adds a provider to the manager.
func (m *Manager) Register(p Provider) {
	m.providers[p.Name()] = p
	if m.primary == "" {
		m.primary = p.Name()
	}
}

// Search runs a query against the primary provider.
func (m *Manager) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if m == nil || len(m.providers) == 0 {
		return nil, ErrUnavailable
	}
	return m.SearchWith(ctx, m.primary, query, opts)
}

// SearchWith runs a query against a specific named provider.
func (m *Manager) SearchWith(ctx context.Context, provider, query string, opts Options) ([]Result, error) {
	p, ok := m.providers[provider]
	if !ok {
		return nil, fmt.Errorf("search provider %q not configured", provider)
	}
	results, err := p.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if n := opts.count(); len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// Providers returns the sorted names of all registered providers.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configured reports whether at least one provider is registered.
func (m *Manager) Configured() bool {
	return m != nil && len(m.providers) > 0
}
