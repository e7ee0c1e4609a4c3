package llm

import "context"

// Client is the interface that all model providers implement.
type Client interface {
	// Generate sends one request. A feature the provider cannot honor is
	// reported as *UnsupportedError before anything is sent, or when the
	// remote rejects the parameter.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
