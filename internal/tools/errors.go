package tools

import "fmt"

// ErrToolUnavailable is returned when a tool call targets a tool that
// is not present in the registry, either because it does not exist or
// because its backing service is not configured.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available in this context", e.ToolName)
}
