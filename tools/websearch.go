// Package tools holds the tools the capability engine can call, plus the
// JSON Schema helpers for declaring their inputs.
package tools

import (
	"context"
	"encoding/json"

	"github.com/becomeliminal/analytics-core/core"
)

// WebSearchToolName is the name under which the single external capability
// the weekly suggester consumes is registered with the engine's registry.
const WebSearchToolName = "web_search"

// SearchBackend performs the actual network round-trip for a web_search
// tool call. HTTPSearchBackend reports quota exhaustion with an error
// distinct from transport failure. WebSearchTool does not classify backend
// errors: any error goes back to the model as a failed tool result and the
// run continues.
type SearchBackend interface {
	Search(ctx context.Context, query string) (results string, err error)
}

// WebSearchTool wraps a SearchBackend as a tool the engine can call while
// hunting for cheaper alternatives. Every call that reaches the backend is
// one unit of mcp_calls_made on the resulting weekly report.
type WebSearchTool struct {
	backend SearchBackend
	calls   *int
}

// NewWebSearchTool creates a web_search tool backed by backend. calls, if
// non-nil, is incremented on every invocation with a valid query (input
// rejected before the backend is not counted) so the caller can read
// mcp_calls_made back out after the run completes.
func NewWebSearchTool(backend SearchBackend, calls *int) *WebSearchTool {
	return &WebSearchTool{backend: backend, calls: calls}
}

func (t *WebSearchTool) Name() string { return WebSearchToolName }

func (t *WebSearchTool) Description() string {
	return `Search the web for a purchasable alternative to an item. Given a
query describing the item, its price, and the buyer's location, return
search results text you can use to identify a cheaper purchasable
alternative (local store or online retailer) with a real URL.`
}

func (t *WebSearchTool) Schema() map[string]interface{} {
	return ObjectSchema(map[string]interface{}{
		"query": StringProperty("Search query, e.g. 'cheapest whole foods organic eggs near San Francisco, CA'"),
	}, "query")
}

func (t *WebSearchTool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params.Input, &input); err != nil || input.Query == "" {
		return &core.ToolResult{Success: false, Error: "invalid input: query is required"}, nil
	}

	if t.calls != nil {
		*t.calls++
	}

	results, err := t.backend.Search(ctx, input.Query)
	if err != nil {
		return &core.ToolResult{Success: false, Error: err.Error()}, nil
	}
	return &core.ToolResult{Success: true, Data: map[string]string{"results": results}}, nil
}
