package engine

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/analytics-core/core"
)

// ToolRegistry manages the tools available to an engine. The weekly
// suggester builds a fresh registry per capability call so per-run state
// (the web_search call counter) stays scoped to one run.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]core.Tool),
	}
}

// Register adds a tool to the registry, replacing any same-named tool.
func (r *ToolRegistry) Register(tool core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// RegisterAll adds multiple tools.
func (r *ToolRegistry) RegisterAll(tools ...core.Tool) {
	for _, tool := range tools {
		r.Register(tool)
	}
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tool names.
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToAPITools converts every registered tool to Claude API format.
func (r *ToolRegistry) ToAPITools() []anthropic.ToolUnionParam {
	return r.ToAPIToolsFiltered(func(core.Tool) bool { return true })
}

// ToAPIToolsFiltered converts the tools matching filter to API format.
func (r *ToolRegistry) ToAPIToolsFiltered(filter func(core.Tool) bool) []anthropic.ToolUnionParam {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []anthropic.ToolUnionParam
	for _, tool := range r.tools {
		if filter(tool) {
			out = append(out, apiTool(tool))
		}
	}
	return out
}

// FilterByNames returns a filter matching tools by name.
func FilterByNames(names ...string) func(core.Tool) bool {
	nameSet := make(map[string]bool, len(names))
	for _, name := range names {
		nameSet[name] = true
	}
	return func(t core.Tool) bool {
		return nameSet[t.Name()]
	}
}

func apiTool(tool core.Tool) anthropic.ToolUnionParam {
	schema := tool.Schema()
	properties, _ := schema["properties"].(map[string]interface{})
	var required []string
	switch req := schema["required"].(type) {
	case []string:
		required = req
	case []interface{}:
		for _, r := range req {
			if str, ok := r.(string); ok {
				required = append(required, str)
			}
		}
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        tool.Name(),
			Description: anthropic.String(tool.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		},
	}
}
