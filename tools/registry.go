package tools

import (
	"fmt"
	"sort"

	"foodlog/record"
)

// Registry maps tool names to implementations. It is the whole model-facing
// contract: nothing outside it can be called by the model.
type Registry map[string]Tool

// NewRegistry creates the food logging tool registry backed by store.
func NewRegistry(store record.Store) *Registry {
	registry := Registry{}
	registry.Register(NewLogIngredients(store))
	registry.Register(NewSetConfidence(store))
	return &registry
}

// Register adds t, replacing any tool with the same name.
func (r Registry) Register(t Tool) {
	r[t.Name()] = t
}

// GetTools returns all tools in the registry sorted by name.
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}
