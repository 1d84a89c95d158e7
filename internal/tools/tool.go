package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tool defines the interface for all agent capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// Registry manages the set of available tools.
type Registry struct {
	Tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.Tools[t.Name()] = t
}

func (r *Registry) Get(name string) Tool {
	return r.Tools[name]
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	list := make([]Tool, 0, len(r.Tools))
	for _, t := range r.Tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Catalog renders one "- name: description" line per tool for planner prompts.
func (r *Registry) Catalog() string {
	var lines []string
	for _, t := range r.List() {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
	}
	return strings.Join(lines, "\n")
}
