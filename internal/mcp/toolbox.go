package mcp

import (
	"fmt"
	"slices"

	"github.com/vector-ai/vector-mcp-server/internal/catalog"
	"github.com/vector-ai/vector-mcp-server/internal/protocol"
)

// Toolbox is the read-only tool registry. It is built once before any
// connection is accepted and never changes afterwards.
type Toolbox struct {
	tools       map[string]catalog.Tool
	descriptors []protocol.ToolDescriptor
}

// NewToolbox constructs a toolbox with the provided tools, keeping their
// registration order. Two tools with the same name are a startup error.
func NewToolbox(tools ...catalog.Tool) (*Toolbox, error) {
	m := make(map[string]catalog.Tool, len(tools))
	descriptors := make([]protocol.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name)
		}
		m[t.Name] = t
		descriptors = append(descriptors, protocol.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return &Toolbox{tools: m, descriptors: descriptors}, nil
}

// Describe returns all tool descriptors in registration order.
func (tb *Toolbox) Describe() []protocol.ToolDescriptor {
	return slices.Clone(tb.descriptors)
}

// Lookup returns the named tool.
func (tb *Toolbox) Lookup(name string) (catalog.Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Names lists tool names in registration order.
func (tb *Toolbox) Names() []string {
	names := make([]string, 0, len(tb.descriptors))
	for _, d := range tb.descriptors {
		names = append(names, d.Name)
	}
	return names
}

// Len returns the number of registered tools.
func (tb *Toolbox) Len() int {
	return len(tb.descriptors)
}
