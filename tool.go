package maestro

import (
	"context"
	"encoding/json"
)

// Tool is an agent capability: a named, described function with a
// JSON-Schema parameter contract. Execute receives the raw argument
// object and returns a value that is serialized into the tool message
// content (strings pass through, everything else is JSON-encoded).
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema for the argument object
	Execute     func(ctx context.Context, args json.RawMessage) (any, error)
}

// Definition returns the wire-facing description of the tool.
func (t Tool) Definition() ToolDefinition {
	return ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// ToolSet holds an agent's tools, keyed by name, preserving registration
// order. Names are unique within a set.
type ToolSet struct {
	order  []string
	byName map[string]Tool
}

// NewToolSet creates a set from the given tools. Returns a duplicate-id
// error when two tools share a name.
func NewToolSet(tools ...Tool) (*ToolSet, error) {
	s := &ToolSet{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers a tool. Fails when the name is already taken.
func (s *ToolSet) Add(t Tool) error {
	if _, exists := s.byName[t.Name]; exists {
		return Errf(ErrDuplicateID, "duplicate tool name %q", t.Name)
	}
	s.byName[t.Name] = t
	s.order = append(s.order, t.Name)
	return nil
}

// Get looks up a tool by name.
func (s *ToolSet) Get(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Len returns the number of registered tools.
func (s *ToolSet) Len() int { return len(s.order) }

// Definitions returns tool definitions in registration order.
func (s *ToolSet) Definitions() []ToolDefinition {
	if len(s.order) == 0 {
		return nil
	}
	defs := make([]ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, s.byName[name].Definition())
	}
	return defs
}

// clone returns an independent copy of the set.
func (s *ToolSet) clone() *ToolSet {
	c := &ToolSet{
		order:  append([]string(nil), s.order...),
		byName: make(map[string]Tool, len(s.byName)),
	}
	for name, t := range s.byName {
		c.byName[name] = t
	}
	return c
}
