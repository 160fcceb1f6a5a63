// Package catalog holds the static registry of remote operations the bridge
// is willing to dispatch. The bridge never interprets an operation's
// arguments or results; the catalog exists so unknown names fail fast and so
// the control plane can enumerate what is available.
package catalog

import "encoding/json"

// Definition describes one remote operation: its name, a human-readable
// description, and the JSON schema its arguments object must satisfy.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// NewDefinition creates an operation definition.
func NewDefinition(name, description string, schema map[string]any) Definition {
	return Definition{
		Name:        name,
		Description: description,
		Schema:      schema,
	}
}

// SchemaJSON returns the argument schema as raw JSON, or nil when the
// operation declares no schema.
func (d *Definition) SchemaJSON() (json.RawMessage, error) {
	if d.Schema == nil {
		return nil, nil
	}
	return json.Marshal(d.Schema)
}

// objectSchema is a shorthand for building a draft-7 object schema with the
// given properties and required names.
func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func numberProp(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}
