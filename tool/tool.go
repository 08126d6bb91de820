// Package tool defines the resolved tool model shared by the generator and
// the runtime: tool definitions, their parameter schemas, and the immutable
// registry a running server exposes.
package tool

import (
	"encoding/json"
	"fmt"
)

// Location names where a parameter travels on the upstream HTTP call.
type Location string

const (
	InPath   Location = "path"
	InQuery  Location = "query"
	InBody   Location = "body"
	InHeader Location = "header"
)

// Parameter is one callable argument of a tool. Exactly one Location per
// parameter; body parameters are reassembled into the request payload by the
// upstream caller.
type Parameter struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Required bool     `json:"required"`
	Schema   *Schema  `json:"schema"`
}

// Definition is one callable tool generated from one API operation.
// Name is unique within a registry after collision resolution and stable
// across regenerations from the same document.
type Definition struct {
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Method         string      `json:"method"`
	PathTemplate   string      `json:"path"`
	Parameters     []Parameter `json:"parameters,omitempty"`
	ResponseSchema *Schema     `json:"response_schema,omitempty"`
	OperationID    string      `json:"operation_id,omitempty"`

	// LossyNotes records documented lossy resolution decisions (allOf key
	// conflicts, cyclic references cut, undiscriminated unions).
	LossyNotes []string `json:"lossy_notes,omitempty"`
}

// InputSchema assembles the single object schema clients see: one property
// per parameter, required set from the required flags. This is the schema
// arguments are validated against at call time.
func (d *Definition) InputSchema() *Schema {
	obj := &Schema{Kind: KindObject, Properties: make(map[string]*Schema, len(d.Parameters))}
	for _, p := range d.Parameters {
		s := p.Schema
		if s == nil {
			s = &Schema{Kind: KindString}
		}
		obj.Properties[p.Name] = s
		if p.Required {
			obj.Required = append(obj.Required, p.Name)
		}
	}
	return obj
}

// InputSchemaJSON is InputSchema rendered as JSON Schema, the form carried in
// tools/list results and in the metadata document.
func (d *Definition) InputSchemaJSON() (json.RawMessage, error) {
	raw, err := json.Marshal(d.InputSchema())
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", d.Name, err)
	}
	return raw, nil
}

// Validate checks structural invariants the compiler relies on.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if d.Method == "" {
		return fmt.Errorf("tool %q: method is required", d.Name)
	}
	if d.PathTemplate == "" {
		return fmt.Errorf("tool %q: path template is required", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("tool %q: parameter with empty name", d.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("tool %q: duplicate parameter %q", d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		switch p.Location {
		case InPath, InQuery, InBody, InHeader:
		default:
			return fmt.Errorf("tool %q: parameter %q has invalid location %q", d.Name, p.Name, p.Location)
		}
	}
	return nil
}
