package tool

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the schema variants. Every schema handed to the runtime
// is fully resolved: no reference kinds exist here.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindUnion   Kind = "union"
	// KindAny is the opaque placeholder a cyclic reference collapses to.
	// It accepts any JSON object.
	KindAny Kind = "any"
)

// Schema is the resolved parameter schema, a tagged variant over Kind.
// Properties/Required apply to object schemas, Elem to arrays, Variants to
// unions. Consumers must switch on Kind exhaustively instead of inspecting
// the optional fields.
type Schema struct {
	Kind        Kind
	Description string
	Properties  map[string]*Schema
	Required    []string
	Elem        *Schema
	Variants    []*Schema
	Enum        []any
	Default     any
}

// IsPrimitive reports whether the schema is a scalar JSON type.
func (s *Schema) IsPrimitive() bool {
	switch s.Kind {
	case KindString, KindNumber, KindInteger, KindBoolean:
		return true
	}
	return false
}

// jsonSchema is the wire shape of a Schema: standard JSON Schema vocabulary,
// which is what MCP clients expect in input_schema and what the metadata
// document persists.
type jsonSchema struct {
	Type                 string                     `json:"type,omitempty"`
	Description          string                     `json:"description,omitempty"`
	Properties           map[string]json.RawMessage `json:"properties,omitempty"`
	Required             []string                   `json:"required,omitempty"`
	Items                json.RawMessage            `json:"items,omitempty"`
	OneOf                []json.RawMessage          `json:"oneOf,omitempty"`
	Enum                 []any                      `json:"enum,omitempty"`
	Default              any                        `json:"default,omitempty"`
	AdditionalProperties *bool                      `json:"additionalProperties,omitempty"`
}

// MarshalJSON renders the schema as standard JSON Schema. Unions become
// oneOf, the opaque placeholder becomes an open object.
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := jsonSchema{
		Description: s.Description,
		Enum:        s.Enum,
		Default:     s.Default,
	}

	switch s.Kind {
	case KindString, KindNumber, KindInteger, KindBoolean:
		out.Type = string(s.Kind)

	case KindObject:
		out.Type = "object"
		out.Required = s.Required
		if len(s.Properties) > 0 {
			out.Properties = make(map[string]json.RawMessage, len(s.Properties))
			for name, prop := range s.Properties {
				raw, err := json.Marshal(prop)
				if err != nil {
					return nil, fmt.Errorf("marshal property %q: %w", name, err)
				}
				out.Properties[name] = raw
			}
		}

	case KindArray:
		out.Type = "array"
		if s.Elem != nil {
			raw, err := json.Marshal(s.Elem)
			if err != nil {
				return nil, fmt.Errorf("marshal array element: %w", err)
			}
			out.Items = raw
		}

	case KindUnion:
		for i, v := range s.Variants {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshal union variant %d: %w", i, err)
			}
			out.OneOf = append(out.OneOf, raw)
		}

	case KindAny:
		out.Type = "object"
		open := true
		out.AdditionalProperties = &open

	default:
		return nil, fmt.Errorf("unknown schema kind: %q", s.Kind)
	}

	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the tagged variant from the JSON Schema wire shape.
// An object without declared properties and with open additionalProperties is
// read back as the opaque placeholder.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var in jsonSchema
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.Description = in.Description
	s.Enum = in.Enum
	s.Default = in.Default

	switch {
	case len(in.OneOf) > 0:
		s.Kind = KindUnion
		s.Variants = make([]*Schema, 0, len(in.OneOf))
		for i, raw := range in.OneOf {
			v := &Schema{}
			if err := json.Unmarshal(raw, v); err != nil {
				return fmt.Errorf("unmarshal union variant %d: %w", i, err)
			}
			s.Variants = append(s.Variants, v)
		}

	case in.Type == "object" || (in.Type == "" && len(in.Properties) > 0):
		if len(in.Properties) == 0 && in.AdditionalProperties != nil && *in.AdditionalProperties {
			s.Kind = KindAny
			return nil
		}
		s.Kind = KindObject
		s.Required = in.Required
		if len(in.Properties) > 0 {
			s.Properties = make(map[string]*Schema, len(in.Properties))
			for name, raw := range in.Properties {
				p := &Schema{}
				if err := json.Unmarshal(raw, p); err != nil {
					return fmt.Errorf("unmarshal property %q: %w", name, err)
				}
				s.Properties[name] = p
			}
		}

	case in.Type == "array":
		s.Kind = KindArray
		if in.Items != nil {
			elem := &Schema{}
			if err := json.Unmarshal(in.Items, elem); err != nil {
				return fmt.Errorf("unmarshal array element: %w", err)
			}
			s.Elem = elem
		}

	case in.Type == "string", in.Type == "number", in.Type == "integer", in.Type == "boolean":
		s.Kind = Kind(in.Type)

	case in.Type == "":
		// Untyped schema: treat as the opaque placeholder.
		s.Kind = KindAny

	default:
		return fmt.Errorf("unknown schema type: %q", in.Type)
	}

	return nil
}

// PropertyNames returns the object property names in sorted order. Returns
// nil for non-object schemas.
func (s *Schema) PropertyNames() []string {
	if s.Kind != KindObject || len(s.Properties) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnyObject returns the opaque placeholder schema used when a cyclic
// reference has to be cut.
func AnyObject() *Schema {
	return &Schema{Kind: KindAny}
}
