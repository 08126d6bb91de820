package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func roundTrip(t *testing.T, s *Schema) Schema {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	var got Schema
	require.NoError(t, json.Unmarshal(data, &got))
	return got
}

func TestSchemaUnionRoundTrip(t *testing.T) {
	s := &Schema{
		Kind:        KindUnion,
		Description: "id or record",
		Variants: []*Schema{
			{Kind: KindString},
			{
				Kind:       KindObject,
				Properties: map[string]*Schema{"name": {Kind: KindString}},
				Required:   []string{"name"},
			},
		},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	// Unions ride the wire as oneOf without a top-level type.
	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.NotContains(t, wire, "type")
	require.Len(t, wire["oneOf"], 2)

	got := roundTrip(t, s)
	assert.Equal(t, *s, got)
}

func TestSchemaAnyRoundTrip(t *testing.T) {
	s := AnyObject()

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","additionalProperties":true}`, string(data))

	got := roundTrip(t, s)
	assert.Equal(t, KindAny, got.Kind)
}

func TestSchemaNestedObjectRoundTrip(t *testing.T) {
	s := &Schema{
		Kind: KindObject,
		Properties: map[string]*Schema{
			"name": {Kind: KindString, Description: "display name"},
			"tags": {Kind: KindArray, Elem: &Schema{Kind: KindString}},
			"owner": {
				Kind:       KindObject,
				Properties: map[string]*Schema{"email": {Kind: KindString}},
				Required:   []string{"email"},
			},
			"extra": {Kind: KindAny},
		},
		Required: []string{"name", "owner"},
	}

	got := roundTrip(t, s)
	assert.Equal(t, *s, got)
}

func TestSchemaEnumAndDefaultSurvive(t *testing.T) {
	s := &Schema{
		Kind:    KindString,
		Enum:    []any{"asc", "desc"},
		Default: "asc",
	}
	got := roundTrip(t, s)
	assert.Equal(t, *s, got)
}

func TestSchemaUnmarshalUntypedIsAny(t *testing.T) {
	var s Schema
	require.NoError(t, json.Unmarshal([]byte(`{}`), &s))
	assert.Equal(t, KindAny, s.Kind)

	// An untyped schema with declared properties is still an object.
	require.NoError(t, json.Unmarshal([]byte(`{"properties":{"a":{"type":"string"}}}`), &s))
	assert.Equal(t, KindObject, s.Kind)
}

func TestSchemaUnmarshalUnknownType(t *testing.T) {
	var s Schema
	err := json.Unmarshal([]byte(`{"type":"banana"}`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema type")
}

// genSchema draws a random schema tree. Leaves stay scalar so the tree is
// finite; enum and default values stick to strings, which survive JSON
// number conversion untouched.
func genSchema(t *rapid.T, depth int) *Schema {
	kinds := []Kind{KindString, KindNumber, KindInteger, KindBoolean, KindAny}
	if depth > 0 {
		kinds = append(kinds, KindObject, KindArray, KindUnion)
	}
	s := &Schema{Kind: rapid.SampledFrom(kinds).Draw(t, "kind")}

	if rapid.Bool().Draw(t, "hasDesc") {
		s.Description = rapid.StringMatching(`[a-z ]{1,16}`).Draw(t, "desc")
	}

	switch s.Kind {
	case KindString:
		if rapid.Bool().Draw(t, "hasEnum") {
			n := rapid.IntRange(1, 3).Draw(t, "enumLen")
			for i := 0; i < n; i++ {
				s.Enum = append(s.Enum, rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "enumVal"))
			}
			s.Default = s.Enum[0]
		}

	case KindObject:
		n := rapid.IntRange(1, 3).Draw(t, "propCount")
		s.Properties = make(map[string]*Schema, n)
		for i := 0; i < n; i++ {
			name := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "propName")
			s.Properties[name] = genSchema(t, depth-1)
		}
		for _, name := range s.PropertyNames() {
			if rapid.Bool().Draw(t, "isRequired") {
				s.Required = append(s.Required, name)
			}
		}

	case KindArray:
		if rapid.Bool().Draw(t, "hasElem") {
			s.Elem = genSchema(t, depth-1)
		}

	case KindUnion:
		n := rapid.IntRange(1, 3).Draw(t, "variantCount")
		for i := 0; i < n; i++ {
			s.Variants = append(s.Variants, genSchema(t, depth-1))
		}
	}
	return s
}

func TestSchemaRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genSchema(t, rapid.IntRange(0, 3).Draw(t, "depth"))

		data, err := json.Marshal(s)
		require.NoError(t, err)

		var got Schema
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, *s, got)

		// Marshaling the decoded schema reproduces the same wire form.
		again, err := json.Marshal(&got)
		require.NoError(t, err)
		assert.JSONEq(t, string(data), string(again))
	})
}
