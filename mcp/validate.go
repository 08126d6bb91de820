package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rfonseca85/mcp-generator/tool"
)

// ValidationError lists exactly which arguments were rejected and why, so
// the agent on the other end can repair its call.
type ValidationError struct {
	Tool    string
	Missing []string
	Invalid []string
	Unknown []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid type: %s", strings.Join(e.Invalid, ", ")))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown: %s", strings.Join(e.Unknown, ", ")))
	}
	return fmt.Sprintf("tool %q arguments rejected: %s", e.Tool, strings.Join(parts, "; "))
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0 && len(e.Unknown) == 0
}

// ValidateArguments checks a tools/call argument object against the tool's
// parameters before anything reaches the upstream API. Absent optional
// arguments are fine; absent required ones, type mismatches, and argument
// names the tool never declared are not.
func ValidateArguments(def *tool.Definition, args map[string]any) error {
	verr := &ValidationError{Tool: def.Name}
	declared := make(map[string]tool.Parameter, len(def.Parameters))
	for _, p := range def.Parameters {
		declared[p.Name] = p
		value, present := args[p.Name]
		if !present {
			if p.Required {
				verr.Missing = append(verr.Missing, p.Name)
			}
			continue
		}
		if p.Schema != nil && !matchesSchema(value, p.Schema) {
			verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s (want %s)", p.Name, p.Schema.Kind))
		}
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			verr.Unknown = append(verr.Unknown, name)
		}
	}

	if verr.empty() {
		return nil
	}
	sort.Strings(verr.Missing)
	sort.Strings(verr.Invalid)
	sort.Strings(verr.Unknown)
	return verr
}

// matchesSchema checks a decoded JSON value against a resolved schema kind.
// Checks are shallow for composites beyond structure: object property types
// recurse, arrays check the element kind, unions accept any matching
// variant, and the opaque kind accepts everything.
func matchesSchema(value any, schema *tool.Schema) bool {
	switch schema.Kind {
	case tool.KindAny:
		return true
	case tool.KindString:
		_, ok := value.(string)
		return ok
	case tool.KindBoolean:
		_, ok := value.(bool)
		return ok
	case tool.KindNumber:
		return isJSONNumber(value)
	case tool.KindInteger:
		f, ok := value.(float64)
		if ok {
			return f == float64(int64(f))
		}
		_, ok = value.(int)
		return ok
	case tool.KindArray:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		if schema.Elem == nil {
			return true
		}
		for _, item := range list {
			if !matchesSchema(item, schema.Elem) {
				return false
			}
		}
		return true
	case tool.KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return false
		}
		for _, name := range schema.Required {
			if _, present := obj[name]; !present {
				return false
			}
		}
		for name, propValue := range obj {
			propSchema, declared := schema.Properties[name]
			if !declared {
				continue
			}
			if !matchesSchema(propValue, propSchema) {
				return false
			}
		}
		return true
	case tool.KindUnion:
		for _, variant := range schema.Variants {
			if matchesSchema(value, variant) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isJSONNumber(value any) bool {
	switch value.(type) {
	case float64, int, int64:
		return true
	default:
		return false
	}
}
