package openapi

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/tool"
)

// ResolutionError reports a malformed document or a broken (non-cyclic)
// reference, naming the offending location.
type ResolutionError struct {
	Location string
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("schema resolution failed at %s: %s", e.Location, e.Reason)
}

var httpMethods = []string{"delete", "get", "head", "options", "patch", "post", "put"}

// Resolver turns a Document into ordered, fully-resolved tool definitions.
// Resolution is deterministic: the same document always yields the same tool
// names in the same order, ascending by (path, method).
type Resolver struct {
	doc    *Document
	logger *zap.Logger
}

// NewResolver creates a resolver for the given document.
func NewResolver(doc *Document, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{doc: doc, logger: logger.With(zap.String("component", "schema_resolver"))}
}

// Resolve walks every declared path x method and produces one tool
// definition per operation. Reference cycles are cut to an opaque object
// placeholder; broken references and malformed nodes abort with a
// ResolutionError naming the location.
func (r *Resolver) Resolve() ([]tool.Definition, error) {
	pathsRaw, ok := r.doc.raw["paths"]
	if !ok {
		return nil, &ResolutionError{Location: "#/paths", Reason: "document declares no paths"}
	}
	paths, ok := pathsRaw.(map[string]any)
	if !ok {
		return nil, &ResolutionError{Location: "#/paths", Reason: "paths is not an object"}
	}

	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	var defs []tool.Definition
	for _, path := range pathKeys {
		item, ok := paths[path].(map[string]any)
		if !ok {
			return nil, &ResolutionError{
				Location: "#/paths/" + path,
				Reason:   "path item is not an object",
			}
		}

		shared := r.sharedParameters(item)

		for _, method := range httpMethods {
			opRaw, ok := item[method]
			if !ok {
				continue
			}
			op, ok := opRaw.(map[string]any)
			if !ok {
				return nil, &ResolutionError{
					Location: fmt.Sprintf("#/paths/%s/%s", path, method),
					Reason:   "operation is not an object",
				}
			}

			def, err := r.resolveOperation(path, method, op, shared)
			if err != nil {
				return nil, err
			}
			defs = append(defs, *def)
		}
	}

	r.logger.Info("resolved tools", zap.Int("count", len(defs)))
	return defs, nil
}

// sharedParameters returns path-item-level parameters, applied to every
// operation on the path unless shadowed by an operation-level one.
func (r *Resolver) sharedParameters(item map[string]any) []any {
	params, _ := item["parameters"].([]any)
	return params
}

func (r *Resolver) resolveOperation(path, method string, op map[string]any, shared []any) (*tool.Definition, error) {
	location := fmt.Sprintf("#/paths/%s/%s", path, method)

	def := &tool.Definition{
		Method:       strings.ToUpper(method),
		PathTemplate: path,
	}

	if id, ok := op["operationId"].(string); ok && id != "" {
		def.OperationID = id
		def.Name = sanitizeName(id)
	} else {
		def.Name = fmt.Sprintf("%s_%s", method, slugPath(path))
	}

	def.Description = operationDescription(path, method, op)

	// Path-item parameters first, shadowed by operation parameters of the
	// same (name, in) pair.
	opParams, _ := op["parameters"].([]any)
	merged := mergeParameters(shared, opParams)

	for i, rawParam := range merged {
		param, ok := rawParam.(map[string]any)
		if !ok {
			return nil, &ResolutionError{
				Location: fmt.Sprintf("%s/parameters/%d", location, i),
				Reason:   "parameter is not an object",
			}
		}
		p, notes, err := r.resolveParameter(param, fmt.Sprintf("%s/parameters/%d", location, i))
		if err != nil {
			return nil, err
		}
		def.Parameters = append(def.Parameters, *p)
		def.LossyNotes = append(def.LossyNotes, notes...)
	}

	if bodyRaw, ok := op["requestBody"].(map[string]any); ok {
		params, notes, err := r.resolveRequestBody(bodyRaw, location+"/requestBody")
		if err != nil {
			return nil, err
		}
		def.Parameters = append(def.Parameters, params...)
		def.LossyNotes = append(def.LossyNotes, notes...)
	}

	if respSchema, notes := r.resolveResponseSchema(op, location); respSchema != nil {
		def.ResponseSchema = respSchema
		def.LossyNotes = append(def.LossyNotes, notes...)
	}

	return def, nil
}

// mergeParameters overlays operation parameters on path-item parameters.
// An operation parameter shadows a shared one with the same (name, in).
func mergeParameters(shared, own []any) []any {
	if len(shared) == 0 {
		return own
	}
	key := func(p map[string]any) string {
		name, _ := p["name"].(string)
		in, _ := p["in"].(string)
		return in + ":" + name
	}
	shadowed := make(map[string]struct{}, len(own))
	for _, raw := range own {
		if p, ok := raw.(map[string]any); ok {
			shadowed[key(p)] = struct{}{}
		}
	}
	merged := make([]any, 0, len(shared)+len(own))
	for _, raw := range shared {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if _, hidden := shadowed[key(p)]; !hidden {
			merged = append(merged, raw)
		}
	}
	return append(merged, own...)
}

func (r *Resolver) resolveParameter(param map[string]any, location string) (*tool.Parameter, []string, error) {
	// Parameters themselves may be references.
	if ref, ok := param["$ref"].(string); ok {
		target, found := r.doc.lookupPointer(ref)
		if !found {
			return nil, nil, &ResolutionError{Location: location, Reason: fmt.Sprintf("unresolved reference %q", ref)}
		}
		param = target
	}

	name, _ := param["name"].(string)
	if name == "" {
		return nil, nil, &ResolutionError{Location: location, Reason: "parameter has no name"}
	}

	in, _ := param["in"].(string)
	var loc tool.Location
	switch in {
	case "path":
		loc = tool.InPath
	case "query", "":
		loc = tool.InQuery
	case "header":
		loc = tool.InHeader
	case "cookie":
		// Cookie parameters are carried as headers on the upstream call.
		loc = tool.InHeader
	default:
		return nil, nil, &ResolutionError{Location: location, Reason: fmt.Sprintf("unknown parameter location %q", in)}
	}

	required, _ := param["required"].(bool)
	if loc == tool.InPath {
		// Path parameters are always required regardless of the flag.
		required = true
	}

	schema := &tool.Schema{Kind: tool.KindString}
	var notes []string
	if schemaRaw, ok := param["schema"].(map[string]any); ok {
		resolved, n, err := r.resolveSchema(schemaRaw, location+"/schema", newRefStack())
		if err != nil {
			return nil, nil, err
		}
		schema = resolved
		notes = n
	}
	if desc, ok := param["description"].(string); ok && schema.Description == "" {
		schema.Description = desc
	}

	return &tool.Parameter{Name: name, Location: loc, Required: required, Schema: schema}, notes, nil
}

func (r *Resolver) resolveRequestBody(body map[string]any, location string) ([]tool.Parameter, []string, error) {
	if ref, ok := body["$ref"].(string); ok {
		target, found := r.doc.lookupPointer(ref)
		if !found {
			return nil, nil, &ResolutionError{Location: location, Reason: fmt.Sprintf("unresolved reference %q", ref)}
		}
		body = target
	}

	content, ok := body["content"].(map[string]any)
	if !ok || len(content) == 0 {
		return nil, nil, nil
	}

	schemaRaw := pickContentSchema(content)
	if schemaRaw == nil {
		return nil, nil, nil
	}

	bodyRequired, _ := body["required"].(bool)

	schema, notes, err := r.resolveSchema(schemaRaw, location+"/content", newRefStack())
	if err != nil {
		return nil, nil, err
	}

	switch schema.Kind {
	case tool.KindObject:
		// Object bodies are split into one parameter per top-level property
		// so that clients pass flat arguments; the upstream caller
		// reassembles the payload. Schema-level required carries over to the
		// flattened parameters regardless of the body's own required flag.
		requiredSet := make(map[string]struct{}, len(schema.Required))
		for _, name := range schema.Required {
			requiredSet[name] = struct{}{}
		}
		params := make([]tool.Parameter, 0, len(schema.Properties))
		for _, name := range schema.PropertyNames() {
			_, req := requiredSet[name]
			params = append(params, tool.Parameter{
				Name:     name,
				Location: tool.InBody,
				Required: req,
				Schema:   schema.Properties[name],
			})
		}
		return params, notes, nil

	case tool.KindUnion:
		// A top-level undiscriminated union cannot be flattened without
		// losing variants; it rides as a single body argument.
		notes = append(notes, fmt.Sprintf("%s: top-level union body kept as single argument", location))
		return []tool.Parameter{{
			Name:     "body",
			Location: tool.InBody,
			Required: bodyRequired,
			Schema:   schema,
		}}, notes, nil

	default:
		return []tool.Parameter{{
			Name:     "body",
			Location: tool.InBody,
			Required: bodyRequired,
			Schema:   schema,
		}}, notes, nil
	}
}

// pickContentSchema prefers application/json, then form encoding, then the
// lexicographically first declared content type.
func pickContentSchema(content map[string]any) map[string]any {
	for _, ct := range []string{"application/json", "application/x-www-form-urlencoded"} {
		if media, ok := content[ct].(map[string]any); ok {
			if schema, ok := media["schema"].(map[string]any); ok {
				return schema
			}
		}
	}
	types := make([]string, 0, len(content))
	for ct := range content {
		types = append(types, ct)
	}
	sort.Strings(types)
	for _, ct := range types {
		if media, ok := content[ct].(map[string]any); ok {
			if schema, ok := media["schema"].(map[string]any); ok {
				return schema
			}
		}
	}
	return nil
}

func (r *Resolver) resolveResponseSchema(op map[string]any, location string) (*tool.Schema, []string) {
	responses, ok := op["responses"].(map[string]any)
	if !ok {
		return nil, nil
	}
	for _, status := range []string{"200", "201", "default"} {
		resp, ok := responses[status].(map[string]any)
		if !ok {
			continue
		}
		content, ok := resp["content"].(map[string]any)
		if !ok {
			continue
		}
		schemaRaw := pickContentSchema(content)
		if schemaRaw == nil {
			continue
		}
		// Response schemas are informational; a failure to resolve one is
		// logged, not fatal.
		schema, notes, err := r.resolveSchema(schemaRaw, fmt.Sprintf("%s/responses/%s", location, status), newRefStack())
		if err != nil {
			r.logger.Warn("skipping unresolvable response schema",
				zap.String("location", location),
				zap.Error(err),
			)
			return nil, nil
		}
		return schema, notes
	}
	return nil, nil
}

// refStack tracks the active reference resolution path for cycle detection.
type refStack struct {
	active map[string]struct{}
}

func newRefStack() *refStack {
	return &refStack{active: make(map[string]struct{})}
}

func (s *refStack) enter(ref string) bool {
	if _, cycling := s.active[ref]; cycling {
		return false
	}
	s.active[ref] = struct{}{}
	return true
}

func (s *refStack) leave(ref string) {
	delete(s.active, ref)
}

// resolveSchema converts a raw schema node into the tagged variant model.
// A reference re-entered while still being resolved is replaced with the
// opaque "any object" placeholder instead of recursing, so resolution always
// terminates. Broken references abort with a ResolutionError.
func (r *Resolver) resolveSchema(node map[string]any, location string, stack *refStack) (*tool.Schema, []string, error) {
	if ref, ok := node["$ref"].(string); ok {
		if !stack.enter(ref) {
			return tool.AnyObject(), []string{fmt.Sprintf("%s: cyclic reference %s cut to opaque object", location, ref)}, nil
		}
		defer stack.leave(ref)

		target, found := r.doc.lookupPointer(ref)
		if !found {
			return nil, nil, &ResolutionError{Location: location, Reason: fmt.Sprintf("unresolved reference %q", ref)}
		}
		return r.resolveSchema(target, location, stack)
	}

	var notes []string

	if allOf, ok := node["allOf"].([]any); ok {
		return r.resolveAllOf(node, allOf, location, stack)
	}

	if oneOf, ok := node["oneOf"].([]any); ok {
		return r.resolveUnion(oneOf, location+"/oneOf", stack)
	}
	if anyOf, ok := node["anyOf"].([]any); ok {
		// anyOf is kept as a union like oneOf: flattening would silently
		// drop variants.
		return r.resolveUnion(anyOf, location+"/anyOf", stack)
	}

	typ, _ := node["type"].(string)
	schema := &tool.Schema{}
	if desc, ok := node["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := node["enum"].([]any); ok {
		schema.Enum = enum
	}
	if def, ok := node["default"]; ok {
		schema.Default = def
	}

	switch typ {
	case "string", "number", "integer", "boolean":
		schema.Kind = tool.Kind(typ)

	case "object", "":
		props, hasProps := node["properties"].(map[string]any)
		if typ == "" && !hasProps {
			// Untyped node with no structure: opaque.
			schema.Kind = tool.KindAny
			return schema, notes, nil
		}
		schema.Kind = tool.KindObject
		if hasProps {
			schema.Properties = make(map[string]*tool.Schema, len(props))
			names := make([]string, 0, len(props))
			for name := range props {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				propNode, ok := props[name].(map[string]any)
				if !ok {
					return nil, nil, &ResolutionError{
						Location: fmt.Sprintf("%s/properties/%s", location, name),
						Reason:   "property is not an object",
					}
				}
				resolved, n, err := r.resolveSchema(propNode, fmt.Sprintf("%s/properties/%s", location, name), stack)
				if err != nil {
					return nil, nil, err
				}
				schema.Properties[name] = resolved
				notes = append(notes, n...)
			}
		}
		if required, ok := node["required"].([]any); ok {
			for _, req := range required {
				if name, ok := req.(string); ok {
					schema.Required = append(schema.Required, name)
				}
			}
		}

	case "array":
		schema.Kind = tool.KindArray
		if items, ok := node["items"].(map[string]any); ok {
			elem, n, err := r.resolveSchema(items, location+"/items", stack)
			if err != nil {
				return nil, nil, err
			}
			schema.Elem = elem
			notes = append(notes, n...)
		} else {
			schema.Elem = tool.AnyObject()
		}

	case "null":
		// Standalone null type has no useful argument shape; treat as opaque.
		schema.Kind = tool.KindAny

	default:
		return nil, nil, &ResolutionError{Location: location, Reason: fmt.Sprintf("unknown schema type %q", typ)}
	}

	return schema, notes, nil
}

// resolveAllOf merges member object properties into one object schema.
// The last listed member wins on key conflicts; each conflict is recorded as
// a lossy note.
func (r *Resolver) resolveAllOf(node map[string]any, members []any, location string, stack *refStack) (*tool.Schema, []string, error) {
	merged := &tool.Schema{Kind: tool.KindObject, Properties: make(map[string]*tool.Schema)}
	var notes []string
	requiredSet := make(map[string]struct{})

	applyObject := func(obj *tool.Schema, memberLoc string) {
		for _, name := range obj.PropertyNames() {
			if _, conflict := merged.Properties[name]; conflict {
				notes = append(notes, fmt.Sprintf("%s: allOf member overrides property %q", memberLoc, name))
			}
			merged.Properties[name] = obj.Properties[name]
		}
		for _, req := range obj.Required {
			requiredSet[req] = struct{}{}
		}
	}

	// The enclosing node may carry sibling properties next to allOf;
	// members are applied after, so they win conflicts.
	if props, ok := node["properties"].(map[string]any); ok && len(props) > 0 {
		sibling := map[string]any{"type": "object", "properties": props}
		if req, ok := node["required"]; ok {
			sibling["required"] = req
		}
		obj, n, err := r.resolveSchema(sibling, location, stack)
		if err != nil {
			return nil, nil, err
		}
		notes = append(notes, n...)
		if obj.Kind == tool.KindObject {
			applyObject(obj, location)
		}
	}

	for i, memberRaw := range members {
		memberLoc := fmt.Sprintf("%s/allOf/%d", location, i)
		member, ok := memberRaw.(map[string]any)
		if !ok {
			return nil, nil, &ResolutionError{Location: memberLoc, Reason: "allOf member is not an object"}
		}
		resolved, n, err := r.resolveSchema(member, memberLoc, stack)
		if err != nil {
			return nil, nil, err
		}
		notes = append(notes, n...)
		switch resolved.Kind {
		case tool.KindObject:
			applyObject(resolved, memberLoc)
		case tool.KindAny:
			// A cycle cut inside allOf contributes nothing mergeable.
			notes = append(notes, fmt.Sprintf("%s: opaque member skipped in allOf merge", memberLoc))
		default:
			notes = append(notes, fmt.Sprintf("%s: non-object member (%s) skipped in allOf merge", memberLoc, resolved.Kind))
		}
	}

	merged.Required = make([]string, 0, len(requiredSet))
	for name := range requiredSet {
		merged.Required = append(merged.Required, name)
	}
	sort.Strings(merged.Required)

	return merged, notes, nil
}

func (r *Resolver) resolveUnion(variants []any, location string, stack *refStack) (*tool.Schema, []string, error) {
	union := &tool.Schema{Kind: tool.KindUnion}
	var notes []string
	for i, variantRaw := range variants {
		variantLoc := fmt.Sprintf("%s/%d", location, i)
		variant, ok := variantRaw.(map[string]any)
		if !ok {
			return nil, nil, &ResolutionError{Location: variantLoc, Reason: "union variant is not an object"}
		}
		resolved, n, err := r.resolveSchema(variant, variantLoc, stack)
		if err != nil {
			return nil, nil, err
		}
		union.Variants = append(union.Variants, resolved)
		notes = append(notes, n...)
	}
	return union, notes, nil
}

func operationDescription(path, method string, op map[string]any) string {
	if desc, ok := op["description"].(string); ok && desc != "" {
		return desc
	}
	if summary, ok := op["summary"].(string); ok && summary != "" {
		return summary
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(method), path)
}

// sanitizeName keeps an explicit operation id usable as a tool name:
// invalid characters become underscores, runs collapse, and a leading digit
// gets a prefix. Case is preserved.
func sanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		if valid {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "tool"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "tool_" + out
	}
	return out
}

// slugPath turns "/users/{id}/posts" into "users_id_posts".
func slugPath(path string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range path {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "root"
	}
	return strings.ToLower(out)
}
