// Package compile turns resolved tool definitions into a runnable artifact:
// handler specs for the upstream caller, a manifest that is the generated
// server's entire startup contract, and the project file tree around it.
package compile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/enhance"
	"github.com/rfonseca85/mcp-generator/openapi"
	"github.com/rfonseca85/mcp-generator/tool"
	"github.com/rfonseca85/mcp-generator/upstream"
)

// CompilationError reports why a document could not be compiled into a
// server, naming the offending tool when there is one.
type CompilationError struct {
	Tool   string
	Reason string
}

func (e *CompilationError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("compilation failed for tool %q: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("compilation failed: %s", e.Reason)
}

// Options configure one compilation run.
type Options struct {
	// Name of the generated server. Defaults to the document title.
	Name string
	// BaseURL overrides the document's first server URL.
	BaseURL string
	// Author recorded in the manifest.
	Author string
	// Protocols the generated server will expose. Nil defaults to all three;
	// an explicitly empty slice is a compilation error.
	Protocols []string
	// Tools restricts compilation to the named tools. Empty means all.
	Tools []string
	// Enhancer rewrites tool descriptions; nil disables enhancement.
	Enhancer enhance.Enhancer
}

var knownProtocols = map[string]bool{"stdio": true, "http": true, "sse": true}

// Compiler builds manifests from resolved documents.
type Compiler struct {
	logger *zap.Logger
}

// NewCompiler creates a compiler.
func NewCompiler(logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{logger: logger.With(zap.String("component", "tool_compiler"))}
}

// Compile produces the manifest for a document's resolved tools. Tool order
// follows the resolver's deterministic order; name collisions get numeric
// suffixes in first-occurrence order, so the same document always compiles
// to the same manifest.
func (c *Compiler) Compile(ctx context.Context, doc *openapi.Document, defs []tool.Definition, opts Options) (*Manifest, error) {
	if len(defs) == 0 {
		return nil, &CompilationError{Reason: "document resolved to no tools"}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = doc.BaseURL()
	}
	if baseURL == "" {
		return nil, &CompilationError{Reason: "no base URL: document has no servers and none was provided"}
	}

	name := opts.Name
	if name == "" {
		name = doc.Info.Title
	}
	if name == "" {
		name = "generated-mcp-server"
	}

	// A nil slice means the caller left the choice to us; an empty one means
	// every transport was deselected, which leaves nothing to serve.
	protocols := opts.Protocols
	if protocols == nil {
		protocols = []string{"stdio", "http", "sse"}
	}
	if len(protocols) == 0 {
		return nil, &CompilationError{Reason: "no transport selected"}
	}
	for _, p := range protocols {
		if !knownProtocols[p] {
			return nil, &CompilationError{Reason: fmt.Sprintf("unknown protocol %q", p)}
		}
	}

	if len(opts.Tools) > 0 {
		defs = filterTools(defs, opts.Tools)
		if len(defs) == 0 {
			return nil, &CompilationError{Reason: "tool filter matched no tools"}
		}
	}

	enhancer := opts.Enhancer
	if enhancer == nil {
		enhancer = enhance.Noop{}
	}

	deduped := dedupeNames(defs)

	manifest := &Manifest{
		Name:        name,
		Description: doc.Info.Description,
		Version:     doc.Info.Version,
		Author:      opts.Author,
		Protocols:   protocols,
		BaseURL:     baseURL,
		ToolsCount:  len(deduped),
	}

	for _, def := range deduped {
		if err := def.Validate(); err != nil {
			return nil, &CompilationError{Tool: def.Name, Reason: err.Error()}
		}

		enhanced, err := enhancer.EnhanceTool(ctx, def)
		if err != nil {
			// Enhancement is best-effort by contract; a hard error here is
			// an enhancer bug, log and keep the original.
			c.logger.Warn("enhancer returned error, keeping original tool",
				zap.String("tool", def.Name), zap.Error(err))
			enhanced = def
		}

		spec := upstream.HandlerSpec{
			ToolName:     enhanced.Name,
			Method:       enhanced.Method,
			PathTemplate: enhanced.PathTemplate,
			BaseURL:      baseURL,
			Parameters:   enhanced.Parameters,
		}
		if err := spec.Validate(); err != nil {
			return nil, &CompilationError{Tool: enhanced.Name, Reason: err.Error()}
		}

		manifest.Tools = append(manifest.Tools, CompiledTool{
			Definition: enhanced,
			Handler:    spec,
		})
	}

	c.logger.Info("compiled manifest",
		zap.String("name", manifest.Name),
		zap.String("base_url", baseURL),
		zap.Int("tools", manifest.ToolsCount),
	)
	return manifest, nil
}

// filterTools keeps only the definitions whose name appears in names,
// preserving resolution order.
func filterTools(defs []tool.Definition, names []string) []tool.Definition {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []tool.Definition
	for _, def := range defs {
		if want[def.Name] {
			out = append(out, def)
		}
	}
	return out
}

// dedupeNames applies numeric suffixes to colliding tool names. The first
// occurrence keeps the bare name, later ones get _2, _3, ... in resolution
// order.
func dedupeNames(defs []tool.Definition) []tool.Definition {
	out := make([]tool.Definition, len(defs))
	copy(out, defs)

	seen := make(map[string]int, len(out))
	for i := range out {
		base := out[i].Name
		count := seen[base]
		seen[base] = count + 1
		if count == 0 {
			continue
		}
		candidate := fmt.Sprintf("%s_%d", base, count+1)
		// A document may already declare the suffixed name; keep bumping.
		for seen[candidate] > 0 {
			count++
			candidate = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[candidate] = 1
		out[i].Name = candidate
	}
	return out
}
