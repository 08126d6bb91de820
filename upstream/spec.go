// Package upstream executes compiled handler specs against the API a
// generated server fronts. One tool call maps to exactly one upstream HTTP
// request: no retries, one bounded timeout, deterministic outcome
// classification.
package upstream

import (
	"fmt"
	"strings"

	"github.com/rfonseca85/mcp-generator/tool"
)

// HandlerSpec is the executable form of a tool: everything the caller needs
// to turn validated arguments into an HTTP request.
type HandlerSpec struct {
	ToolName     string           `json:"tool_name"`
	Method       string           `json:"method"`
	PathTemplate string           `json:"path_template"`
	BaseURL      string           `json:"base_url"`
	Parameters   []tool.Parameter `json:"parameters,omitempty"`
}

// Validate rejects specs that could never produce a well-formed request.
func (s *HandlerSpec) Validate() error {
	if s.ToolName == "" {
		return fmt.Errorf("handler spec has no tool name")
	}
	if s.Method == "" {
		return fmt.Errorf("handler spec %q has no method", s.ToolName)
	}
	if !strings.HasPrefix(s.PathTemplate, "/") {
		return fmt.Errorf("handler spec %q: path template %q must start with /", s.ToolName, s.PathTemplate)
	}
	for _, seg := range templatePlaceholders(s.PathTemplate) {
		if !s.hasPathParameter(seg) {
			return fmt.Errorf("handler spec %q: path placeholder {%s} has no matching parameter", s.ToolName, seg)
		}
	}
	return nil
}

func (s *HandlerSpec) hasPathParameter(name string) bool {
	for _, p := range s.Parameters {
		if p.Name == name && p.Location == tool.InPath {
			return true
		}
	}
	return false
}

// templatePlaceholders returns the {name} placeholders of a path template in
// order of appearance.
func templatePlaceholders(template string) []string {
	var names []string
	for _, seg := range strings.Split(template, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2 {
			names = append(names, seg[1:len(seg)-1])
		}
	}
	return names
}
