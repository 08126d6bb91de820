package compile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rfonseca85/mcp-generator/tool"
	"github.com/rfonseca85/mcp-generator/upstream"
)

// ManifestFile is the manifest's filename inside a generated project.
const ManifestFile = "metadata.json"

// CompiledTool pairs a tool's client-facing definition with its executable
// handler spec.
type CompiledTool struct {
	Definition tool.Definition      `json:"definition"`
	Handler    upstream.HandlerSpec `json:"handler"`
}

// Manifest is everything a generated server needs to start: the protocol
// engine loads it and nothing else.
type Manifest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version"`
	Author      string         `json:"author,omitempty"`
	Protocols   []string       `json:"protocols"`
	BaseURL     string         `json:"base_url"`
	ToolsCount  int            `json:"tools_count"`
	Tools       []CompiledTool `json:"tools"`
}

// Registry builds the tool registry in manifest order.
func (m *Manifest) Registry() (*tool.Registry, error) {
	defs := make([]tool.Definition, 0, len(m.Tools))
	for _, t := range m.Tools {
		defs = append(defs, t.Definition)
	}
	return tool.NewRegistry(defs)
}

// HandlerSpecs returns the executable specs in manifest order.
func (m *Manifest) HandlerSpecs() []upstream.HandlerSpec {
	specs := make([]upstream.HandlerSpec, 0, len(m.Tools))
	for _, t := range m.Tools {
		specs = append(specs, t.Handler)
	}
	return specs
}

// Validate checks internal consistency after a load.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest has no name")
	}
	if m.BaseURL == "" {
		return fmt.Errorf("manifest has no base URL")
	}
	if m.ToolsCount != len(m.Tools) {
		return fmt.Errorf("manifest tools_count %d does not match %d tools", m.ToolsCount, len(m.Tools))
	}
	for i, t := range m.Tools {
		if t.Definition.Name != t.Handler.ToolName {
			return fmt.Errorf("tool %d: definition name %q does not match handler %q",
				i, t.Definition.Name, t.Handler.ToolName)
		}
		if err := t.Handler.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the manifest as indented JSON.
func (m *Manifest) WriteFile(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), append(data, '\n'), 0o644)
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}
