// Package openapi parses API description documents and resolves them into
// ordered, fully-resolved tool definitions.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rfonseca85/mcp-generator/internal/tlsutil"
)

// Info carries the API metadata block.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Server is one declared API server.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Document is a parsed API description. Schema resolution works on the raw
// tree so that reference pointers can target any location in the document.
type Document struct {
	Info    Info
	Servers []Server

	raw map[string]any
}

// Parse reads a JSON or YAML API description. YAML input is normalized to
// the JSON object model first so that downstream handling is uniform.
func Parse(data []byte) (*Document, error) {
	raw, err := parseRaw(data)
	if err != nil {
		return nil, err
	}

	doc := &Document{raw: raw}

	if infoRaw, ok := raw["info"].(map[string]any); ok {
		infoJSON, _ := json.Marshal(infoRaw)
		_ = json.Unmarshal(infoJSON, &doc.Info)
	}
	if serversRaw, ok := raw["servers"].([]any); ok {
		serversJSON, _ := json.Marshal(serversRaw)
		_ = json.Unmarshal(serversJSON, &doc.Servers)
	}

	return doc, nil
}

func parseRaw(data []byte) (map[string]any, error) {
	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse JSON document: %w", err)
		}
		return raw, nil
	}

	// yaml.v3 decodes mappings as map[string]any, so the tree is directly
	// compatible with the JSON object model after number normalization.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML document: %w", err)
	}
	return raw, nil
}

// Loader fetches API descriptions from a file path or URL and parses them
// into Documents.
type Loader struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLoader creates a document loader. A zero timeout defaults to 30s.
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		httpClient: tlsutil.SecureHTTPClient(timeout),
		logger:     logger.With(zap.String("component", "openapi_loader")),
	}
}

// Load reads and parses the document at source, which may be an http(s) URL
// or a local file path.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = l.fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", source, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	l.logger.Info("loaded API description",
		zap.String("source", source),
		zap.String("title", doc.Info.Title),
		zap.String("version", doc.Info.Version),
		zap.Int("paths", doc.PathCount()),
	)

	return doc, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// BaseURL returns the first declared server URL, or empty when the document
// declares none.
func (d *Document) BaseURL() string {
	if len(d.Servers) > 0 {
		return d.Servers[0].URL
	}
	return ""
}

// PathCount returns the number of declared paths.
func (d *Document) PathCount() int {
	paths, ok := d.raw["paths"].(map[string]any)
	if !ok {
		return 0
	}
	return len(paths)
}

// lookupPointer walks a "#/"-rooted reference pointer through the raw tree.
// Returns the referenced node, or false when any segment is missing.
func (d *Document) lookupPointer(ref string) (map[string]any, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	current := any(d.raw)
	for _, part := range strings.Split(ref[2:], "/") {
		// JSON pointer escaping per RFC 6901.
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	result, ok := current.(map[string]any)
	return result, ok
}
