package compile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"go.uber.org/zap"
)

// ProjectWriter renders the generated server's file tree around a manifest.
// The tree is a self-contained Go project whose main imports this module's
// runtime packages and starts from metadata.json.
type ProjectWriter struct {
	logger *zap.Logger
}

// NewProjectWriter creates a project writer.
func NewProjectWriter(logger *zap.Logger) *ProjectWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectWriter{logger: logger.With(zap.String("component", "project_writer"))}
}

type templateData struct {
	*Manifest
	ModulePath string
}

// Write renders the project into dir, creating it if needed. Rendering the
// same manifest twice produces byte-identical trees.
func (w *ProjectWriter) Write(dir string, m *Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	if err := m.WriteFile(dir); err != nil {
		return err
	}

	data := templateData{Manifest: m, ModulePath: modulePath(m.Name)}
	for name, tmpl := range projectTemplates {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		mode := os.FileMode(0o644)
		if name == "run.sh" {
			mode = 0o755
		}
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), mode); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	w.logger.Info("wrote generated project",
		zap.String("dir", dir),
		zap.String("name", m.Name),
		zap.Int("tools", m.ToolsCount),
	)
	return nil
}

// modulePath derives a usable Go module path from the server name.
func modulePath(name string) string {
	slug := make([]rune, 0, len(name))
	lastDash := true
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			slug = append(slug, r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			slug = append(slug, r+('a'-'A'))
			lastDash = false
		default:
			if !lastDash {
				slug = append(slug, '-')
				lastDash = true
			}
		}
	}
	for len(slug) > 0 && slug[len(slug)-1] == '-' {
		slug = slug[:len(slug)-1]
	}
	if len(slug) == 0 {
		return "generated-mcp-server"
	}
	return string(slug)
}

var projectTemplates = map[string]*template.Template{
	"main.go":    template.Must(template.New("main.go").Parse(mainTemplate)),
	"go.mod":     template.Must(template.New("go.mod").Parse(goModTemplate)),
	"README.md":  template.Must(template.New("README.md").Parse(readmeTemplate)),
	"Dockerfile": template.Must(template.New("Dockerfile").Parse(dockerfileTemplate)),
	"run.sh":     template.Must(template.New("run.sh").Parse(runShTemplate)),
	"prompt.txt": template.Must(template.New("prompt.txt").Parse(promptTemplate)),
}

const mainTemplate = `package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/compile"
	"github.com/rfonseca85/mcp-generator/mcp"
	"github.com/rfonseca85/mcp-generator/upstream"
)

func main() {
	transport := flag.String("transport", "stdio", "transport: stdio, http, or sse")
	addr := flag.String("addr", ":8080", "listen address for http and sse transports")
	manifestPath := flag.String("manifest", "metadata.json", "path to the manifest")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	manifest, err := compile.LoadManifest(*manifestPath)
	if err != nil {
		logger.Fatal("load manifest", zap.Error(err))
	}

	registry, err := manifest.Registry()
	if err != nil {
		logger.Fatal("build registry", zap.Error(err))
	}

	caller := upstream.NewCaller(logger)
	executor, err := upstream.NewExecutor(caller, manifest.HandlerSpecs())
	if err != nil {
		logger.Fatal("build executor", zap.Error(err))
	}

	engine := mcp.NewEngine(
		mcp.ServerInfo{Name: manifest.Name, Version: manifest.Version},
		registry, executor, logger, nil,
	)

	switch *transport {
	case "stdio":
		if err := mcp.NewStdioServer(engine, logger).Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
			logger.Fatal("stdio transport", zap.Error(err))
		}
	case "http", "sse":
		handler := mcp.NewHTTPHandler(engine, logger)
		logger.Info("listening", zap.String("addr", *addr), zap.String("transport", *transport))
		if err := http.ListenAndServe(*addr, handler); err != nil {
			logger.Fatal("http transport", zap.Error(err))
		}
	default:
		logger.Fatal("unknown transport", zap.String("transport", *transport))
	}
}
`

const goModTemplate = `module {{.ModulePath}}

go 1.24.0

require (
	github.com/rfonseca85/mcp-generator v0.0.0
	go.uber.org/zap v1.27.1
)
`

const readmeTemplate = `# {{.Name}}

{{if .Description}}{{.Description}}

{{end}}MCP tool server for {{.BaseURL}} with {{.ToolsCount}} tools,
speaking {{range $i, $p := .Protocols}}{{if $i}}, {{end}}{{$p}}{{end}}.

## Run

` + "```sh" + `
./run.sh            # stdio (default)
./run.sh http :8080 # http + sse
` + "```" + `

## Tools
{{range .Tools}}
- ` + "`{{.Definition.Name}}`" + ` — {{.Definition.Method}} {{.Definition.PathTemplate}}{{if .Definition.Description}}: {{.Definition.Description}}{{end}}{{end}}
`

const dockerfileTemplate = `FROM golang:1.24-alpine AS build
WORKDIR /src
COPY . .
RUN go build -o /out/server .

FROM alpine:3.20
RUN adduser -D -u 10001 mcp
USER mcp
WORKDIR /app
COPY --from=build /out/server .
COPY metadata.json .
ENTRYPOINT ["./server"]
CMD ["-transport", "http", "-addr", ":8080"]
`

const runShTemplate = `#!/bin/sh
set -e
TRANSPORT="${1:-stdio}"
ADDR="${2:-:8080}"
exec go run . -transport "$TRANSPORT" -addr "$ADDR"
`

const promptTemplate = `You are connected to the {{.Name}} MCP server ({{.ToolsCount}} tools
for {{.BaseURL}}). Call list_tools to see what is available, then call
tools by name with JSON arguments matching each tool's input schema.
Required fields are enforced; errors name the offending arguments.
{{range .Tools}}
{{.Definition.Name}}: {{.Definition.Method}} {{.Definition.PathTemplate}}{{end}}
`
