package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/compile"
	"github.com/rfonseca85/mcp-generator/enhance"
	"github.com/rfonseca85/mcp-generator/internal/metrics"
	"github.com/rfonseca85/mcp-generator/openapi"
)

// =============================================================================
// 🏗️ 生成 Handler
// =============================================================================

// GenerateRequest 生成请求
type GenerateRequest struct {
	// Source 是 OpenAPI 文档的 URL 或本地路径（与 Document 二选一）
	Source string `json:"source,omitempty"`
	// Document 是内联的 OpenAPI 文档（JSON 或 YAML）
	Document string `json:"document,omitempty"`

	Name      string   `json:"name,omitempty"`
	BaseURL   string   `json:"base_url,omitempty"`
	Author    string   `json:"author,omitempty"`
	Protocols []string `json:"protocols,omitempty"`
	// Tools restricts generation to the named tools
	Tools []string `json:"tools,omitempty"`

	// Write 为 true 时将完整项目写入输出目录
	Write bool `json:"write,omitempty"`
	// Enhance 为 true 时使用 LLM 改写工具描述
	Enhance bool `json:"enhance,omitempty"`
}

// GenerateResponse 生成响应
type GenerateResponse struct {
	Manifest  *compile.Manifest `json:"manifest"`
	OutputDir string            `json:"output_dir,omitempty"`
	Elapsed   string            `json:"elapsed"`
}

// GenerateHandler 将 OpenAPI 文档编译为 MCP 服务器项目
type GenerateHandler struct {
	loader    *openapi.Loader
	enhancer  enhance.Enhancer
	writer    *compile.ProjectWriter
	compiler  *compile.Compiler
	metrics   *metrics.Collector
	logger    *zap.Logger
	outputDir string
	author    string
}

// GenerateOptions 配置 GenerateHandler
type GenerateOptions struct {
	LoadTimeout time.Duration
	OutputDir   string
	Author      string
	// Enhancer 处理 enhance=true 的请求，nil 时退化为 Noop
	Enhancer enhance.Enhancer
}

// NewGenerateHandler 创建生成处理器
func NewGenerateHandler(opts GenerateOptions, collector *metrics.Collector, logger *zap.Logger) *GenerateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	enhancer := opts.Enhancer
	if enhancer == nil {
		enhancer = enhance.Noop{}
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "generated"
	}
	return &GenerateHandler{
		loader:    openapi.NewLoader(opts.LoadTimeout, logger),
		enhancer:  enhancer,
		writer:    compile.NewProjectWriter(logger),
		compiler:  compile.NewCompiler(logger),
		metrics:   collector,
		logger:    logger.With(zap.String("component", "generate_handler")),
		outputDir: outputDir,
		author:    opts.Author,
	}
}

// HandleGenerate 处理 POST /api/v1/generate
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, h.logger) {
		return
	}

	var req GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if (req.Source == "") == (req.Document == "") {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest,
			"exactly one of source or document must be provided", h.logger)
		return
	}

	start := time.Now()

	// 1. 加载文档
	var (
		doc *openapi.Document
		err error
	)
	if req.Document != "" {
		doc, err = openapi.Parse([]byte(req.Document))
	} else {
		doc, err = h.loader.Load(r.Context(), req.Source)
	}
	if err != nil {
		h.recordGeneration("failure")
		WriteError(w, http.StatusBadRequest, CodeLoadFailed, err.Error(), h.logger)
		return
	}

	// 2. 解析为工具定义
	defs, err := openapi.NewResolver(doc, h.logger).Resolve()
	if err != nil {
		h.recordGeneration("failure")
		WriteError(w, http.StatusUnprocessableEntity, CodeResolveFailed, err.Error(), h.logger)
		return
	}

	// 3. 编译为 manifest
	enhancer := enhance.Enhancer(enhance.Noop{})
	if req.Enhance {
		enhancer = h.enhancer
	}
	manifest, err := h.compiler.Compile(r.Context(), doc, defs, compile.Options{
		Name:      req.Name,
		BaseURL:   req.BaseURL,
		Author:    h.authorFor(req),
		Protocols: req.Protocols,
		Tools:     req.Tools,
		Enhancer:  enhancer,
	})
	if err != nil {
		h.recordGeneration("failure")
		WriteError(w, http.StatusUnprocessableEntity, CodeCompileFailed, err.Error(), h.logger)
		return
	}

	// 4. 可选：写出完整项目
	resp := GenerateResponse{Manifest: manifest}
	if req.Write {
		// filepath.Base 防止 manifest 名称带路径段逃出输出目录
		dir := filepath.Join(h.outputDir, filepath.Base(projectDirName(manifest.Name)))
		if err := h.writer.Write(dir, manifest); err != nil {
			h.recordGeneration("failure")
			WriteError(w, http.StatusInternalServerError, CodeWriteFailed, err.Error(), h.logger)
			return
		}
		resp.OutputDir = dir
	}

	resp.Elapsed = time.Since(start).String()
	h.recordGeneration("success")

	h.logger.Info("generation finished",
		zap.String("server", manifest.Name),
		zap.Int("tools", manifest.ToolsCount),
		zap.Bool("written", req.Write),
	)
	WriteSuccess(w, resp)
}

func (h *GenerateHandler) authorFor(req GenerateRequest) string {
	if req.Author != "" {
		return req.Author
	}
	return h.author
}

func (h *GenerateHandler) recordGeneration(status string) {
	if h.metrics != nil {
		h.metrics.RecordGeneration(status)
	}
}

// projectDirName 将服务器名称转为安全的目录名
func projectDirName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "generated-mcp-server"
	}
	return out
}
