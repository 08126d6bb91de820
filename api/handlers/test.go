package handlers

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/internal/metrics"
	"github.com/rfonseca85/mcp-generator/tester"
)

// =============================================================================
// 🧪 测试 Handler
// =============================================================================

// TestRequest 测试请求
type TestRequest struct {
	// ServerURLs 是待测试的生成服务器地址，至少一个
	ServerURLs []string `json:"server_urls"`
	// Prompt 是驱动测试规划的自由文本指令
	Prompt string `json:"prompt"`
	// Concurrency 限制并发测试的端点数（可选）
	Concurrency int `json:"concurrency,omitempty"`
}

// TestHandler 对运行中的生成服务器执行一轮 LLM 规划的测试
type TestHandler struct {
	planner tester.Planner
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewTestHandler 创建测试处理器。planner 为 nil 时端点返回 503。
func NewTestHandler(planner tester.Planner, collector *metrics.Collector, logger *zap.Logger) *TestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestHandler{
		planner: planner,
		metrics: collector,
		logger:  logger.With(zap.String("component", "test_handler")),
	}
}

// HandleTest 处理 POST /api/v1/test
func (h *TestHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, h.logger) {
		return
	}
	if h.planner == nil {
		WriteError(w, http.StatusServiceUnavailable, CodeInternalError,
			"LLM provider not configured, test planning unavailable", h.logger)
		return
	}

	var req TestRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.ServerURLs) == 0 {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "server_urls is required", h.logger)
		return
	}
	for _, serverURL := range req.ServerURLs {
		if u, err := url.Parse(serverURL); err != nil || u.Scheme == "" || u.Host == "" {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest,
				"server_urls entries must be absolute URLs", h.logger)
			return
		}
	}
	if req.Prompt == "" {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "prompt is required", h.logger)
		return
	}

	var opts []tester.OrchestratorOption
	if req.Concurrency > 0 {
		opts = append(opts, tester.WithConcurrency(req.Concurrency))
	}

	orchestrator := tester.NewOrchestrator(h.planner, h.logger, opts...)
	report, err := orchestrator.Run(r.Context(), req.ServerURLs, req.Prompt)
	if err != nil {
		h.recordTestRun("failure")
		WriteError(w, http.StatusBadGateway, CodeTestFailed, err.Error(), h.logger)
		return
	}

	status := "success"
	if report.Failed > 0 {
		status = "failure"
	}
	h.recordTestRun(status)

	WriteSuccess(w, report)
}

func (h *TestHandler) recordTestRun(status string) {
	if h.metrics != nil {
		h.metrics.RecordTestRun(status)
	}
}
