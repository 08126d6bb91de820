// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器
type Collector struct {
	// HTTP 指标（生成服务 API）
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// JSON-RPC 指标（MCP 引擎）
	rpcRequestsTotal   *prometheus.CounterVec
	rpcRequestDuration *prometheus.HistogramVec
	sessionsActive     prometheus.Gauge

	// 工具调用指标
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	// 生成与测试指标
	generationsTotal *prometheus.CounterVec
	testRunsTotal    *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器（默认注册表）。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWith 在指定注册表上创建指标收集器，测试用。
func NewCollectorWith(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.rpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of JSON-RPC requests",
		},
		[]string{"transport", "rpc_method", "status"},
	)

	c.rpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "JSON-RPC request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport", "rpc_method"},
	)

	c.sessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open protocol sessions",
		},
	)

	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by outcome",
		},
		[]string{"tool", "outcome"},
	)

	c.toolCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration including the upstream request",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of server generation runs",
		},
		[]string{"status"},
	)

	c.testRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_runs_total",
			Help:      "Total number of tester orchestrations",
		},
		[]string{"status"},
	)

	return c
}

// RecordHTTPRequest 记录一次 API 请求。
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRPCRequest 记录一次 JSON-RPC 请求。
func (c *Collector) RecordRPCRequest(transport, method, status string, duration time.Duration) {
	c.rpcRequestsTotal.WithLabelValues(transport, method, status).Inc()
	c.rpcRequestDuration.WithLabelValues(transport, method).Observe(duration.Seconds())
}

// SessionOpened 增加活跃会话计数。
func (c *Collector) SessionOpened() { c.sessionsActive.Inc() }

// SessionClosed 减少活跃会话计数。
func (c *Collector) SessionClosed() { c.sessionsActive.Dec() }

// RecordToolCall 记录一次工具调用及其上游结果分类。
func (c *Collector) RecordToolCall(toolName, outcome string, duration time.Duration) {
	c.toolCallsTotal.WithLabelValues(toolName, outcome).Inc()
	c.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordGeneration 记录一次生成运行。
func (c *Collector) RecordGeneration(status string) {
	c.generationsTotal.WithLabelValues(status).Inc()
}

// RecordTestRun 记录一次测试编排。
func (c *Collector) RecordTestRun(status string) {
	c.testRunsTotal.WithLabelValues(status).Inc()
}
