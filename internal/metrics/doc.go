// 版权所有 2026 mcp-generator Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖生成服务 API、
MCP JSON-RPC 引擎、工具调用与测试编排四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
工厂注册机制，支持注入独立 Registry 以便测试。所有指标按 namespace
隔离，支持多维度 label 分组。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组。
  - JSON-RPC 指标：请求总数、耗时、活跃会话 Gauge，
    按 transport/rpc_method 分组。
  - 工具调用指标：调用总数（按 outcome 分类）与端到端耗时。
  - 生成与测试指标：生成运行与测试编排计数，按 status 分组。
*/
package metrics
