// Copyright (c) mcp-generator Authors.
// Licensed under the MIT License.

/*
Package main 提供 mcp-generator 服务端程序入口。

# 概述

cmd/mcp-generator 是生成器的可执行入口，提供 HTTP API 服务、
命令行生成与测试、健康检查和版本查询等子命令。程序支持 YAML
配置文件加载、结构化日志（zap）与 Prometheus 指标采集。

# 核心类型

  - Server           — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware       — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 子命令

  - serve     启动生成器 API 服务
  - generate  将 OpenAPI 文档编译为 MCP 服务器项目
  - test      对运行中的生成服务器执行一轮 LLM 规划测试
  - version   显示版本信息
  - health    探测服务健康状态
*/
package main
