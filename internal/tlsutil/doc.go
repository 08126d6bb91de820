// Package tlsutil 提供集中式 TLS 配置，
// 为生成器的所有出站 HTTP 客户端（文档加载、LLM、上游 API、测试客户端）
// 提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
