// =============================================================================
// 📦 mcp-generator 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Generate: DefaultGenerateConfig(),
		Upstream: DefaultUpstreamConfig(),
		LLM:      DefaultLLMConfig(),
		Tester:   DefaultTesterConfig(),
		Log:      DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultGenerateConfig 返回默认生成配置
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		OutputDir:   "generated",
		Protocols:   []string{"stdio", "http", "sse"},
		Author:      "mcp-generator",
		LoadTimeout: 30 * time.Second,
	}
}

// DefaultUpstreamConfig 返回默认上游调用配置
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		Timeout:      30 * time.Second,
		MaxBodyBytes: 4 << 20,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Timeout:  30 * time.Second,
	}
}

// DefaultTesterConfig 返回默认测试配置
func DefaultTesterConfig() TesterConfig {
	return TesterConfig{
		Concurrency: 4,
		CallTimeout: 30 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}
