// =============================================================================
// mcp-generator 主入口
// =============================================================================
// OpenAPI → MCP 服务器生成器，包含 HTTP 服务、健康检查、Prometheus 指标
//
// 使用方法:
//
//	mcp-generator serve                        # 启动生成器服务
//	mcp-generator serve --config config.yaml   # 指定配置文件
//	mcp-generator generate --source spec.json  # 命令行生成
//	mcp-generator test --servers http://... --prompt "..."  # 测试生成的服务器
//	mcp-generator version                      # 显示版本信息
//	mcp-generator health                       # 健康检查
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rfonseca85/mcp-generator/compile"
	"github.com/rfonseca85/mcp-generator/config"
	"github.com/rfonseca85/mcp-generator/enhance"
	"github.com/rfonseca85/mcp-generator/llm"
	"github.com/rfonseca85/mcp-generator/llm/openaicompat"
	"github.com/rfonseca85/mcp-generator/openapi"
	"github.com/rfonseca85/mcp-generator/tester"
)

// 版本信息（构建时注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "generate":
		runGenerate(os.Args[2:])
	case "test":
		runTest(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting mcp-generator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	server := NewServer(cfg, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	server.WaitForShutdown()

	logger.Info("mcp-generator stopped")
}

// =============================================================================
// 🏗️ generate 命令
// =============================================================================

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	source := fs.String("source", "", "OpenAPI document URL or file path (required)")
	out := fs.String("out", "", "Output directory (defaults to config generate.output_dir)")
	name := fs.String("name", "", "Server name override")
	baseURL := fs.String("base-url", "", "Upstream base URL override")
	toolFilter := fs.String("tools", "", "Comma-separated tool names to include (default all)")
	enhanceFlag := fs.Bool("enhance", false, "Rewrite tool descriptions with the configured LLM")
	fs.Parse(args)

	if *source == "" {
		fmt.Fprintln(os.Stderr, "generate: --source is required")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx := context.Background()

	doc, err := openapi.NewLoader(cfg.Generate.LoadTimeout, logger).Load(ctx, *source)
	if err != nil {
		logger.Fatal("Failed to load document", zap.Error(err))
	}

	defs, err := openapi.NewResolver(doc, logger).Resolve()
	if err != nil {
		logger.Fatal("Failed to resolve document", zap.Error(err))
	}

	var toolEnhancer enhance.Enhancer = enhance.Noop{}
	if *enhanceFlag {
		provider, err := newProvider(cfg.LLM, logger)
		if err != nil {
			logger.Fatal("Failed to create LLM provider", zap.Error(err))
		}
		toolEnhancer = enhance.NewLLMEnhancer(provider, cfg.LLM.Model, logger)
	}

	manifest, err := compile.NewCompiler(logger).Compile(ctx, doc, defs, compile.Options{
		Name:      *name,
		BaseURL:   *baseURL,
		Author:    cfg.Generate.Author,
		Protocols: cfg.Generate.Protocols,
		Tools:     splitList(*toolFilter),
		Enhancer:  toolEnhancer,
	})
	if err != nil {
		logger.Fatal("Failed to compile", zap.Error(err))
	}

	dir := *out
	if dir == "" {
		dir = cfg.Generate.OutputDir
	}
	if err := compile.NewProjectWriter(logger).Write(dir, manifest); err != nil {
		logger.Fatal("Failed to write project", zap.Error(err))
	}

	fmt.Printf("Generated %s (%d tools) in %s\n", manifest.Name, manifest.ToolsCount, dir)
}

// =============================================================================
// 🧪 test 命令
// =============================================================================

func runTest(args []string) {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	servers := fs.String("servers", "", "Comma-separated generated server URLs (required)")
	prompt := fs.String("prompt", "", "Free-text testing instruction (required)")
	fs.Parse(args)

	endpoints := splitList(*servers)
	if len(endpoints) == 0 {
		fmt.Fprintln(os.Stderr, "test: --servers is required")
		os.Exit(1)
	}
	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "test: --prompt is required")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	provider, err := newProvider(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM provider", zap.Error(err))
	}

	planner := tester.NewLLMPlanner(provider, cfg.LLM.Model, logger)
	orchestrator := tester.NewOrchestrator(planner, logger,
		tester.WithConcurrency(cfg.Tester.Concurrency),
		tester.WithCallTimeout(cfg.Tester.CallTimeout),
	)

	report, err := orchestrator.Run(context.Background(), endpoints, *prompt)
	if err != nil {
		logger.Fatal("Test run failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal("Failed to render report", zap.Error(err))
	}
	fmt.Println(string(out))

	if report.Failed > 0 {
		os.Exit(1)
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 🔧 配置与日志初始化
// =============================================================================

func loadConfig(configPath string) *config.Config {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// splitList 切分逗号分隔的列表，空串返回 nil
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// newProvider 根据配置构建 OpenAI 兼容的 LLM Provider
func newProvider(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is not configured")
	}
	return openaicompat.New(openaicompat.Config{
		ProviderName: cfg.Provider,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger), nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("mcp-generator %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`mcp-generator - OpenAPI to MCP server generator

Usage:
  mcp-generator <command> [options]

Commands:
  serve     Start the generator API service
  generate  Compile an OpenAPI document into an MCP server project
  test      Run an LLM-planned test pass against a generated server
  version   Show version information
  health    Check service health
  help      Show this help message

Options for 'serve':
  --config <path>     Path to configuration file (YAML)

Options for 'generate':
  --source <url|path> OpenAPI document to compile (required)
  --out <dir>         Output directory
  --name <name>       Server name override
  --base-url <url>    Upstream base URL override
  --tools <a,b,c>     Comma-separated tool names to include
  --enhance           Rewrite tool descriptions with the configured LLM

Options for 'test':
  --servers <a,b>     Comma-separated generated server URLs (required)
  --prompt <text>     Free-text testing instruction (required)

Examples:
  mcp-generator serve --config /etc/mcp-generator/config.yaml
  mcp-generator generate --source ./petstore.json --out ./petstore-server
  mcp-generator test --servers http://localhost:9000 --prompt "create a pet then fetch it"
  mcp-generator health --addr http://localhost:8080`)
}
