// Package enhance rewrites tool descriptions with an LLM so that generated
// servers present richer, agent-friendly docs than the raw API document
// provides. Enhancement is strictly best-effort: any provider failure leaves
// the original tool untouched.
package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/llm"
	"github.com/rfonseca85/mcp-generator/tool"
)

// Enhancer improves a tool definition's human-readable surface. The returned
// definition must keep the original name, method, path, and required flags.
type Enhancer interface {
	EnhanceTool(ctx context.Context, def tool.Definition) (tool.Definition, error)
}

// Noop returns every tool unchanged. Used when no provider is configured.
type Noop struct{}

func (Noop) EnhanceTool(_ context.Context, def tool.Definition) (tool.Definition, error) {
	return def, nil
}

// LLMEnhancer asks a chat provider for a better description of each tool and
// its parameters.
type LLMEnhancer struct {
	provider llm.Provider
	model    string
	budget   *promptBudget
	timeout  time.Duration
	logger   *zap.Logger
}

// NewLLMEnhancer creates an enhancer backed by the given provider. model may
// be empty to use the provider's default.
func NewLLMEnhancer(provider llm.Provider, model string, logger *zap.Logger) *LLMEnhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMEnhancer{
		provider: provider,
		model:    model,
		budget:   newPromptBudget(model),
		timeout:  20 * time.Second,
		logger:   logger.With(zap.String("component", "enhancer")),
	}
}

const systemPrompt = `You improve API tool documentation for AI agents.
Given a tool's name, HTTP method, path, current description, and parameter
schema, respond with a JSON object:
{"description": "<one concise sentence>", "parameters": {"<name>": "<one line>"}}
Keep descriptions factual. Never invent parameters.`

type enhancementReply struct {
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

// EnhanceTool returns a copy of def with improved descriptions. On any
// provider or parse failure the original definition is returned with a nil
// error; enhancement never blocks generation.
func (e *LLMEnhancer) EnhanceTool(ctx context.Context, def tool.Definition) (tool.Definition, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt, err := e.buildPrompt(def)
	if err != nil {
		e.logger.Warn("enhancement skipped", zap.String("tool", def.Name), zap.Error(err))
		return def, nil
	}

	resp, err := e.provider.Completion(ctx, &llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		e.logger.Warn("enhancement failed, keeping original description",
			zap.String("tool", def.Name), zap.Error(err))
		return def, nil
	}

	var reply enhancementReply
	if err := json.Unmarshal([]byte(resp.FirstContent()), &reply); err != nil {
		e.logger.Warn("enhancement reply was not valid JSON",
			zap.String("tool", def.Name), zap.Error(err))
		return def, nil
	}

	return applyEnhancement(def, reply), nil
}

// applyEnhancement overlays the reply onto a copy of def. Only descriptions
// change; names, locations, and required flags stay as resolved.
func applyEnhancement(def tool.Definition, reply enhancementReply) tool.Definition {
	out := def
	if desc := strings.TrimSpace(reply.Description); desc != "" {
		out.Description = desc
	}

	if len(reply.Parameters) == 0 {
		return out
	}
	out.Parameters = make([]tool.Parameter, len(def.Parameters))
	copy(out.Parameters, def.Parameters)
	for i, p := range out.Parameters {
		desc, ok := reply.Parameters[p.Name]
		desc = strings.TrimSpace(desc)
		if !ok || desc == "" || p.Schema == nil {
			continue
		}
		schema := *p.Schema
		schema.Description = desc
		out.Parameters[i].Schema = &schema
	}
	return out
}

func (e *LLMEnhancer) buildPrompt(def tool.Definition) (string, error) {
	schemaJSON, err := def.InputSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("render input schema: %w", err)
	}

	prompt := fmt.Sprintf("Tool: %s\nMethod: %s %s\nCurrent description: %s\nInput schema:\n%s",
		def.Name, def.Method, def.PathTemplate, def.Description, schemaJSON)

	return e.budget.fit(prompt)
}
