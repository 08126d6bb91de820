package tester

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/llm"
	"github.com/rfonseca85/mcp-generator/mcp"
)

// PlannedCall is one step of a test plan: a tool invocation with concrete
// arguments.
type PlannedCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Planner turns a free-text testing prompt and a server's tool list into
// one ordered call sequence.
type Planner interface {
	Plan(ctx context.Context, prompt string, available []mcp.ToolDescriptor) ([]PlannedCall, error)
}

// LLMPlanner asks a chat provider to design the call sequence. Planning is
// best-effort: provider failures and unparseable replies yield an empty
// plan, never an aborted run.
type LLMPlanner struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewLLMPlanner creates a planner backed by the given provider.
func NewLLMPlanner(provider llm.Provider, model string, logger *zap.Logger) *LLMPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMPlanner{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "test_planner")),
	}
}

const plannerSystemPrompt = `You design test call sequences for MCP tool servers.
Given a testing instruction and the server's tool list with input schemas,
respond with a JSON array of calls that carries out the instruction,
including any setup calls the later steps depend on, in execution order:
[{"name": "<tool>", "arguments": {...}}]
Every required argument must be present and type-correct. Use only listed
tool names. Respond with the JSON array only.`

// Plan asks the provider for the call sequence that carries out the prompt
// against the listed tools. Steps naming tools the server never listed are
// dropped with a warning.
func (p *LLMPlanner) Plan(ctx context.Context, prompt string, available []mcp.ToolDescriptor) ([]PlannedCall, error) {
	toolsJSON, err := json.Marshal(available)
	if err != nil {
		return nil, fmt.Errorf("marshal tool list: %w", err)
	}

	resp, err := p.provider.Completion(ctx, &llm.ChatRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: plannerSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Instruction: %s\nAvailable tools:\n%s", prompt, toolsJSON)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		p.logger.Warn("planning failed, returning empty plan", zap.Error(err))
		return nil, nil
	}

	plan, err := parsePlan(resp.FirstContent())
	if err != nil {
		p.logger.Warn("plan reply was not a valid call array", zap.Error(err))
		return nil, nil
	}

	known := make(map[string]struct{}, len(available))
	for _, t := range available {
		known[t.Name] = struct{}{}
	}
	valid := plan[:0]
	for _, call := range plan {
		if _, ok := known[call.Name]; !ok {
			p.logger.Warn("plan references unknown tool, dropping step",
				zap.String("step", call.Name))
			continue
		}
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
		valid = append(valid, call)
	}
	return valid, nil
}

// parsePlan tolerates the array being wrapped in a code fence or an object.
func parsePlan(content string) ([]PlannedCall, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var plan []PlannedCall
	if err := json.Unmarshal([]byte(content), &plan); err == nil {
		return plan, nil
	}

	var wrapped struct {
		Calls []PlannedCall `json:"calls"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && wrapped.Calls != nil {
		return wrapped.Calls, nil
	}
	return nil, fmt.Errorf("content is neither a call array nor a calls object")
}
