package enhance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/llm"
	"github.com/rfonseca85/mcp-generator/tool"
)

type stubProvider struct {
	content string
	err     error
	lastReq *llm.ChatRequest
}

func (s *stubProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: s.content}}},
	}, nil
}

func (s *stubProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return "stub" }

func sampleTool() tool.Definition {
	return tool.Definition{
		Name:         "listPets",
		Description:  "GET /pets",
		Method:       "GET",
		PathTemplate: "/pets",
		Parameters: []tool.Parameter{
			{Name: "limit", Location: tool.InQuery, Schema: &tool.Schema{Kind: tool.KindInteger}},
		},
	}
}

func TestEnhanceToolAppliesReply(t *testing.T) {
	stub := &stubProvider{content: `{"description": "List all pets in the store.", "parameters": {"limit": "Maximum number of pets to return."}}`}
	e := NewLLMEnhancer(stub, "gpt-4o-mini", zap.NewNop())

	out, err := e.EnhanceTool(context.Background(), sampleTool())
	require.NoError(t, err)

	assert.Equal(t, "List all pets in the store.", out.Description)
	require.Len(t, out.Parameters, 1)
	assert.Equal(t, "Maximum number of pets to return.", out.Parameters[0].Schema.Description)
	// Structural fields never change.
	assert.Equal(t, "listPets", out.Name)
	assert.Equal(t, tool.InQuery, out.Parameters[0].Location)
	require.NotNil(t, stub.lastReq)
	assert.True(t, stub.lastReq.JSONOnly)
}

func TestEnhanceToolProviderErrorFallsBack(t *testing.T) {
	stub := &stubProvider{err: errors.New("rate limited")}
	e := NewLLMEnhancer(stub, "gpt-4o-mini", zap.NewNop())

	original := sampleTool()
	out, err := e.EnhanceTool(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestEnhanceToolBadJSONFallsBack(t *testing.T) {
	stub := &stubProvider{content: "Sure! Here is a better description: ..."}
	e := NewLLMEnhancer(stub, "gpt-4o-mini", zap.NewNop())

	original := sampleTool()
	out, err := e.EnhanceTool(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestEnhanceToolUnknownParameterIgnored(t *testing.T) {
	stub := &stubProvider{content: `{"description": "Better.", "parameters": {"bogus": "made up"}}`}
	e := NewLLMEnhancer(stub, "gpt-4o-mini", zap.NewNop())

	out, err := e.EnhanceTool(context.Background(), sampleTool())
	require.NoError(t, err)
	assert.Equal(t, "Better.", out.Description)
	require.Len(t, out.Parameters, 1)
	// The invented parameter must not appear, and the real one keeps its schema.
	assert.Equal(t, "limit", out.Parameters[0].Name)
	assert.Empty(t, out.Parameters[0].Schema.Description)
}

func TestNoopEnhancer(t *testing.T) {
	original := sampleTool()
	out, err := Noop{}.EnhanceTool(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, original, out)
}
