package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/internal/metrics"
	"github.com/rfonseca85/mcp-generator/tool"
	"github.com/rfonseca85/mcp-generator/upstream"
)

// Executor runs one tool call against the upstream API. Implementations
// classify every attempted call through upstream.Result; a non-nil error
// means the call could not even be attempted.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (*upstream.Result, error)
}

// Engine dispatches JSON-RPC messages for one generated server. It is
// shared by every transport; all per-connection state lives in Session, so
// a single Engine serves any number of isolated clients.
type Engine struct {
	info     ServerInfo
	registry *tool.Registry
	executor Executor
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewEngine creates an engine serving the registry's tools through the
// executor. metrics may be nil.
func NewEngine(info ServerInfo, registry *tool.Registry, executor Executor, logger *zap.Logger, collector *metrics.Collector) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		info:     info,
		registry: registry,
		executor: executor,
		logger:   logger.With(zap.String("component", "protocol_engine")),
		metrics:  collector,
	}
}

// HandleRaw decodes one wire message, dispatches it against the session,
// and returns the encoded response. A nil return means no response is owed
// (notifications).
func (e *Engine) HandleRaw(ctx context.Context, sess *Session, transport string, data []byte) []byte {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return mustMarshal(NewError(nil, CodeParseError, "parse error", nil))
	}

	resp := e.Handle(ctx, sess, transport, &msg)
	if resp == nil {
		return nil
	}
	return mustMarshal(resp)
}

// Handle dispatches one decoded message. Notifications return nil.
func (e *Engine) Handle(ctx context.Context, sess *Session, transport string, msg *Message) *Message {
	start := time.Now()
	resp := e.dispatch(ctx, sess, msg)

	status := "ok"
	if resp != nil && resp.Error != nil {
		status = "error"
	}
	if e.metrics != nil && msg.Method != "" {
		e.metrics.RecordRPCRequest(transport, msg.Method, status, time.Since(start))
	}
	e.logger.Debug("handled message",
		zap.String("session", sess.ID()),
		zap.String("transport", transport),
		zap.String("method", msg.Method),
		zap.String("status", status),
		zap.Duration("duration", time.Since(start)),
	)
	return resp
}

func (e *Engine) dispatch(ctx context.Context, sess *Session, msg *Message) *Message {
	if msg.JSONRPC != "2.0" || msg.Method == "" {
		if msg.IsNotification() {
			return nil
		}
		return NewError(msg.ID, CodeInvalidRequest, "invalid request", nil)
	}

	switch msg.Method {
	case "initialize":
		sess.MarkInitialized()
		return NewResponse(msg.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    Capabilities{Tools: map[string]any{}},
			ServerInfo:      e.info,
		})

	case "notifications/initialized":
		return nil

	case "ping":
		return NewResponse(msg.ID, map[string]any{})

	// list_tools and call_tool are aliases kept for clients that predate
	// the slash-separated method names.
	case "tools/list", "list_tools":
		if resp := e.requireInitialized(sess, msg); resp != nil {
			return resp
		}
		return e.handleListTools(msg)

	case "tools/call", "call_tool":
		if resp := e.requireInitialized(sess, msg); resp != nil {
			return resp
		}
		return e.handleCallTool(ctx, msg)

	default:
		if msg.IsNotification() {
			return nil
		}
		return NewError(msg.ID, CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", msg.Method), nil)
	}
}

func (e *Engine) requireInitialized(sess *Session, msg *Message) *Message {
	if sess.Initialized() {
		return nil
	}
	return NewError(msg.ID, CodeInvalidRequest, "server not initialized", nil)
}

func (e *Engine) handleListTools(msg *Message) *Message {
	descriptors := make([]ToolDescriptor, 0, e.registry.Len())
	for _, def := range e.registry.List() {
		schema, err := def.InputSchemaJSON()
		if err != nil {
			return NewError(msg.ID, CodeInternalError, err.Error(), nil)
		}
		descriptors = append(descriptors, ToolDescriptor{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	return NewResponse(msg.ID, map[string]any{"tools": descriptors})
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (e *Engine) handleCallTool(ctx context.Context, msg *Message) *Message {
	var params callParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return NewError(msg.ID, CodeInvalidParams, "params must be an object with name and arguments", nil)
		}
	}
	if params.Name == "" {
		return NewError(msg.ID, CodeInvalidParams, "tool name is required", nil)
	}

	def, ok := e.registry.Get(params.Name)
	if !ok {
		return NewError(msg.ID, CodeInvalidParams,
			fmt.Sprintf("unknown tool: %s", params.Name), nil)
	}

	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArguments(def, args); err != nil {
		return NewError(msg.ID, CodeInvalidParams, err.Error(), nil)
	}

	start := time.Now()
	result, err := e.executor.Execute(ctx, params.Name, args)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordToolCall(params.Name, "internal_error", time.Since(start))
		}
		e.logger.Error("tool execution failed",
			zap.String("tool", params.Name), zap.Error(err))
		return NewError(msg.ID, CodeInternalError, upstream.Redact(err.Error()), nil)
	}
	if e.metrics != nil {
		e.metrics.RecordToolCall(params.Name, string(result.Outcome), time.Since(start))
	}

	return NewResponse(msg.ID, callResultFor(result))
}

// callResultFor maps a classified upstream result onto the MCP call result.
// Upstream failures are tool-level errors, not protocol errors: the JSON-RPC
// response is a success whose payload carries isError.
func callResultFor(result *upstream.Result) *CallResult {
	switch result.Outcome {
	case upstream.OutcomeSuccess:
		return NewTextResult(string(result.Body), false)
	case upstream.OutcomeAPIError:
		return NewTextResult(
			fmt.Sprintf("upstream returned status %d: %s", result.Status, result.Body), true)
	case upstream.OutcomeTimeout:
		return NewTextResult("upstream request timed out", true)
	default:
		return NewTextResult(
			fmt.Sprintf("upstream unreachable: %s", result.Message), true)
	}
}

func mustMarshal(msg *Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		// A response we built ourselves always marshals; this is a bug guard.
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}
