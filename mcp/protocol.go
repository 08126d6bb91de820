// Package mcp implements the Model Context Protocol surface of generated
// servers: JSON-RPC 2.0 message handling with a per-session state machine,
// served identically over STDIO, plain HTTP, and SSE.
package mcp

import (
	"encoding/json"
)

// ProtocolVersion 当前实现的 MCP 协议版本。
const ProtocolVersion = "2024-11-05"

// Message is a JSON-RPC 2.0 envelope. Requests carry Method/Params,
// responses carry Result or Error. A request without an ID is a
// notification and gets no response.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsNotification reports whether the message expects no response.
func (m *Message) IsNotification() bool { return m.ID == nil && m.Method != "" }

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// JSON-RPC 2.0 标准错误码。
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// NewResponse creates a success response for the given request id.
func NewResponse(id any, result any) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Result: result}
}

// NewError creates an error response for the given request id.
func NewError(id any, code int, message string, data any) *Message {
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// NewRequest creates a request message.
func NewRequest(id any, method string, params any) *Message {
	msg := &Message{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err == nil {
			msg.Params = data
		}
	}
	return msg
}

// ToolDescriptor is the tools/list wire form of a tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// TextContent is the single content block type generated servers emit.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the tools/call result envelope.
type CallResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// NewTextResult wraps text in a call result.
func NewTextResult(text string, isError bool) *CallResult {
	return &CallResult{
		Content: []TextContent{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// ServerInfo describes this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities advertises what the server supports. Generated servers only
// serve tools.
type Capabilities struct {
	Tools map[string]any `json:"tools"`
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}
