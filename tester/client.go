// Package tester drives a running generated server the way an MCP host
// would: initialize, list the tools, then execute an LLM-planned call
// sequence per endpoint and report what happened.
package tester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/internal/tlsutil"
	"github.com/rfonseca85/mcp-generator/mcp"
)

// Client speaks JSON-RPC to a generated server over its plain HTTP
// transport. One Client is one session.
type Client struct {
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
	sessionID string
	nextID    atomic.Int64
}

// NewClient creates a client for the server at baseURL (e.g.
// "http://localhost:8080").
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		client:  tlsutil.SecureHTTPClient(timeout),
		logger:  logger.With(zap.String("component", "tester_client")),
	}
}

// call performs one JSON-RPC round trip. The returned error covers both
// transport failures and protocol-level error responses; tool-level isError
// payloads come back as results.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := mcp.NewRequest(c.nextID.Add(1), method, params)
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		httpReq.Header.Set(mcp.SessionHeader, c.sessionID)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer httpResp.Body.Close()

	if id := httpResp.Header.Get(mcp.SessionHeader); id != "" {
		c.sessionID = id
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *mcp.RPCError   `json:"error"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// Initialize performs the handshake and pins the session.
func (c *Client) Initialize(ctx context.Context) error {
	_, err := c.call(ctx, "initialize", nil)
	return err
}

// ListTools fetches the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error) {
	raw, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []mcp.ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("tools/list: decode result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes one tool. Tool-level failures come back in the result's
// IsError flag, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallResult, error) {
	raw, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	var result mcp.CallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("tools/call: decode result: %w", err)
	}
	return &result, nil
}
