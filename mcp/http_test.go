package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func postJSON(t *testing.T, url, sessionID, body string) (*Message, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var msg Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return &msg, resp.Header.Get(SessionHeader)
}

func TestHTTPDirectFlow(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	// Initialize opens a session and returns its id.
	resp, sessionID := postJSON(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.Nil(t, resp.Error)
	require.NotEmpty(t, sessionID)

	// Subsequent requests ride the same session.
	resp, _ = postJSON(t, srv.URL+"/mcp", sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	tools := result["tools"].([]any)
	assert.Len(t, tools, 2)
}

func TestHTTPSessionsAreIsolated(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, first := postJSON(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)

	// A request without the session header is a brand new session and must
	// not see the first one's handshake.
	resp, second := postJSON(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	assert.NotEqual(t, first, second)
}

func TestHTTPUninitializedSessionsNotRetained(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	// Header-less requests that never complete the handshake must not pile
	// up in the session table.
	for range 50 {
		resp, _ := postJSON(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
		require.NotNil(t, resp.Error)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Empty(t, h.httpSessions)
}

func TestHTTPInitializedSessionRetained(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, sessionID := postJSON(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.NotEmpty(t, sessionID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	require.Len(t, h.httpSessions, 1)
	_, ok := h.httpSessions[sessionID]
	assert.True(t, ok)
}

func TestHTTPIdleSessionsEvicted(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, sessionID := postJSON(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.NotEmpty(t, sessionID)

	// Age the session past the TTL and force the next sweep window open.
	h.mu.Lock()
	h.httpSessions[sessionID].lastSeen = time.Now().Add(-h.sessionTTL - time.Minute)
	h.lastSweep = time.Time{}
	h.mu.Unlock()

	h.evictIdle(time.Now())

	h.mu.RLock()
	assert.Empty(t, h.httpSessions)
	h.mu.RUnlock()

	// The evicted id now behaves like an unknown one: a fresh handshake is
	// required.
	resp, _ := postJSON(t, srv.URL+"/mcp", sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestHTTPParseError(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, _ := postJSON(t, srv.URL+"/mcp", "", `{broken`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

// readSSEEvent reads one "event:"/"data:" pair from the stream.
func readSSEEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			return event, data
		}
	}
}

func TestSSEFlow(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	stream, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	defer stream.Body.Close()
	reader := bufio.NewReader(stream.Body)

	// First event announces the message endpoint; only then may we POST.
	event, endpoint := readSSEEvent(t, reader)
	require.Equal(t, "endpoint", event)
	require.True(t, strings.HasPrefix(endpoint, "/message?sessionId="))

	post := func(body string) {
		resp, err := http.Post(srv.URL+endpoint, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	post(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	event, data := readSSEEvent(t, reader)
	assert.Equal(t, "message", event)
	var initResp Message
	require.NoError(t, json.Unmarshal([]byte(data), &initResp))
	require.Nil(t, initResp.Error)

	post(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"listPets","arguments":{}}}`)
	_, data = readSSEEvent(t, reader)
	var callResp Message
	require.NoError(t, json.Unmarshal([]byte(data), &callResp))
	require.Nil(t, callResp.Error)
	assert.EqualValues(t, 2, callResp.ID)
}

func TestSSEUnknownSessionRejected(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/message?sessionId=nope", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Transport parity: the same message sequence produces equivalent payloads
// over direct HTTP and SSE.
func TestTransportParity(t *testing.T) {
	h := NewHTTPHandler(testEngine(t, nil), zap.NewNop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	// Direct HTTP.
	_, sessionID := postJSON(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	httpResp, _ := postJSON(t, srv.URL+"/mcp", sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Nil(t, httpResp.Error)
	httpJSON, err := json.Marshal(httpResp.Result)
	require.NoError(t, err)

	// SSE.
	stream, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	defer stream.Body.Close()
	reader := bufio.NewReader(stream.Body)
	_, endpoint := readSSEEvent(t, reader)

	for _, body := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	} {
		resp, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		// Sequential awaiting keeps the comparison order-stable.
		_, data := readSSEEvent(t, reader)
		var msg Message
		require.NoError(t, json.Unmarshal([]byte(data), &msg))
		if id, ok := msg.ID.(float64); ok && id == 2 {
			sseJSON, err := json.Marshal(msg.Result)
			require.NoError(t, err)
			assert.JSONEq(t, string(httpJSON), string(sseJSON))
		}
	}
}
