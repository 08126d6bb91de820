package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionHeader carries the session id for the plain HTTP transport. The
// first request without one opens a session and returns the id in the
// response.
const SessionHeader = "Mcp-Session-Id"

// HTTPHandler exposes the engine over plain HTTP and SSE:
//
//	POST /mcp                      direct JSON-RPC, session via Mcp-Session-Id
//	GET  /sse                      event stream, announces its message endpoint
//	POST /message?sessionId=<id>   requests for an SSE session
type HTTPHandler struct {
	engine     *Engine
	logger     *zap.Logger
	sessionTTL time.Duration

	mu           sync.RWMutex
	httpSessions map[string]*httpSession
	lastSweep    time.Time
	sseClients   map[string]*sseClient
}

// httpSession is a retained session plus its idle clock.
type httpSession struct {
	session  *Session
	lastSeen time.Time
}

// defaultSessionTTL bounds how long an initialized HTTP session survives
// without traffic before it is evicted.
const defaultSessionTTL = 30 * time.Minute

type sseClient struct {
	session *Session
	events  chan []byte
}

// NewHTTPHandler creates the HTTP/SSE transport for an engine.
func NewHTTPHandler(engine *Engine, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		engine:       engine,
		logger:       logger.With(zap.String("component", "http_transport")),
		sessionTTL:   defaultSessionTTL,
		httpSessions: make(map[string]*httpSession),
		lastSweep:    time.Now(),
		sseClients:   make(map[string]*sseClient),
	}
}

// ServeHTTP implements http.Handler.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/mcp":
		h.handleDirect(w, r)
	case "/sse":
		h.handleSSE(w, r)
	case "/message":
		h.handleMessage(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleDirect serves request/response JSON-RPC over plain HTTP.
func (h *HTTPHandler) handleDirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.evictIdle(time.Now())
	sess, tracked := h.sessionFor(r.Header.Get(SessionHeader))

	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusOK, NewError(nil, CodeParseError, "parse error", nil))
		return
	}

	resp := h.engine.Handle(r.Context(), sess, "http", &msg)
	w.Header().Set(SessionHeader, sess.ID())
	if !tracked && sess.Initialized() {
		h.trackSession(sess)
	}
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// sessionFor resolves a session id to a tracked session, or hands out a
// fresh untracked one for empty and unknown ids so a restarted server
// degrades to a clean handshake. Fresh sessions are only retained once the
// handshake completes; see trackSession.
func (h *HTTPHandler) sessionFor(id string) (sess *Session, tracked bool) {
	if id != "" {
		h.mu.Lock()
		if entry, ok := h.httpSessions[id]; ok {
			entry.lastSeen = time.Now()
			h.mu.Unlock()
			return entry.session, true
		}
		h.mu.Unlock()
	}
	return NewSession(), false
}

// trackSession retains a session that just completed initialize. Requests
// that never finish the handshake leave no entry behind.
func (h *HTTPHandler) trackSession(sess *Session) {
	h.mu.Lock()
	if _, ok := h.httpSessions[sess.ID()]; ok {
		h.mu.Unlock()
		return
	}
	h.httpSessions[sess.ID()] = &httpSession{session: sess, lastSeen: time.Now()}
	h.mu.Unlock()

	if h.engine.metrics != nil {
		h.engine.metrics.SessionOpened()
	}
	h.logger.Info("http session opened", zap.String("session", sess.ID()))
}

// evictIdle drops sessions idle past the TTL. Sweeps are throttled so the
// map is not walked on every request.
func (h *HTTPHandler) evictIdle(now time.Time) {
	h.mu.Lock()
	if now.Sub(h.lastSweep) < h.sessionTTL/4 {
		h.mu.Unlock()
		return
	}
	h.lastSweep = now
	var evicted []string
	for id, entry := range h.httpSessions {
		if now.Sub(entry.lastSeen) > h.sessionTTL {
			delete(h.httpSessions, id)
			evicted = append(evicted, id)
		}
	}
	h.mu.Unlock()

	for _, id := range evicted {
		if h.engine.metrics != nil {
			h.engine.metrics.SessionClosed()
		}
		h.logger.Info("http session evicted", zap.String("session", id))
	}
}

// handleSSE opens the event stream and tells the client where to POST.
func (h *HTTPHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &sseClient{
		session: NewSession(),
		events:  make(chan []byte, 100),
	}

	h.mu.Lock()
	h.sseClients[client.session.ID()] = client
	h.mu.Unlock()
	if h.engine.metrics != nil {
		h.engine.metrics.SessionOpened()
	}
	h.logger.Info("sse session opened", zap.String("session", client.session.ID()))

	defer func() {
		h.mu.Lock()
		delete(h.sseClients, client.session.ID())
		h.mu.Unlock()
		if h.engine.metrics != nil {
			h.engine.metrics.SessionClosed()
		}
		h.logger.Info("sse session closed", zap.String("session", client.session.ID()))
	}()

	// The endpoint event is the readiness signal: clients must not POST
	// before receiving it.
	fmt.Fprintf(w, "event: endpoint\ndata: /message?sessionId=%s\n\n", client.session.ID())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-client.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleMessage accepts a request for an SSE session. The HTTP response is
// only an ack; the JSON-RPC response arrives on the stream when the call
// completes, so slow tools do not block fast ones sent after them.
func (h *HTTPHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	h.mu.RLock()
	client, ok := h.sseClients[sessionID]
	h.mu.RUnlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.push(client, mustMarshal(NewError(nil, CodeParseError, "parse error", nil)))
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// The POST returns before the call finishes; detach from its context so
	// the dispatch survives the ack.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		resp := h.engine.Handle(ctx, client.session, "sse", &msg)
		if resp == nil {
			return
		}
		h.push(client, mustMarshal(resp))
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (h *HTTPHandler) push(client *sseClient, data []byte) {
	select {
	case client.events <- data:
	default:
		h.logger.Warn("sse client channel full, dropping event",
			zap.String("session", client.session.ID()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
