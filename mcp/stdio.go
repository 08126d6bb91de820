package mcp

import (
	"bufio"
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
)

// StdioServer serves one session over newline-delimited JSON: one request
// per line in, one response per line out. This matches what MCP hosts spawn
// generated servers with.
type StdioServer struct {
	engine *Engine
	logger *zap.Logger

	writeMu sync.Mutex
}

// NewStdioServer wraps the engine for stdio serving.
func NewStdioServer(engine *Engine, logger *zap.Logger) *StdioServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StdioServer{
		engine: engine,
		logger: logger.With(zap.String("component", "stdio_transport")),
	}
}

// Serve reads messages from r until EOF or context cancellation, writing
// responses to w. The whole stream is one session.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sess := NewSession()
	s.logger.Info("stdio session opened", zap.String("session", sess.ID()))
	defer s.logger.Info("stdio session closed", zap.String("session", sess.ID()))

	scanner := bufio.NewScanner(r)
	// Tool arguments can be large; match the upstream body ceiling.
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.engine.HandleRaw(ctx, sess, "stdio", line)
		if resp == nil {
			continue
		}
		if err := s.write(w, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *StdioServer) write(w io.Writer, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}
