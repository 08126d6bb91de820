package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the per-connection protocol state. Sessions never share
// anything mutable: two clients talking to the same server cannot observe
// each other's handshake state.
type Session struct {
	id        string
	createdAt time.Time

	mu          sync.Mutex
	initialized bool
}

// NewSession creates an uninitialized session with a fresh id.
func NewSession() *Session {
	return &Session{id: uuid.NewString(), createdAt: time.Now()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// MarkInitialized transitions the session after a successful initialize.
// Re-initializing an already-initialized session is tolerated; the handshake
// is idempotent.
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// Initialized reports whether the handshake completed.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}
