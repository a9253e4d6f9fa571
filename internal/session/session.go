// Package session provides listening-session lifecycle management for Earshot.
//
// A [Session] ties together everything that belongs to one continuous run of
// the pipeline: an identifier, a cancellable context, and the conversational
// memory ([ContextMemory]). Cancelling a session stops capture and processing
// without tearing down the providers behind them.
//
// [MemoryGuard] wraps the memory backends so that a failing database degrades
// recall instead of killing the session.
//
// All exported types are safe for concurrent use.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Session is one continuous listening session.
type Session struct {
	id      string
	started time.Time
	memory  *ContextMemory

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New creates a session derived from parent. Cancelling parent cancels the
// session. If id is empty a random one is generated.
func New(parent context.Context, id string, mem *ContextMemory) *Session {
	if id == "" {
		id = newSessionID()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:      id,
		started: time.Now(),
		memory:  mem,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Started returns when the session was created.
func (s *Session) Started() time.Time { return s.started }

// Memory returns the session's conversational memory. May be nil if the
// session was created without one.
func (s *Session) Memory() *ContextMemory { return s.memory }

// Context returns the session context. It is cancelled by [Session.Close] or
// by cancellation of the parent context.
func (s *Session) Context() context.Context { return s.ctx }

// Done returns a channel closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Close ends the session. In-flight pipeline work observes the cancellation
// through [Session.Context]. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

// newSessionID returns a random 16-hex-char identifier, falling back to a
// timestamp when the system entropy source fails.
func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("s%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
