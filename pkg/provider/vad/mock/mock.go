// Package mock provides test doubles for the [vad.Engine] and
// [vad.SessionHandle] interfaces.
//
// The session replays a scripted sequence of probabilities, which lets gate
// tests drive the state machine deterministically without synthesising audio:
//
//	sess := &mock.Session{Probabilities: []float64{0.1, 0.9, 0.9, 0.1}}
//	engine := &mock.Engine{NewSessionResult: sess}
package mock

import (
	"sync"

	"github.com/earshot-ai/earshot/pkg/provider/vad"
)

// Engine is a mock implementation of [vad.Engine].
type Engine struct {
	mu sync.Mutex

	// NewSessionResult is returned by NewSession. If nil, a fresh empty
	// Session is returned.
	NewSessionResult vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records the configs passed to NewSession, in order.
	NewSessionCalls []vad.Config
}

// NewSession records the call and returns the configured result.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.NewSessionResult != nil {
		return e.NewSessionResult, nil
	}
	return &Session{}, nil
}

var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of [vad.SessionHandle]. Each ProcessFrame
// call consumes the next value from Probabilities; once exhausted, the last
// value repeats (or 0 when the slice is empty).
type Session struct {
	mu sync.Mutex

	// Probabilities is the scripted score sequence.
	Probabilities []float64

	// ProcessErr, if non-nil, is returned by every ProcessFrame call.
	ProcessErr error

	// CallCountProcess records how many frames were scored.
	CallCountProcess int

	// CallCountReset records how many times Reset was called.
	CallCountReset int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// ProcessFrame returns the next scripted probability.
func (s *Session) ProcessFrame(_ []byte) (vad.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ProcessErr != nil {
		return vad.Score{}, s.ProcessErr
	}

	idx := s.CallCountProcess
	s.CallCountProcess++

	if len(s.Probabilities) == 0 {
		return vad.Score{}, nil
	}
	if idx >= len(s.Probabilities) {
		idx = len(s.Probabilities) - 1
	}
	return vad.Score{Probability: s.Probabilities[idx]}, nil
}

// Reset records the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountReset++
}

// Close records the call and returns nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

var _ vad.SessionHandle = (*Session)(nil)
