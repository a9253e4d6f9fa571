// Package mock provides test doubles for the memory interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-ai/earshot/pkg/memory"
)

// TranscriptLog is a mock memory.TranscriptLog.
type TranscriptLog struct {
	mu sync.Mutex

	// AppendErr, if non-nil, is returned from Append.
	AppendErr error
	// RecentResult is returned from Recent.
	RecentResult []memory.TranscriptEntry
	// RecentErr, if non-nil, is returned from Recent.
	RecentErr error

	// Appended records every entry passed to Append.
	Appended []memory.TranscriptEntry
	// RecentCalls counts Recent invocations.
	RecentCalls int
}

var _ memory.TranscriptLog = (*TranscriptLog)(nil)

func (l *TranscriptLog) Append(_ context.Context, entry memory.TranscriptEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Appended = append(l.Appended, entry)
	return l.AppendErr
}

func (l *TranscriptLog) Recent(_ context.Context, sessionID string, n int) ([]memory.TranscriptEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.RecentCalls++
	return l.RecentResult, l.RecentErr
}

// SemanticStore is a mock memory.SemanticStore.
type SemanticStore struct {
	mu sync.Mutex

	// RememberErr, if non-nil, is returned from Remember.
	RememberErr error
	// SearchResults is returned from Search.
	SearchResults []memory.SearchResult
	// SearchErr, if non-nil, is returned from Search.
	SearchErr error
	// ResetErr, if non-nil, is returned from Reset.
	ResetErr error

	// Remembered records every entry passed to Remember.
	Remembered []memory.Entry
	// SearchCalls records the topK of every Search invocation.
	SearchCalls []int
	// ResetCalls records the sessionID of every Reset invocation.
	ResetCalls []string
}

var _ memory.SemanticStore = (*SemanticStore)(nil)

func (s *SemanticStore) Remember(_ context.Context, entry memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Remembered = append(s.Remembered, entry)
	return s.RememberErr
}

func (s *SemanticStore) Search(_ context.Context, embedding []float32, topK int, filter memory.SearchFilter) ([]memory.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchCalls = append(s.SearchCalls, topK)
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if len(s.SearchResults) > topK {
		return s.SearchResults[:topK], nil
	}
	return s.SearchResults, nil
}

func (s *SemanticStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls = append(s.ResetCalls, sessionID)
	return s.ResetErr
}
