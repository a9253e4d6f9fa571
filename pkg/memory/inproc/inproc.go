// Package inproc implements the earshot memory interfaces in process memory.
//
// It is the zero-dependency default: a fresh install runs with full
// conversational memory before PostgreSQL is set up, at the cost of losing
// everything on restart. Similarity search is a brute-force cosine scan, which
// is fine for the entry counts a single voice session produces.
package inproc

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/earshot-ai/earshot/pkg/memory"
)

var (
	_ memory.TranscriptLog = (*Store)(nil)
	_ memory.SemanticStore = (*Store)(nil)
)

// Store implements both [memory.TranscriptLog] and [memory.SemanticStore] in
// process memory. The zero value is not usable; call New.
//
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries []memory.Entry
	log     []memory.TranscriptEntry
	nextID  int
}

// New creates an empty in-process store.
func New() *Store {
	return &Store{}
}

// Append implements [memory.TranscriptLog].
func (s *Store) Append(_ context.Context, entry memory.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.log = append(s.log, entry)
	return nil
}

// Recent implements [memory.TranscriptLog].
func (s *Store) Recent(_ context.Context, sessionID string, n int) ([]memory.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return []memory.TranscriptEntry{}, nil
	}

	matched := make([]memory.TranscriptEntry, 0, n)
	for _, e := range s.log {
		if e.SessionID == sessionID {
			matched = append(matched, e)
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched, nil
}

// Remember implements [memory.SemanticStore].
func (s *Store) Remember(_ context.Context, entry memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.ID == "" {
		s.nextID++
		entry.ID = fmt.Sprintf("mem-%d", s.nextID)
	}

	for i, existing := range s.entries {
		if existing.ID == entry.ID {
			s.entries[i] = entry
			return nil
		}
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Search implements [memory.SemanticStore] with a brute-force cosine scan.
// Results are ordered by ascending distance; ties go to the newer entry.
func (s *Store) Search(_ context.Context, embedding []float32, topK int, filter memory.SearchFilter) ([]memory.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if topK <= 0 {
		return []memory.SearchResult{}, nil
	}

	results := make([]memory.SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if !filter.After.IsZero() && !e.CreatedAt.After(filter.After) {
			continue
		}
		if !filter.Before.IsZero() && !e.CreatedAt.Before(filter.Before) {
			continue
		}
		results = append(results, memory.SearchResult{
			Entry:    e,
			Distance: cosineDistance(embedding, e.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Reset implements [memory.SemanticStore].
func (s *Store) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		s.entries = nil
		return nil
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// cosineDistance returns 1 - cosine similarity, matching the pgvector <=>
// operator. Mismatched or zero-magnitude vectors get the maximum distance so
// they sort last rather than erroring out mid-search.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
