// Package memory defines the two-layer conversational memory used by Earshot.
//
// Layer 1 is the transcript log: an append-only record of everything said in a
// session, user and assistant alike. It answers "what was just said" and feeds
// the bounded conversation history included in every prompt.
//
// Layer 2 is the semantic store: past exchanges embedded as dense vectors and
// retrieved by similarity when a new utterance arrives. It answers "what did
// we talk about before" without any bound on age.
//
// Storage backends implement the interfaces in this package without the rest
// of the system depending on earshot internals.
package memory

import (
	"context"
	"time"
)

// TranscriptEntry is one logged utterance or assistant reply.
type TranscriptEntry struct {
	// SessionID identifies the listening session this entry belongs to.
	SessionID string

	// Role is the speaker role: "user", "assistant", or "tool".
	Role string

	// Text is the spoken or generated text.
	Text string

	// Timestamp is when the entry was recorded.
	Timestamp time.Time

	// AudioDuration is the length of the source audio for user entries;
	// zero for generated entries.
	AudioDuration time.Duration
}

// Entry is one remembered exchange in the semantic store.
type Entry struct {
	// ID uniquely identifies the entry. Backends may assign one on Remember
	// when left empty.
	ID string

	// SessionID identifies the session during which the exchange happened.
	SessionID string

	// Text is the remembered content, typically a single transcribed sentence.
	Text string

	// Embedding is the dense vector for Text, produced by an
	// embeddings.Provider. All entries in one store must share a dimension.
	Embedding []float32

	// CreatedAt is when the entry was remembered.
	CreatedAt time.Time
}

// SearchResult pairs an Entry with its distance to the query vector.
type SearchResult struct {
	Entry Entry

	// Distance is the cosine distance to the query embedding. Lower is more
	// similar.
	Distance float64
}

// SearchFilter restricts a semantic search. Zero values mean no restriction.
type SearchFilter struct {
	// SessionID limits results to a single session.
	SessionID string

	// After excludes entries created at or before this time.
	After time.Time

	// Before excludes entries created at or after this time.
	Before time.Time
}

// TranscriptLog is the layer-1 append-only session log.
//
// Implementations must be safe for concurrent use.
type TranscriptLog interface {
	// Append records one entry.
	Append(ctx context.Context, entry TranscriptEntry) error

	// Recent returns up to n most recent entries for sessionID, oldest first.
	Recent(ctx context.Context, sessionID string, n int) ([]TranscriptEntry, error)
}

// SemanticStore is the layer-2 similarity-searchable memory.
//
// Implementations must be safe for concurrent use.
type SemanticStore interface {
	// Remember stores one pre-embedded entry.
	Remember(ctx context.Context, entry Entry) error

	// Search returns up to topK entries closest to the query embedding,
	// ordered by ascending distance. Entries at equal distance are ordered
	// newest first.
	Search(ctx context.Context, embedding []float32, topK int, filter SearchFilter) ([]SearchResult, error)

	// Reset deletes all remembered entries for sessionID. An empty sessionID
	// deletes everything.
	Reset(ctx context.Context, sessionID string) error
}
