package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/earshot-ai/earshot/pkg/memory"
)

// LogGuard wraps a [memory.TranscriptLog] and makes all operations non-fatal.
// If the underlying log fails, operations return defaults and log warnings
// instead of propagating errors.
//
// This lets the pipeline keep listening and answering while the memory
// backend is temporarily unavailable (database restart, network partition).
// IsDegraded reports whether the log is currently experiencing failures.
//
// All methods are safe for concurrent use.
type LogGuard struct {
	log      memory.TranscriptLog
	degraded atomic.Bool
}

// NewLogGuard creates a [LogGuard] wrapping the given log.
func NewLogGuard(log memory.TranscriptLog) *LogGuard {
	return &LogGuard{log: log}
}

// Append attempts to append an entry to the underlying log. On failure the
// error is logged and swallowed; the log is marked as degraded. On success
// the degraded flag is cleared.
func (g *LogGuard) Append(ctx context.Context, entry memory.TranscriptEntry) error {
	if err := g.log.Append(ctx, entry); err != nil {
		g.degraded.Store(true)
		slog.Warn("log guard: Append failed, swallowing error",
			"session_id", entry.SessionID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// Recent attempts to read recent entries from the underlying log. On failure
// an empty slice is returned and the log is marked as degraded.
func (g *LogGuard) Recent(ctx context.Context, sessionID string, n int) ([]memory.TranscriptEntry, error) {
	entries, err := g.log.Recent(ctx, sessionID, n)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("log guard: Recent failed, returning empty",
			"session_id", sessionID,
			"n", n,
			"error", err,
		)
		return []memory.TranscriptEntry{}, nil
	}
	g.degraded.Store(false)
	return entries, nil
}

// IsDegraded reports whether the most recent operation on the underlying log
// failed.
func (g *LogGuard) IsDegraded() bool {
	return g.degraded.Load()
}

var _ memory.TranscriptLog = (*LogGuard)(nil)

// StoreGuard wraps a [memory.SemanticStore] and makes all operations
// non-fatal, mirroring [LogGuard]. A failing vector store degrades recall to
// "nothing relevant found" rather than failing the turn.
//
// All methods are safe for concurrent use.
type StoreGuard struct {
	store    memory.SemanticStore
	degraded atomic.Bool
}

// NewStoreGuard creates a [StoreGuard] wrapping the given store.
func NewStoreGuard(store memory.SemanticStore) *StoreGuard {
	return &StoreGuard{store: store}
}

// Remember attempts to store an entry. On failure the error is logged and
// swallowed; the store is marked as degraded.
func (g *StoreGuard) Remember(ctx context.Context, entry memory.Entry) error {
	if err := g.store.Remember(ctx, entry); err != nil {
		g.degraded.Store(true)
		slog.Warn("store guard: Remember failed, swallowing error",
			"session_id", entry.SessionID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// Search attempts a similarity search. On failure an empty slice is returned
// and the store is marked as degraded.
func (g *StoreGuard) Search(ctx context.Context, embedding []float32, topK int, filter memory.SearchFilter) ([]memory.SearchResult, error) {
	results, err := g.store.Search(ctx, embedding, topK, filter)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("store guard: Search failed, returning empty",
			"top_k", topK,
			"error", err,
		)
		return []memory.SearchResult{}, nil
	}
	g.degraded.Store(false)
	return results, nil
}

// Reset attempts to delete remembered entries. Reset is the one guarded
// operation that propagates its error: the user explicitly asked to wipe
// memory and should hear about a failure, not a silent no-op.
func (g *StoreGuard) Reset(ctx context.Context, sessionID string) error {
	err := g.store.Reset(ctx, sessionID)
	g.degraded.Store(err != nil)
	return err
}

// IsDegraded reports whether the most recent operation on the underlying
// store failed.
func (g *StoreGuard) IsDegraded() bool {
	return g.degraded.Load()
}

var _ memory.SemanticStore = (*StoreGuard)(nil)
