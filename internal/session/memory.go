package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/earshot-ai/earshot/pkg/memory"
	"github.com/earshot-ai/earshot/pkg/provider/embeddings"
	"github.com/earshot-ai/earshot/pkg/types"
)

// Defaults for [ContextMemoryConfig].
const (
	defaultMaxTurns  = 5
	defaultRetrieveK = 5
)

// Turn is one completed exchange: what the user said and what the assistant
// answered.
type Turn struct {
	User      string
	Assistant string
	At        time.Time
}

// ContextMemory is the conversational memory of one session.
//
// It keeps a bounded window of the most recent turns for inclusion in every
// prompt, appends each exchange to the layer-1 transcript log, and embeds it
// into the layer-2 semantic store for similarity recall. The window is bounded
// by turn count rather than tokens: the assistant answers one utterance at a
// time, so a handful of recent exchanges is all the prompt needs verbatim.
// Anything older is reachable through [ContextMemory.Recall].
//
// All methods are safe for concurrent use.
type ContextMemory struct {
	sessionID string
	maxTurns  int
	retrieveK int
	embedder  embeddings.Provider
	store     memory.SemanticStore
	log       memory.TranscriptLog

	mu    sync.Mutex
	turns []Turn
}

// ContextMemoryConfig configures a [ContextMemory].
type ContextMemoryConfig struct {
	// SessionID identifies the session entries are recorded under.
	SessionID string

	// MaxTurns bounds the in-prompt conversation window. Defaults to 5 if
	// zero or negative.
	MaxTurns int

	// RetrieveK is the default number of semantic matches returned by
	// Recall. Defaults to 5 if zero or negative.
	RetrieveK int

	// Embedder produces query and entry vectors. May be nil, in which case
	// Remember and Recall become no-ops.
	Embedder embeddings.Provider

	// Store is the layer-2 semantic store. May be nil alongside Embedder.
	Store memory.SemanticStore

	// Log is the layer-1 transcript log. May be nil, in which case exchanges
	// are only kept in the window.
	Log memory.TranscriptLog
}

// NewContextMemory creates a [ContextMemory] with the given configuration.
func NewContextMemory(cfg ContextMemoryConfig) *ContextMemory {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	retrieveK := cfg.RetrieveK
	if retrieveK <= 0 {
		retrieveK = defaultRetrieveK
	}
	return &ContextMemory{
		sessionID: cfg.SessionID,
		maxTurns:  maxTurns,
		retrieveK: retrieveK,
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		log:       cfg.Log,
	}
}

// ToolStep is one tool invocation made while producing an exchange's answer.
type ToolStep struct {
	Name    string
	Content string
}

// AddTurn records one completed exchange that used no tools. Equivalent to
// [ContextMemory.AddExchange] with nil tool steps.
func (cm *ContextMemory) AddTurn(ctx context.Context, user, assistant string) error {
	return cm.AddExchange(ctx, user, nil, assistant)
}

// AddExchange records one completed exchange: the window gains the
// user/assistant pair, trimmed to MaxTurns, and the transcript log receives
// the turns in spoken order — the user's sentence first, then any tool steps
// taken while answering it, then the assistant's answer. The semantic store
// is untouched; sentences earn long-term storage individually through
// [ContextMemory.RememberText] when the gating pipeline flags them.
//
// Log failures are returned but leave the window updated, so a degraded
// backend never loses the in-prompt history.
func (cm *ContextMemory) AddExchange(ctx context.Context, user string, tools []ToolStep, assistant string) error {
	now := time.Now()

	cm.mu.Lock()
	cm.turns = append(cm.turns, Turn{User: user, Assistant: assistant, At: now})
	if excess := len(cm.turns) - cm.maxTurns; excess > 0 {
		cm.turns = append(cm.turns[:0], cm.turns[excess:]...)
	}
	cm.mu.Unlock()

	if cm.log == nil {
		return nil
	}

	entries := make([]memory.TranscriptEntry, 0, len(tools)+2)
	entries = append(entries, memory.TranscriptEntry{
		SessionID: cm.sessionID, Role: "user", Text: user, Timestamp: now,
	})
	for _, step := range tools {
		text := step.Content
		if step.Name != "" {
			text = step.Name + ": " + step.Content
		}
		entries = append(entries, memory.TranscriptEntry{
			SessionID: cm.sessionID, Role: "tool", Text: text, Timestamp: now,
		})
	}
	entries = append(entries, memory.TranscriptEntry{
		SessionID: cm.sessionID, Role: "assistant", Text: assistant, Timestamp: now,
	})
	for _, e := range entries {
		if err := cm.log.Append(ctx, e); err != nil {
			return fmt.Errorf("append transcript entry: %w", err)
		}
	}
	return nil
}

// RememberText embeds text and inserts it into the unbounded long-term
// store. No-op when no embedder or store is configured.
func (cm *ContextMemory) RememberText(ctx context.Context, text string) error {
	if cm.embedder == nil || cm.store == nil {
		return nil
	}
	vec, err := cm.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed memory entry: %w", err)
	}
	entry := memory.Entry{
		SessionID: cm.sessionID,
		Text:      text,
		Embedding: vec,
		CreatedAt: time.Now(),
	}
	if err := cm.store.Remember(ctx, entry); err != nil {
		return fmt.Errorf("remember entry: %w", err)
	}
	return nil
}

// History returns the conversation window as alternating user/assistant
// messages, oldest first. The result is ready to pass to an LLM completion
// request.
func (cm *ContextMemory) History() []types.Message {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	msgs := make([]types.Message, 0, 2*len(cm.turns))
	for _, t := range cm.turns {
		msgs = append(msgs,
			types.Message{Role: "user", Content: t.User},
			types.Message{Role: "assistant", Content: t.Assistant},
		)
	}
	return msgs
}

// Turns returns a copy of the current conversation window, oldest first.
func (cm *ContextMemory) Turns() []Turn {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	out := make([]Turn, len(cm.turns))
	copy(out, cm.turns)
	return out
}

// Recall embeds query and returns up to k semantically similar past exchanges,
// closest first. k <= 0 uses the configured default. The search spans all
// sessions: long-term memory deliberately outlives the session that wrote it.
// Returns nil when no embedder or store is configured.
func (cm *ContextMemory) Recall(ctx context.Context, query string, k int) ([]memory.SearchResult, error) {
	if cm.embedder == nil || cm.store == nil {
		return nil, nil
	}
	if k <= 0 {
		k = cm.retrieveK
	}
	vec, err := cm.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed recall query: %w", err)
	}
	results, err := cm.store.Search(ctx, vec, k, memory.SearchFilter{})
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return results, nil
}

// RecallText is [ContextMemory.Recall] flattened to the entry texts, for
// direct inclusion in a prompt's context block.
func (cm *ContextMemory) RecallText(ctx context.Context, query string, k int) ([]string, error) {
	results, err := cm.Recall(ctx, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		if s := strings.TrimSpace(r.Entry.Text); s != "" {
			texts = append(texts, s)
		}
	}
	return texts, nil
}

// Restore rebuilds the conversation window from the transcript log, pairing
// consecutive user/assistant entries. It is used after a restart so the
// assistant picks up mid-conversation. No-op without a log.
func (cm *ContextMemory) Restore(ctx context.Context) error {
	if cm.log == nil {
		return nil
	}
	entries, err := cm.log.Recent(ctx, cm.sessionID, 2*cm.maxTurns)
	if err != nil {
		return fmt.Errorf("restore from transcript log: %w", err)
	}

	var turns []Turn
	var pending *memory.TranscriptEntry
	for i := range entries {
		e := entries[i]
		switch e.Role {
		case "user":
			pending = &entries[i]
		case "assistant":
			if pending == nil {
				continue
			}
			turns = append(turns, Turn{User: pending.Text, Assistant: e.Text, At: e.Timestamp})
			pending = nil
		}
	}
	if excess := len(turns) - cm.maxTurns; excess > 0 {
		turns = turns[excess:]
	}

	cm.mu.Lock()
	cm.turns = turns
	cm.mu.Unlock()
	return nil
}

// Reset clears the conversation window and deletes this session's entries
// from the semantic store. Triggered by the "reset memory" voice command.
func (cm *ContextMemory) Reset(ctx context.Context) error {
	cm.mu.Lock()
	cm.turns = cm.turns[:0]
	cm.mu.Unlock()

	if cm.store != nil {
		if err := cm.store.Reset(ctx, cm.sessionID); err != nil {
			return fmt.Errorf("reset semantic store: %w", err)
		}
	}
	return nil
}
