package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/earshot-ai/earshot/pkg/memory"
	memmock "github.com/earshot-ai/earshot/pkg/memory/mock"
	embmock "github.com/earshot-ai/earshot/pkg/provider/embeddings/mock"
)

func TestContextMemoryWindowBounded(t *testing.T) {
	cm := NewContextMemory(ContextMemoryConfig{SessionID: "s1", MaxTurns: 3})

	for _, q := range []string{"one", "two", "three", "four", "five"} {
		if err := cm.AddTurn(context.Background(), q, "re: "+q); err != nil {
			t.Fatalf("AddTurn(%q): %v", q, err)
		}
	}

	turns := cm.Turns()
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	want := []string{"three", "four", "five"}
	for i, w := range want {
		if turns[i].User != w {
			t.Errorf("turns[%d].User = %q, want %q", i, turns[i].User, w)
		}
	}
}

func TestContextMemoryHistoryAlternates(t *testing.T) {
	cm := NewContextMemory(ContextMemoryConfig{SessionID: "s1"})
	if err := cm.AddTurn(context.Background(), "what time is it", "three o'clock"); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	msgs := cm.History()
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "what time is it" {
		t.Errorf("msgs[0] = %+v, want user question", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "three o'clock" {
		t.Errorf("msgs[1] = %+v, want assistant answer", msgs[1])
	}
}

func TestContextMemoryAddTurnLogsEntries(t *testing.T) {
	log := &memmock.TranscriptLog{}
	store := &memmock.SemanticStore{}
	cm := NewContextMemory(ContextMemoryConfig{
		SessionID: "s1",
		Store:     store,
		Log:       log,
	})

	if err := cm.AddTurn(context.Background(), "question", "answer"); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	if len(log.Appended) != 2 {
		t.Fatalf("len(log.Appended) = %d, want 2", len(log.Appended))
	}
	if log.Appended[0].Role != "user" || log.Appended[1].Role != "assistant" {
		t.Errorf("appended roles = %q, %q; want user, assistant",
			log.Appended[0].Role, log.Appended[1].Role)
	}
	if log.Appended[0].SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", log.Appended[0].SessionID)
	}
	// Long-term storage is opt-in per sentence, not per turn.
	if len(store.Remembered) != 0 {
		t.Errorf("Remembered = %v, want empty", store.Remembered)
	}
}

func TestContextMemoryAddExchangeLogsChronologically(t *testing.T) {
	log := &memmock.TranscriptLog{}
	cm := NewContextMemory(ContextMemoryConfig{SessionID: "s1", Log: log})

	steps := []ToolStep{
		{Name: "calculator", Content: "42"},
		{Name: "", Content: "lookup result"},
	}
	if err := cm.AddExchange(context.Background(), "question", steps, "answer"); err != nil {
		t.Fatalf("AddExchange: %v", err)
	}

	// The log reads in spoken order: the question, the tool steps taken
	// while answering it, then the answer.
	if len(log.Appended) != 4 {
		t.Fatalf("len(log.Appended) = %d, want 4", len(log.Appended))
	}
	wantRoles := []string{"user", "tool", "tool", "assistant"}
	for i, want := range wantRoles {
		if got := log.Appended[i].Role; got != want {
			t.Errorf("entry %d role = %q, want %q", i, got, want)
		}
	}
	if got := log.Appended[1].Text; got != "calculator: 42" {
		t.Errorf("named tool entry = %q, want calculator: 42", got)
	}
	if got := log.Appended[2].Text; got != "lookup result" {
		t.Errorf("unnamed tool entry = %q, want bare content", got)
	}

	// The window holds the user/assistant pair; tool steps stay out of it.
	turns := cm.Turns()
	if len(turns) != 1 || turns[0].User != "question" || turns[0].Assistant != "answer" {
		t.Errorf("Turns() = %+v, want one question/answer turn", turns)
	}
}

func TestContextMemoryRememberText(t *testing.T) {
	store := &memmock.SemanticStore{}
	emb := &embmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	cm := NewContextMemory(ContextMemoryConfig{
		SessionID: "s1",
		Embedder:  emb,
		Store:     store,
	})

	if err := cm.RememberText(context.Background(), "the wifi password is hunter2"); err != nil {
		t.Fatalf("RememberText: %v", err)
	}
	if len(store.Remembered) != 1 {
		t.Fatalf("len(store.Remembered) = %d, want 1", len(store.Remembered))
	}
	if got := store.Remembered[0].Text; got != "the wifi password is hunter2" {
		t.Errorf("remembered text = %q", got)
	}
	if len(emb.EmbedCalls) != 1 {
		t.Errorf("EmbedCalls = %d, want 1", len(emb.EmbedCalls))
	}
}

func TestContextMemoryRememberTextEmbedError(t *testing.T) {
	embedErr := errors.New("model not loaded")
	cm := NewContextMemory(ContextMemoryConfig{
		SessionID: "s1",
		Embedder:  &embmock.Provider{EmbedErr: embedErr},
		Store:     &memmock.SemanticStore{},
	})

	if err := cm.RememberText(context.Background(), "x"); !errors.Is(err, embedErr) {
		t.Fatalf("RememberText error = %v, want wrapping %v", err, embedErr)
	}
}

func TestContextMemoryRecall(t *testing.T) {
	store := &memmock.SemanticStore{
		SearchResults: []memory.SearchResult{
			{Entry: memory.Entry{Text: "past exchange"}, Distance: 0.1},
		},
	}
	emb := &embmock.Provider{EmbedResult: []float32{1, 0}}
	cm := NewContextMemory(ContextMemoryConfig{
		SessionID: "s1",
		RetrieveK: 5,
		Embedder:  emb,
		Store:     store,
	})

	results, err := cm.Recall(context.Background(), "what did we discuss", 0)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 || results[0].Entry.Text != "past exchange" {
		t.Fatalf("results = %+v, want one entry", results)
	}
	if len(store.SearchCalls) != 1 || store.SearchCalls[0] != 5 {
		t.Errorf("SearchCalls = %v, want [5]", store.SearchCalls)
	}
	if len(emb.EmbedCalls) != 1 || emb.EmbedCalls[0].Text != "what did we discuss" {
		t.Errorf("EmbedCalls = %+v, want query embedded once", emb.EmbedCalls)
	}
}

func TestContextMemoryRecallWithoutBackends(t *testing.T) {
	cm := NewContextMemory(ContextMemoryConfig{SessionID: "s1"})
	results, err := cm.Recall(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestContextMemoryRecallText(t *testing.T) {
	store := &memmock.SemanticStore{
		SearchResults: []memory.SearchResult{
			{Entry: memory.Entry{Text: "  first  "}, Distance: 0.1},
			{Entry: memory.Entry{Text: ""}, Distance: 0.2},
			{Entry: memory.Entry{Text: "second"}, Distance: 0.3},
		},
	}
	cm := NewContextMemory(ContextMemoryConfig{
		SessionID: "s1",
		Embedder:  &embmock.Provider{EmbedResult: []float32{1}},
		Store:     store,
	})

	texts, err := cm.RecallText(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("RecallText: %v", err)
	}
	want := []string{"first", "second"}
	if len(texts) != len(want) {
		t.Fatalf("texts = %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("texts[%d] = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestContextMemoryRestore(t *testing.T) {
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	log := &memmock.TranscriptLog{
		RecentResult: []memory.TranscriptEntry{
			{SessionID: "s1", Role: "user", Text: "q1", Timestamp: base},
			{SessionID: "s1", Role: "assistant", Text: "a1", Timestamp: base.Add(time.Second)},
			{SessionID: "s1", Role: "tool", Text: "result", Timestamp: base.Add(2 * time.Second)},
			{SessionID: "s1", Role: "user", Text: "q2", Timestamp: base.Add(3 * time.Second)},
			{SessionID: "s1", Role: "assistant", Text: "a2", Timestamp: base.Add(4 * time.Second)},
		},
	}
	cm := NewContextMemory(ContextMemoryConfig{SessionID: "s1", MaxTurns: 5, Log: log})

	if err := cm.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	turns := cm.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].User != "q1" || turns[0].Assistant != "a1" {
		t.Errorf("turns[0] = %+v, want q1/a1", turns[0])
	}
	if turns[1].User != "q2" || turns[1].Assistant != "a2" {
		t.Errorf("turns[1] = %+v, want q2/a2", turns[1])
	}
}

func TestContextMemoryReset(t *testing.T) {
	store := &memmock.SemanticStore{}
	cm := NewContextMemory(ContextMemoryConfig{SessionID: "s1", Store: store})
	if err := cm.AddTurn(context.Background(), "q", "a"); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	if err := cm.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(cm.Turns()) != 0 {
		t.Errorf("turns not cleared: %v", cm.Turns())
	}
	if len(store.ResetCalls) != 1 || store.ResetCalls[0] != "s1" {
		t.Errorf("ResetCalls = %v, want [s1]", store.ResetCalls)
	}
}
