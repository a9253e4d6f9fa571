package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/earshot-ai/earshot/internal/command"
	"github.com/earshot-ai/earshot/internal/gating"
	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/internal/session"
	"github.com/earshot-ai/earshot/internal/toolcall"
	"github.com/earshot-ai/earshot/pkg/memory"
	memmock "github.com/earshot-ai/earshot/pkg/memory/mock"
	"github.com/earshot-ai/earshot/pkg/provider/classify"
	classifymock "github.com/earshot-ai/earshot/pkg/provider/classify/mock"
	embedmock "github.com/earshot-ai/earshot/pkg/provider/embeddings/mock"
	"github.com/earshot-ai/earshot/pkg/provider/llm"
	llmmock "github.com/earshot-ai/earshot/pkg/provider/llm/mock"
	"github.com/earshot-ai/earshot/pkg/types"
)

func responses(contents ...string) []*llm.CompletionResponse {
	out := make([]*llm.CompletionResponse, len(contents))
	for i, c := range contents {
		out[i] = &llm.CompletionResponse{Content: c}
	}
	return out
}

// recorder captures emitted replies.
type recorder struct {
	emitted []string
	err     error
}

func (r *recorder) Emit(_ context.Context, text string) error {
	r.emitted = append(r.emitted, text)
	return r.err
}

type fixture struct {
	orch        *Orchestrator
	sess        *session.Session
	llm         *llmmock.Provider
	actionable  *classifymock.Classifier
	contextable *classifymock.Classifier
	store       *memmock.SemanticStore
	log         *memmock.TranscriptLog
	out         *recorder
}

func newFixture(t *testing.T, configure func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		llm:         &llmmock.Provider{},
		actionable:  &classifymock.Classifier{},
		contextable: &classifymock.Classifier{},
		store:       &memmock.SemanticStore{},
		log:         &memmock.TranscriptLog{},
		out:         &recorder{},
	}

	gate, err := gating.New(f.actionable, f.contextable)
	if err != nil {
		t.Fatalf("gating.New: %v", err)
	}

	registry := toolcall.NewRegistry()
	if err := registry.Register(&toolcall.Func{
		Def: types.ToolDefinition{
			Name:        "calculator",
			Description: "Evaluates mathematical expressions.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{"type": "string"},
				},
				"required": []string{"expression"},
			},
		},
		Fn: func(_ context.Context, params map[string]any) (string, error) {
			expr, _ := params["expression"].(string)
			if expr == "fail" {
				return "", errors.New("boom")
			}
			return "42", nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg := Config{
		Gate:         gate,
		Engine:       toolcall.NewEngine(registry, f.llm),
		Registry:     registry,
		Dispatcher:   f.out,
		SystemPrompt: "You are a helpful voice assistant.",
	}
	if configure != nil {
		configure(&cfg)
	}

	f.orch, err = New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mem := session.NewContextMemory(session.ContextMemoryConfig{
		SessionID: "s1",
		Embedder:  &embedmock.Provider{EmbedResult: []float32{0.1, 0.2}},
		Store:     f.store,
		Log:       f.log,
	})
	f.sess = session.New(context.Background(), "s1", mem)
	t.Cleanup(func() { f.sess.Close() })
	return f
}

// units wraps sentences as the sentence units of a single utterance.
func units(texts ...string) []types.SentenceUnit {
	out := make([]types.SentenceUnit, len(texts))
	for i, text := range texts {
		out[i] = types.SentenceUnit{Text: text, UtteranceID: 1, Seq: i}
	}
	return out
}

func match(matched bool) classify.Result {
	conf := 0.1
	if matched {
		conf = 0.9
	}
	return classify.Result{Match: matched, Confidence: conf}
}

func TestHandleSentenceActionableAnswered(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.llm.Responses = responses("It is four.")

	err := f.orch.HandleSentences(context.Background(), f.sess, units("What is two plus two?"))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	if len(f.out.emitted) != 1 || f.out.emitted[0] != "It is four." {
		t.Fatalf("emitted = %v, want one reply", f.out.emitted)
	}
	if got := f.orch.Answered(); got != 1 {
		t.Errorf("Answered() = %d, want 1", got)
	}
	// The exchange lands in the transcript log as a user and an assistant
	// entry.
	if len(f.log.Appended) != 2 {
		t.Fatalf("log entries = %d, want 2", len(f.log.Appended))
	}
	if f.log.Appended[0].Role != "user" || f.log.Appended[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", f.log.Appended[0].Role, f.log.Appended[1].Role)
	}
	// Not contextable, so nothing was remembered.
	if len(f.store.Remembered) != 0 {
		t.Errorf("store.Remembered = %v, want empty", f.store.Remembered)
	}
}

func TestHandleSentenceContextableRemembered(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(false)
	f.contextable.Result = match(true)

	err := f.orch.HandleSentences(context.Background(), f.sess, units("My dentist appointment is on Tuesday."))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	if len(f.out.emitted) != 0 {
		t.Errorf("emitted = %v, want none", f.out.emitted)
	}
	if len(f.llm.CompleteCalls) != 0 {
		t.Errorf("model was called %d times, want 0", len(f.llm.CompleteCalls))
	}
	if len(f.store.Remembered) != 1 {
		t.Fatalf("store.Remembered = %d entries, want 1", len(f.store.Remembered))
	}
	if got := f.store.Remembered[0].Text; got != "My dentist appointment is on Tuesday." {
		t.Errorf("remembered text = %q", got)
	}
	if f.orch.Discarded() != 0 {
		t.Errorf("Discarded() = %d, want 0", f.orch.Discarded())
	}
}

func TestHandleSentenceNeitherDiscardedSilently(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(false)
	f.contextable.Result = match(false)

	err := f.orch.HandleSentences(context.Background(), f.sess, units("Uh, you know, whatever."))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	if len(f.out.emitted) != 0 {
		t.Errorf("emitted = %v, want none", f.out.emitted)
	}
	if len(f.store.Remembered) != 0 || len(f.log.Appended) != 0 {
		t.Error("discarded sentence left traces in memory")
	}
	if got := f.orch.Discarded(); got != 1 {
		t.Errorf("Discarded() = %d, want 1", got)
	}
}

func TestHandleSentenceBothRespondsAndRemembers(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(true)
	f.llm.Responses = responses("Noted, I'll keep that in mind.")

	err := f.orch.HandleSentences(context.Background(), f.sess, units("Remind me that rent is due Friday."))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}
	if len(f.out.emitted) != 1 {
		t.Fatalf("emitted = %v, want one reply", f.out.emitted)
	}
	if len(f.store.Remembered) != 1 {
		t.Errorf("store.Remembered = %d entries, want 1", len(f.store.Remembered))
	}
}

func TestHandleSentenceToolRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.llm.Responses = responses(
		`<tool_call>
{"tool_name": "calculator", "parameters": {"expression": "15 + 27"}}
</tool_call>`,
		"The answer is 42.",
	)

	err := f.orch.HandleSentences(context.Background(), f.sess, units("What is fifteen plus twenty-seven?"))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	if len(f.out.emitted) != 1 || f.out.emitted[0] != "The answer is 42." {
		t.Fatalf("emitted = %v", f.out.emitted)
	}
	// The transcript log reads chronologically: the question, the tool step
	// it triggered, then the answer.
	roles := make([]string, 0, len(f.log.Appended))
	for _, e := range f.log.Appended {
		roles = append(roles, e.Role)
	}
	want := []string{"user", "tool", "assistant"}
	if !slices.Equal(roles, want) {
		t.Fatalf("log roles = %v, want %v", roles, want)
	}
	if got := f.log.Appended[1].Text; got != "calculator: 42" {
		t.Errorf("tool entry text = %q", got)
	}
}

func TestHandleSentencePromptCarriesContextAndHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.store.SearchResults = []memory.SearchResult{
		{Entry: memory.Entry{Text: "The wifi password is hunter2."}},
	}
	f.llm.Responses = responses("first", "second")

	mem := f.sess.Memory()
	if err := mem.AddTurn(context.Background(), "hello", "hi there"); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	f.log.Appended = nil

	err := f.orch.HandleSentences(context.Background(), f.sess, units("What is the wifi password?"))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	if len(f.llm.CompleteCalls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(f.llm.CompleteCalls))
	}
	req := f.llm.CompleteCalls[0]
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", req.Messages)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		"Context:\n- The wifi password is hunter2.",
		"Conversation History:\nUser: hello\nAssistant: hi there",
		"Question:\nWhat is the wifi password?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.Contains(req.SystemPrompt, "**calculator**") {
		t.Errorf("system prompt missing tool definitions:\n%s", req.SystemPrompt)
	}
}

func TestHandleSentenceModelUnavailableApologises(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.llm.CompleteErr = errors.New("connection refused")

	err := f.orch.HandleSentences(context.Background(), f.sess, units("What time is it?"))
	if err == nil {
		t.Fatal("HandleSentences returned nil, want error")
	}

	if len(f.out.emitted) != 1 || f.out.emitted[0] != fallbackApology {
		t.Fatalf("emitted = %v, want apology", f.out.emitted)
	}
	// The failed turn is still recorded so the user can refer back to it.
	if len(f.log.Appended) != 2 {
		t.Errorf("log entries = %d, want 2", len(f.log.Appended))
	}
}

func TestHandleSentenceLoopExceededBestEffort(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	// The model never produces a plain answer; the last response repeats.
	f.llm.Responses = responses(
		`<tool_call>{"tool_name": "calculator", "parameters": {"expression": "6 * 7"}}</tool_call>`,
	)

	err := f.orch.HandleSentences(context.Background(), f.sess, units("What is six times seven?"))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	// Best-effort answer assembled from the last successful tool result.
	if len(f.out.emitted) != 1 || f.out.emitted[0] != "42" {
		t.Fatalf("emitted = %v, want best-effort tool result", f.out.emitted)
	}
}

func TestHandleSentenceScrubsThinkBlocks(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.llm.Responses = responses("<think>the user wants a greeting</think>Hello!")

	err := f.orch.HandleSentences(context.Background(), f.sess, units("Say hello."))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}
	if len(f.out.emitted) != 1 || f.out.emitted[0] != "Hello!" {
		t.Fatalf("emitted = %v", f.out.emitted)
	}
}

func TestHandleSentenceResetMemoryCommand(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Commands = command.New()
	})
	f.actionable.Result = match(true)
	f.contextable.Result = match(true)

	err := f.orch.HandleSentences(context.Background(), f.sess, units("Reset memory."))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	if len(f.out.emitted) != 1 || f.out.emitted[0] != "Conversation memory has been reset." {
		t.Fatalf("emitted = %v", f.out.emitted)
	}
	if got := f.store.ResetCalls; len(got) != 1 || got[0] != "s1" {
		t.Errorf("ResetCalls = %v, want [s1]", got)
	}
	// Commands short-circuit: gating never runs.
	if len(f.actionable.Calls) != 0 {
		t.Errorf("actionable classifier ran %d times, want 0", len(f.actionable.Calls))
	}
}

func TestHandleSentencesContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.ResultFor = map[string]classify.Result{
		"First.":  match(true),
		"Second.": match(true),
	}
	f.contextable.Result = match(false)
	f.llm.CompleteErr = errors.New("model down")

	err := f.orch.HandleSentences(context.Background(), f.sess, units("First.", "Second."))
	if err == nil {
		t.Fatal("want error from failed turns")
	}
	// Both sentences were attempted and both got the apology.
	if len(f.out.emitted) != 2 {
		t.Fatalf("emitted = %v, want two apologies", f.out.emitted)
	}
}

func TestHandleSentencesStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.llm.Responses = responses("ok")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.orch.HandleSentences(ctx, f.sess, units("One.", "Two."))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(f.out.emitted) != 0 {
		t.Errorf("emitted = %v, want none after cancel", f.out.emitted)
	}
}

func TestHandleSentenceMemoryRecallFailureDoesNotBlockAnswer(t *testing.T) {
	f := newFixture(t, nil)
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.store.SearchErr = errors.New("pgvector down")
	f.llm.Responses = responses("Answer anyway.")

	err := f.orch.HandleSentences(context.Background(), f.sess, units("Question?"))
	if err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}
	if len(f.out.emitted) != 1 || f.out.emitted[0] != "Answer anyway." {
		t.Fatalf("emitted = %v", f.out.emitted)
	}
}

func TestHandleSentenceRecordsRouteMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	f := newFixture(t, func(cfg *Config) { cfg.Metrics = m })
	f.actionable.Result = match(true)
	f.contextable.Result = match(false)
	f.llm.Responses = responses("ok")

	if err := f.orch.HandleSentences(context.Background(), f.sess, units("Hello?")); err != nil {
		t.Fatalf("HandleSentences: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "earshot.sentences" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatal("sentence counter recorded no data points")
			}
			dp := sum.DataPoints[0]
			if v, _ := dp.Attributes.Value("route"); v.AsString() != "respond" {
				t.Errorf("route attribute = %q, want respond", v.AsString())
			}
			if dp.Value != 1 {
				t.Errorf("sentence count = %d, want 1", dp.Value)
			}
			return
		}
	}
	t.Fatal("sentence counter not collected")
}

func TestConsoleDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewConsoleDispatcher(&buf)
	if err := d.Emit(context.Background(), "Hello."); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if got := buf.String(); got != "assistant> Hello.\n" {
		t.Errorf("output = %q", got)
	}
}
