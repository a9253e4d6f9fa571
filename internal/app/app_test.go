package app_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/earshot-ai/earshot/internal/app"
	"github.com/earshot-ai/earshot/internal/config"
	"github.com/earshot-ai/earshot/pkg/audio"
	audiomock "github.com/earshot-ai/earshot/pkg/audio/mock"
	memorymock "github.com/earshot-ai/earshot/pkg/memory/mock"
	"github.com/earshot-ai/earshot/pkg/provider/classify"
	classifymock "github.com/earshot-ai/earshot/pkg/provider/classify/mock"
	embedmock "github.com/earshot-ai/earshot/pkg/provider/embeddings/mock"
	"github.com/earshot-ai/earshot/pkg/provider/llm"
	llmmock "github.com/earshot-ai/earshot/pkg/provider/llm/mock"
	sttmock "github.com/earshot-ai/earshot/pkg/provider/stt/mock"
	vadmock "github.com/earshot-ai/earshot/pkg/provider/vad/mock"
	"github.com/earshot-ai/earshot/pkg/types"
)

// testConfig returns a config with a permissive gate: two 30ms speech frames
// confirm an utterance, two silence frames close it.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Audio: config.AudioConfig{
			SampleRate:      16000,
			Channels:        1,
			FrameDurationMs: 30,
		},
		Gate: config.GateConfig{
			Threshold:   0.5,
			MinSpeechMs: 60,
			SpeechPadMs: 60,
		},
		Pipeline: config.PipelineConfig{QueueSize: 4},
		Orchestrator: config.OrchestratorConfig{
			SystemPrompt: "You are a helpful voice assistant.",
		},
	}
}

// recorder is a thread-safe dispatcher capturing emitted replies.
type recorder struct {
	mu      sync.Mutex
	emitted []string
}

func (r *recorder) Emit(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted = append(r.emitted, text)
	return nil
}

func (r *recorder) replies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.emitted...)
}

type fixture struct {
	cfg       *config.Config
	source    *audiomock.Source
	vad       *vadmock.Session
	stt       *sttmock.Provider
	llm       *llmmock.Provider
	out       *recorder
	providers *app.Providers
}

func newFixture() *fixture {
	f := &fixture{
		cfg:    testConfig(),
		source: audiomock.NewSource(64),
		vad:    &vadmock.Session{},
		stt:    &sttmock.Provider{},
		llm:    &llmmock.Provider{},
		out:    &recorder{},
	}
	f.providers = &app.Providers{
		LLM:         f.llm,
		STT:         f.stt,
		VAD:         &vadmock.Engine{NewSessionResult: f.vad},
		Audio:       f.source,
		Actionable:  &classifymock.Classifier{Result: classify.Result{Match: true, Confidence: 0.9}},
		Contextable: &classifymock.Classifier{Result: classify.Result{Match: false, Confidence: 0.1}},
	}
	return f
}

// pushFrames feeds n frames of 30ms mono PCM, then ends the capture.
func (f *fixture) pushFrames(n int) {
	pcm := make([]byte, 960) // 30ms of 16kHz mono 16-bit
	for i := range n {
		f.source.Push(audio.AudioFrame{
			Data:       pcm,
			SampleRate: 16000,
			Channels:   1,
			Timestamp:  time.Duration(i) * 30 * time.Millisecond,
		})
	}
	f.source.Finish()
}

func TestNew_RequiresCoreProviders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*app.Providers)
		wantSub string
	}{
		{"missing stt", func(p *app.Providers) { p.STT = nil }, "stt"},
		{"missing llm", func(p *app.Providers) { p.LLM = nil }, "llm"},
		{"missing classifier", func(p *app.Providers) { p.Actionable = nil }, "classifiers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.mutate(f.providers)
			_, err := app.New(ctx, f.cfg, f.providers)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error should mention %q, got: %v", tt.wantSub, err)
			}
		})
	}
}

func TestNew_UnknownBuiltinTool(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.cfg.Tools.Builtin = []string{"time_machine"}
	_, err := app.New(context.Background(), f.cfg, f.providers)
	if err == nil || !strings.Contains(err.Error(), "time_machine") {
		t.Fatalf("expected unknown tool error, got: %v", err)
	}
}

func TestRun_AnswersActionableUtterance(t *testing.T) {
	t.Parallel()
	f := newFixture()

	// Speech for 4 frames, then silence closes the utterance.
	f.vad.Probabilities = []float64{0.9, 0.9, 0.9, 0.9, 0.1}
	f.stt.Transcripts = []types.Transcript{{Text: "What time is it?"}}
	f.llm.Responses = []*llm.CompletionResponse{{Content: "It is noon."}}

	application, err := app.New(context.Background(), f.cfg, f.providers, app.WithDispatcher(f.out))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	f.pushFrames(12)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	replies := f.out.replies()
	if len(replies) != 1 || replies[0] != "It is noon." {
		t.Errorf("replies: got %v, want [It is noon.]", replies)
	}
	if len(f.stt.TranscribeCalls) != 1 {
		t.Errorf("Transcribe calls: got %d, want 1", len(f.stt.TranscribeCalls))
	}
}

func TestRun_ProcessesUtterancesInOrder(t *testing.T) {
	t.Parallel()
	f := newFixture()

	// Two speech bursts separated by enough silence to close the first
	// utterance: the pad is 2 frames at 30ms.
	f.vad.Probabilities = []float64{
		0.9, 0.9, 0.9, 0.9, // utterance 1
		0.1, 0.1, 0.1, 0.1,
		0.9, 0.9, 0.9, 0.9, // utterance 2
		0.1,
	}
	f.stt.Transcripts = []types.Transcript{
		{Text: "First question?"},
		{Text: "Second question?"},
	}
	f.llm.Responses = []*llm.CompletionResponse{
		{Content: "First answer."},
		{Content: "Second answer."},
	}

	application, err := app.New(context.Background(), f.cfg, f.providers, app.WithDispatcher(f.out))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	f.pushFrames(20)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	replies := f.out.replies()
	want := []string{"First answer.", "Second answer."}
	if len(replies) != len(want) {
		t.Fatalf("replies: got %v, want %v", replies, want)
	}
	for i := range want {
		if replies[i] != want[i] {
			t.Errorf("replies[%d]: got %q, want %q", i, replies[i], want[i])
		}
	}
}

func TestRun_TranscriptionFailureSkipsUtterance(t *testing.T) {
	t.Parallel()
	f := newFixture()

	f.vad.Probabilities = []float64{0.9, 0.9, 0.9, 0.9, 0.1}
	f.stt.TranscribeErr = context.DeadlineExceeded
	f.llm.Responses = []*llm.CompletionResponse{{Content: "never spoken"}}

	application, err := app.New(context.Background(), f.cfg, f.providers, app.WithDispatcher(f.out))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	f.pushFrames(12)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run should survive transcription failures, got: %v", err)
	}

	if replies := f.out.replies(); len(replies) != 0 {
		t.Errorf("expected no replies after failed transcription, got %v", replies)
	}
	if len(f.llm.CompleteCalls) != 0 {
		t.Errorf("model should not be called for a failed transcription, got %d calls", len(f.llm.CompleteCalls))
	}
}

func TestRun_CaptureGapResetsGateWithoutStopping(t *testing.T) {
	t.Parallel()
	f := newFixture()

	f.vad.Probabilities = []float64{0.9, 0.9, 0.9, 0.9, 0.1}
	f.stt.Transcripts = []types.Transcript{{Text: "Still listening?"}}
	f.llm.Responses = []*llm.CompletionResponse{{Content: "Yes."}}

	application, err := app.New(context.Background(), f.cfg, f.providers, app.WithDispatcher(f.out))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	f.source.PushGap(500 * time.Millisecond)
	f.pushFrames(12)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run should survive capture gaps, got: %v", err)
	}

	if replies := f.out.replies(); len(replies) != 1 {
		t.Errorf("expected 1 reply after the gap, got %v", replies)
	}
}

func TestRun_EmptyTranscriptionIsSilent(t *testing.T) {
	t.Parallel()
	f := newFixture()

	f.vad.Probabilities = []float64{0.9, 0.9, 0.9, 0.9, 0.1}
	f.stt.Transcripts = []types.Transcript{{Text: "[BLANK_AUDIO]"}}

	application, err := app.New(context.Background(), f.cfg, f.providers, app.WithDispatcher(f.out))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	f.pushFrames(12)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if replies := f.out.replies(); len(replies) != 0 {
		t.Errorf("expected no replies for artifact-only audio, got %v", replies)
	}
	if len(f.llm.CompleteCalls) != 0 {
		t.Errorf("model should not see empty transcriptions, got %d calls", len(f.llm.CompleteCalls))
	}
}

func TestRun_CancelStopsPipeline(t *testing.T) {
	t.Parallel()
	f := newFixture()

	application, err := app.New(context.Background(), f.cfg, f.providers, app.WithDispatcher(f.out))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run: got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_RemembersContextableSentences(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.providers.Actionable = &classifymock.Classifier{Result: classify.Result{Match: false, Confidence: 0.1}}
	f.providers.Contextable = &classifymock.Classifier{Result: classify.Result{Match: true, Confidence: 0.9}}
	f.providers.Embeddings = &embedmock.Provider{
		EmbedResult:     []float32{0.1, 0.2, 0.3},
		DimensionsValue: 3,
	}

	store := &memorymock.SemanticStore{}

	f.vad.Probabilities = []float64{0.9, 0.9, 0.9, 0.9, 0.1}
	f.stt.Transcripts = []types.Transcript{{Text: "My keys are on the kitchen counter."}}

	application, err := app.New(context.Background(), f.cfg, f.providers,
		app.WithDispatcher(f.out),
		app.WithSemanticStore(store),
		app.WithTranscriptLog(&memorymock.TranscriptLog{}),
	)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	f.pushFrames(12)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.Remembered) != 1 {
		t.Fatalf("remembered entries: got %d, want 1", len(store.Remembered))
	}
	if got := store.Remembered[0].Text; got != "My keys are on the kitchen counter." {
		t.Errorf("remembered text: got %q", got)
	}
	if replies := f.out.replies(); len(replies) != 0 {
		t.Errorf("contextable-only sentences must not produce replies, got %v", replies)
	}
}

func TestShutdown_ClosesProviders(t *testing.T) {
	t.Parallel()
	f := newFixture()

	application, err := app.New(context.Background(), f.cfg, f.providers, app.WithDispatcher(f.out))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if f.source.CallCountClose != 1 {
		t.Errorf("audio source Close calls: got %d, want 1", f.source.CallCountClose)
	}
	if f.stt.CallCountClose != 1 {
		t.Errorf("stt Close calls: got %d, want 1", f.stt.CallCountClose)
	}

	// Shutdown is idempotent.
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
