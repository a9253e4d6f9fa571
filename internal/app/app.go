// Package app wires all Earshot subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the capture and processing stages until the
// context is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithTranscriptLog,
// WithSemanticStore, WithDispatcher, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/earshot-ai/earshot/internal/command"
	"github.com/earshot-ai/earshot/internal/config"
	"github.com/earshot-ai/earshot/internal/gate"
	"github.com/earshot-ai/earshot/internal/gating"
	"github.com/earshot-ai/earshot/internal/orchestrator"
	"github.com/earshot-ai/earshot/internal/segment"
	"github.com/earshot-ai/earshot/internal/session"
	"github.com/earshot-ai/earshot/internal/toolcall"
	"github.com/earshot-ai/earshot/internal/toolcall/mcpbridge"
	"github.com/earshot-ai/earshot/internal/tools/calculator"
	"github.com/earshot-ai/earshot/internal/tools/calendar"
	"github.com/earshot-ai/earshot/internal/tools/weather"
	"github.com/earshot-ai/earshot/internal/transcript"
	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/memory"
	"github.com/earshot-ai/earshot/pkg/memory/inproc"
	"github.com/earshot-ai/earshot/pkg/memory/postgres"
	"github.com/earshot-ai/earshot/pkg/provider/classify"
	"github.com/earshot-ai/earshot/pkg/provider/embeddings"
	"github.com/earshot-ai/earshot/pkg/provider/llm"
	"github.com/earshot-ai/earshot/pkg/provider/stt"
	"github.com/earshot-ai/earshot/pkg/provider/tts"
	"github.com/earshot-ai/earshot/pkg/provider/vad"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM         llm.Provider
	STT         stt.Provider
	TTS         tts.Provider
	Embeddings  embeddings.Provider
	VAD         vad.Engine
	Audio       audio.Source
	Actionable  classify.Classifier
	Contextable classify.Classifier
}

// App owns all subsystem lifetimes and runs the Earshot listening pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New, torn down in Shutdown.
	log        memory.TranscriptLog
	store      memory.SemanticStore
	registry   *toolcall.Registry
	bridge     *mcpbridge.Bridge
	gatePipe   *gating.Pipeline
	engine     *toolcall.Engine
	mem        *session.ContextMemory
	logGuard   *session.LogGuard
	orch       *orchestrator.Orchestrator
	dispatcher orchestrator.Dispatcher
	player     orchestrator.Player
	sessionID  string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTranscriptLog injects a transcript log instead of creating one from config.
func WithTranscriptLog(l memory.TranscriptLog) Option {
	return func(a *App) { a.log = l }
}

// WithSemanticStore injects a semantic store instead of creating one from config.
func WithSemanticStore(s memory.SemanticStore) Option {
	return func(a *App) { a.store = s }
}

// WithDispatcher injects a reply dispatcher instead of the default
// console/speech dispatcher.
func WithDispatcher(d orchestrator.Dispatcher) Option {
	return func(a *App) { a.dispatcher = d }
}

// WithPlayer injects an audio playback sink for synthesized replies.
// Only used when a TTS provider is configured.
func WithPlayer(p orchestrator.Player) Option {
	return func(a *App) { a.player = p }
}

// WithToolRegistry injects a tool registry instead of building one from the
// tools and mcp config sections.
func WithToolRegistry(r *toolcall.Registry) Option {
	return func(a *App) { a.registry = r }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: memory store connection, MCP
// server registration, tool registry assembly, gating pipeline and
// orchestrator construction.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		sessionID: fmt.Sprintf("session-%d", time.Now().Unix()),
	}
	for _, o := range opts {
		o(a)
	}

	if providers.STT == nil {
		return nil, fmt.Errorf("app: an stt provider is required")
	}
	if providers.LLM == nil {
		return nil, fmt.Errorf("app: an llm provider is required")
	}
	if providers.Actionable == nil || providers.Contextable == nil {
		return nil, fmt.Errorf("app: both gating classifiers are required")
	}

	if err := a.initMemory(ctx); err != nil {
		return nil, fmt.Errorf("app: init memory: %w", err)
	}
	if err := a.initTools(ctx); err != nil {
		return nil, fmt.Errorf("app: init tools: %w", err)
	}
	if err := a.initOrchestrator(); err != nil {
		return nil, fmt.Errorf("app: init orchestrator: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initMemory sets up the PostgreSQL memory store, or an in-process store when
// no DSN is configured, or uses injected doubles.
func (a *App) initMemory(ctx context.Context) error {
	if a.log != nil && a.store != nil {
		return nil // both injected
	}

	dsn := a.cfg.Memory.PostgresDSN
	if dsn == "" {
		slog.Warn("memory.postgres_dsn is empty; conversation memory will not survive restarts")
		mem := inproc.New()
		if a.log == nil {
			a.log = mem
		}
		if a.store == nil {
			a.store = mem
		}
		return nil
	}

	dims := a.cfg.Memory.EmbeddingDimensions
	if dims == 0 {
		dims = 1536 // matches OpenAI text-embedding-3-small
	}

	store, err := postgres.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}

	if a.log == nil {
		a.log = store.Log()
	}
	if a.store == nil {
		a.store = store.Semantic()
	}

	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initTools assembles the tool registry from the builtin list and the
// configured MCP servers.
func (a *App) initTools(ctx context.Context) error {
	if a.registry == nil {
		a.registry = toolcall.NewRegistry()

		for _, name := range a.cfg.Tools.Builtin {
			var t toolcall.Tool
			switch name {
			case "calculator":
				t = calculator.New()
			case "weather_checker":
				t = weather.New()
			case "calendar_scheduler":
				t = calendar.New()
			case "none":
				continue
			default:
				return fmt.Errorf("unknown builtin tool %q", name)
			}
			if err := a.registry.Register(t); err != nil {
				return fmt.Errorf("register builtin tool %q: %w", name, err)
			}
			slog.Info("registered builtin tool", "name", name)
		}
	}

	if len(a.cfg.MCP.Servers) == 0 {
		return nil
	}

	a.bridge = mcpbridge.New()
	a.closers = append(a.closers, a.bridge.Close)

	for _, srv := range a.cfg.MCP.Servers {
		tools, err := a.bridge.Connect(ctx, mcpbridge.ServerConfig{
			Name:      srv.Name,
			Transport: srv.Transport,
			Command:   srv.Command,
			URL:       srv.URL,
			Env:       srv.Env,
		})
		if err != nil {
			return fmt.Errorf("connect mcp server %q: %w", srv.Name, err)
		}
		for _, t := range tools {
			if err := a.registry.Register(t); err != nil {
				return fmt.Errorf("register mcp tool from %q: %w", srv.Name, err)
			}
		}
		slog.Info("registered MCP server", "name", srv.Name, "tools", len(tools))
	}

	return nil
}

// initOrchestrator builds the gating pipeline, context memory, tool-call
// engine, dispatcher, and the orchestrator itself.
func (a *App) initOrchestrator() error {
	gatePipe, err := gating.New(a.providers.Actionable, a.providers.Contextable)
	if err != nil {
		return err
	}
	a.gatePipe = gatePipe

	// Memory failures degrade, they never stop the pipeline.
	a.logGuard = session.NewLogGuard(a.log)

	a.mem = session.NewContextMemory(session.ContextMemoryConfig{
		SessionID: a.sessionID,
		MaxTurns:  a.cfg.Memory.MaxTurns,
		RetrieveK: a.cfg.Memory.RetrieveK,
		Embedder:  a.providers.Embeddings,
		Store:     a.store,
		Log:       a.logGuard,
	})

	var engineOpts []toolcall.EngineOption
	if n := a.cfg.Orchestrator.MaxToolIterations; n > 0 {
		engineOpts = append(engineOpts, toolcall.WithMaxIterations(n))
	}
	a.engine = toolcall.NewEngine(a.registry, a.providers.LLM, engineOpts...)

	a.initDispatcher()

	orch, err := orchestrator.New(orchestrator.Config{
		Gate:         a.gatePipe,
		Engine:       a.engine,
		Registry:     a.registry,
		Commands:     command.New(),
		Dispatcher:   a.dispatcher,
		SystemPrompt: a.cfg.Orchestrator.SystemPrompt,
		Temperature:  a.cfg.Orchestrator.Temperature,
		MaxTokens:    a.cfg.Orchestrator.MaxTokens,
		RetrieveK:    a.cfg.Memory.RetrieveK,
	})
	if err != nil {
		return err
	}
	a.orch = orch
	return nil
}

// initDispatcher picks the reply sink: spoken replies when a TTS provider and
// a player are available, console output otherwise.
func (a *App) initDispatcher() {
	if a.dispatcher != nil {
		return
	}

	console := orchestrator.NewConsoleDispatcher(os.Stdout)
	if a.providers.TTS == nil || a.player == nil {
		a.dispatcher = console
		return
	}

	voice := tts.Voice{
		ID:       a.cfg.Orchestrator.Voice.VoiceID,
		Provider: a.cfg.Orchestrator.Voice.Provider,
	}
	a.dispatcher = orchestrator.NewSpeechDispatcher(a.providers.TTS, voice, a.player, console, slog.Default())
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// SessionID returns the identifier transcript entries and memories are
// recorded under.
func (a *App) SessionID() string { return a.sessionID }

// Memory returns the session context memory, mainly for status endpoints.
func (a *App) Memory() *session.ContextMemory { return a.mem }

// Orchestrator returns the sentence orchestrator, mainly for status endpoints.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// MemoryDegraded reports whether a transcript log write has failed since
// startup.
func (a *App) MemoryDegraded() bool { return a.logGuard.IsDegraded() }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.providers.Audio != nil {
			if err := a.providers.Audio.Close(); err != nil {
				slog.Warn("audio source close error", "err", err)
			}
		}
		if a.providers.STT != nil {
			if err := a.providers.STT.Close(); err != nil {
				slog.Warn("stt provider close error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Config mapping ──────────────────────────────────────────────────────────

// assemblerConfig maps the audio and gate config sections onto a
// [segment.Config], applying the pipeline defaults for unset values.
func (a *App) assemblerConfig() segment.Config {
	sampleRate := a.cfg.Audio.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	channels := a.cfg.Audio.Channels
	if channels == 0 {
		channels = 1
	}
	frameDur := time.Duration(a.cfg.Audio.FrameDurationMs) * time.Millisecond
	if frameDur == 0 {
		frameDur = 30 * time.Millisecond
	}

	threshold := a.cfg.Gate.Threshold
	if threshold == 0 {
		threshold = 0.6
	}
	minSpeech := time.Duration(a.cfg.Gate.MinSpeechMs) * time.Millisecond
	if minSpeech == 0 {
		minSpeech = 250 * time.Millisecond
	}
	pad := time.Duration(a.cfg.Gate.SpeechPadMs) * time.Millisecond
	if pad == 0 {
		pad = 300 * time.Millisecond
	}
	maxUtterance := time.Duration(a.cfg.Gate.MaxUtteranceS) * time.Second
	if maxUtterance == 0 {
		maxUtterance = 30 * time.Second
	}

	return segment.Config{
		Gate: gate.Config{
			Threshold:         threshold,
			MinSpeechDuration: minSpeech,
			SpeechPad:         pad,
			FrameDuration:     frameDur,
		},
		MaxUtteranceDuration: maxUtterance,
		SampleRate:           sampleRate,
		Channels:             channels,
	}
}

// newTranscriptStream builds the processing-stage transcript stream.
func (a *App) newTranscriptStream() *transcript.Stream {
	return transcript.NewStream(a.providers.STT)
}
