// Command earshot is the main entry point for the Earshot voice assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/earshot-ai/earshot/internal/app"
	"github.com/earshot-ai/earshot/internal/config"
	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/internal/resilience"
	"github.com/earshot-ai/earshot/internal/server"
	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/provider/classify"
	"github.com/earshot-ai/earshot/pkg/provider/classify/httpapi"
	"github.com/earshot-ai/earshot/pkg/provider/classify/keyword"
	"github.com/earshot-ai/earshot/pkg/provider/embeddings"
	ollamaembed "github.com/earshot-ai/earshot/pkg/provider/embeddings/ollama"
	oaembed "github.com/earshot-ai/earshot/pkg/provider/embeddings/openai"
	"github.com/earshot-ai/earshot/pkg/provider/llm"
	"github.com/earshot-ai/earshot/pkg/provider/llm/anyllm"
	"github.com/earshot-ai/earshot/pkg/provider/stt"
	"github.com/earshot-ai/earshot/pkg/provider/stt/whisper"
	"github.com/earshot-ai/earshot/pkg/provider/tts"
	"github.com/earshot-ai/earshot/pkg/provider/tts/coqui"
	"github.com/earshot-ai/earshot/pkg/provider/tts/elevenlabs"
	"github.com/earshot-ai/earshot/pkg/provider/vad"
	"github.com/earshot-ai/earshot/pkg/provider/vad/rms"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "earshot: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "earshot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(logLevel))

	slog.Info("earshot starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Log level changes apply live; anything else needs a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(logLevel, old, new)
	})
	if err != nil {
		slog.Warn("config watcher unavailable; edits require a restart", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "earshot"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Operational HTTP server ───────────────────────────────────────────────
	var httpSrv *server.Server
	if cfg.Server.ListenAddr != "" {
		startedAt := time.Now()
		httpSrv = server.New(server.Config{
			ListenAddr: cfg.Server.ListenAddr,
			State: func() server.State {
				return server.State{
					SessionID:      application.SessionID(),
					StartedAt:      startedAt,
					Answered:       application.Orchestrator().Answered(),
					Discarded:      application.Orchestrator().Discarded(),
					Turns:          len(application.Memory().Turns()),
					MemoryDegraded: application.MemoryDegraded(),
				}
			},
		})
		go func() {
			if err := httpSrv.Start(); err != nil {
				slog.Error("http server error", "err", err)
			}
		}()
	}

	slog.Info("earshot listening; press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")

	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config entry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	// Both names run the in-process whisper.cpp bindings; Model (or
	// options.model_path) points at the GGML model file.
	for _, providerName := range []string{"whisper", "whisper-native"} {
		reg.RegisterSTT(providerName, func(entry config.ProviderEntry) (stt.Provider, error) {
			modelPath := entry.Model
			if modelPath == "" {
				modelPath = optString(entry.Options, "model_path")
			}
			var opts []whisper.Option
			if lang := optString(entry.Options, "language"); lang != "" {
				opts = append(opts, whisper.WithLanguage(lang))
			}
			return whisper.New(modelPath, opts...)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("rms", func(_ config.ProviderEntry) (vad.Engine, error) {
		return rms.New(), nil
	})

	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio("wav", func(cfg *config.Config) (audio.Source, error) {
		var opts []audio.FileOption
		if ms := cfg.Audio.FrameDurationMs; ms > 0 {
			opts = append(opts, audio.WithFrameDuration(time.Duration(ms)*time.Millisecond))
		}
		opts = append(opts, audio.WithRealtimePacing())
		return audio.NewFileSource(cfg.Audio.WAVPath, opts...)
	})

	// ── Gating classifiers ────────────────────────────────────────────────────

	reg.RegisterClassifier("keyword", func(entry config.ClassifierEntry) (classify.Classifier, error) {
		return keyword.New(entry.Triggers), nil
	})

	reg.RegisterClassifier("httpapi", func(entry config.ClassifierEntry) (classify.Classifier, error) {
		var opts []httpapi.Option
		if entry.Threshold > 0 {
			opts = append(opts, httpapi.WithThreshold(entry.Threshold))
		}
		return httpapi.New(entry.BaseURL, entry.PositiveLabel, entry.NegativeLabel, opts...)
	})
}

// fallbackConfig is the circuit-breaker policy applied to every wrapped
// provider.
func fallbackConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 5},
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. LLM, STT and TTS providers are wrapped in circuit-breaking
// fallback groups.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = resilience.NewLLMFallback(p, name, fallbackConfig())
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = resilience.NewSTTFallback(p, name, fallbackConfig())
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = resilience.NewTTSFallback(p, name, fallbackConfig())
		slog.Info("provider created", "kind", "tts", "name", name)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return nil, fmt.Errorf("create vad engine %q: %w", name, err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", name)
	}

	if name := cfg.Providers.Audio.Name; name != "" {
		p, err := reg.CreateAudio(cfg)
		if err != nil {
			return nil, fmt.Errorf("create audio source %q: %w", name, err)
		}
		ps.Audio = p
		slog.Info("provider created", "kind", "audio", "name", name)
	}

	if name := cfg.Gating.Actionable.Name; name != "" {
		c, err := reg.CreateClassifier(cfg.Gating.Actionable)
		if err != nil {
			return nil, fmt.Errorf("create actionable classifier %q: %w", name, err)
		}
		ps.Actionable = c
		slog.Info("classifier created", "kind", "actionable", "name", name)
	}

	if name := cfg.Gating.Contextable.Name; name != "" {
		c, err := reg.CreateClassifier(cfg.Gating.Contextable)
		if err != nil {
			return nil, fmt.Errorf("create contextable classifier %q: %w", name, err)
		}
		ps.Contextable = c
		slog.Info("classifier created", "kind", "contextable", "name", name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Earshot — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	printProvider("Audio", cfg.Providers.Audio.Name, "")
	printProvider("Actionable", cfg.Gating.Actionable.Name, "")
	printProvider("Contextable", cfg.Gating.Contextable.Name, "")
	fmt.Printf("║  Builtin tools   : %-19d ║\n", len(cfg.Tools.Builtin))
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(lvl *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// applyConfigChange applies the hot-reloadable parts of an edited config and
// points out the parts that still need a restart.
func applyConfigChange(lvl *slog.LevelVar, old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}
	if d.LogLevelChanged {
		lvl.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.GatingChanged {
		slog.Warn("gating classifiers changed on disk; restart to apply")
	}
	if d.OrchestratorChanged {
		slog.Warn("orchestrator settings changed on disk; restart to apply")
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
