package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/earshot-ai/earshot/internal/toolcall/mcpbridge"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":        {"whisper", "whisper-native"},
	"tts":        {"elevenlabs", "coqui"},
	"embeddings": {"openai", "ollama"},
	"vad":        {"rms", "silero"},
	"audio":      {"wav"},
}

// ValidClassifierNames lists known gating classifier implementations.
var ValidClassifierNames = []string{"keyword", "httpapi"}

// ValidBuiltinTools lists the built-in tool names accepted in tools.builtin.
var ValidBuiltinTools = []string{"calculator", "weather_checker", "calendar_scheduler", "none"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must not be negative"))
	}
	if cfg.Audio.Channels < 0 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [0, 2]", cfg.Audio.Channels))
	}
	if cfg.Providers.Audio.Name == "wav" && cfg.Audio.WAVPath == "" {
		errs = append(errs, fmt.Errorf("audio.wav_path is required when providers.audio is \"wav\""))
	}

	// Gate
	if cfg.Gate.Threshold != 0 && (cfg.Gate.Threshold <= 0 || cfg.Gate.Threshold >= 1) {
		errs = append(errs, fmt.Errorf("gate.threshold %.2f is out of range (0, 1)", cfg.Gate.Threshold))
	}
	if cfg.Gate.MinSpeechMs < 0 || cfg.Gate.SpeechPadMs < 0 || cfg.Gate.MaxUtteranceS < 0 {
		errs = append(errs, fmt.Errorf("gate durations must not be negative"))
	}

	// Pipeline
	if cfg.Pipeline.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("pipeline.queue_size must not be negative"))
	}

	// Unknown provider names only warn, so third-party registrations keep working.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; actionable sentences cannot be answered")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; captured utterances cannot be transcribed")
	}

	// Gating classifiers
	errs = append(errs, validateClassifier("gating.actionable", cfg.Gating.Actionable)...)
	errs = append(errs, validateClassifier("gating.contextable", cfg.Gating.Contextable)...)

	// Embeddings ↔ memory dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}

	// Memory availability
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; long-term memory will be kept in process only")
	}
	if cfg.Memory.MaxTurns < 0 || cfg.Memory.RetrieveK < 0 {
		errs = append(errs, fmt.Errorf("memory.max_turns and memory.retrieve_k must not be negative"))
	}

	// Orchestrator
	if cfg.Orchestrator.Temperature < 0 || cfg.Orchestrator.Temperature > 2 {
		errs = append(errs, fmt.Errorf("orchestrator.temperature %.2f is out of range [0, 2]", cfg.Orchestrator.Temperature))
	}
	if cfg.Orchestrator.MaxToolIterations < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.max_tool_iterations must not be negative"))
	}
	if cfg.Orchestrator.Voice.Provider != "" && cfg.Providers.TTS.Name != "" && cfg.Orchestrator.Voice.Provider != cfg.Providers.TTS.Name {
		slog.Warn("orchestrator voice provider does not match configured TTS provider",
			"voice_provider", cfg.Orchestrator.Voice.Provider,
			"tts_provider", cfg.Providers.TTS.Name,
		)
	}

	// Built-in tools
	for _, name := range cfg.Tools.Builtin {
		if !slices.Contains(ValidBuiltinTools, name) {
			errs = append(errs, fmt.Errorf("tools.builtin %q is unknown; valid values: %v", name, ValidBuiltinTools))
		}
	}

	// MCP servers
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcpbridge.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcpbridge.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateClassifier checks one gating classifier entry.
func validateClassifier(prefix string, entry ClassifierEntry) []error {
	var errs []error
	if entry.Name == "" {
		return nil
	}
	if !slices.Contains(ValidClassifierNames, entry.Name) {
		errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: %v", prefix, entry.Name, ValidClassifierNames))
		return errs
	}
	switch entry.Name {
	case "keyword":
		if len(entry.Triggers) == 0 {
			errs = append(errs, fmt.Errorf("%s.triggers is required for the keyword classifier", prefix))
		}
	case "httpapi":
		if entry.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for the httpapi classifier", prefix))
		}
		if entry.Threshold < 0 || entry.Threshold > 1 {
			errs = append(errs, fmt.Errorf("%s.threshold %.2f is out of range [0, 1]", prefix, entry.Threshold))
		}
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
