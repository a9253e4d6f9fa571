// Package whisper provides an stt.Provider backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/earshot-ai/earshot/pkg/provider/stt"
	"github.com/earshot-ai/earshot/pkg/types"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once at startup and
// shared across all transcriptions.
type Provider struct {
	model    whisperlib.Model
	language string

	// mu serialises inference. Whisper contexts are created per call and the
	// bindings allow sharing the model, but keeping one inference in flight at
	// a time bounds memory on small machines.
	mu     sync.Mutex
	closed bool
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The model is loaded once; the caller must call Close when the provider
// is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. It converts the clip to float32 mono
// samples, runs whisper.cpp inference on a fresh context, and returns the
// concatenated segment text. Clips with no recognisable speech produce an
// empty Transcript and a nil error.
func (p *Provider) Transcribe(ctx context.Context, clip stt.Clip) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return types.Transcript{}, errors.New("whisper: provider is closed")
	}

	lang := clip.Language
	if lang == "" {
		lang = p.language
	}
	channels := clip.Channels
	if channels <= 0 {
		channels = 1
	}
	sampleRate := clip.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	samples := pcmToFloat32Mono(clip.PCM, channels)

	// Create a new whisper context for this inference. Each context is NOT
	// thread-safe, but the model can be shared across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	// Collect segments.
	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	dur := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)

	return types.Transcript{
		Text:          strings.Join(parts, " "),
		Language:      lang,
		AudioDuration: dur,
	}, nil
}
