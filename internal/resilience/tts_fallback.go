package resilience

import (
	"context"

	"github.com/earshot-ai/earshot/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy provider. If the primary
// fails, subsequent fallbacks are tried; the fallback voice may differ from
// the requested one when the voice is provider-specific.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (tts.Audio, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.Voice, error) {
		return p.ListVoices(ctx)
	})
}
