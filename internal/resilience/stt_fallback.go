package resilience

import (
	"context"
	"errors"

	"github.com/earshot-ai/earshot/pkg/provider/stt"
	"github.com/earshot-ai/earshot/pkg/types"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe hands the clip to the first healthy provider. If the primary
// fails, subsequent fallbacks are tried with the same clip.
func (f *STTFallback) Transcribe(ctx context.Context, clip stt.Clip) (types.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (types.Transcript, error) {
		return p.Transcribe(ctx, clip)
	})
}

// Close closes every registered backend and returns the combined error.
func (f *STTFallback) Close() error {
	var errs []error
	for _, e := range f.group.entries {
		if err := e.value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
