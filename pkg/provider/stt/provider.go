// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (e.g., whisper.cpp via CGO, or
// a local inference server) behind a one-shot interface: the caller hands over
// one complete utterance clip and receives exactly one [types.Transcript].
// Utterance segmentation happens upstream in the voice activity gate, so
// providers never see partial or overlapping audio and never need streaming
// session state.
//
// Implementations must be safe for concurrent use; the pipeline transcribes
// utterances strictly sequentially, but health checks may probe concurrently.
package stt

import (
	"context"

	"github.com/earshot-ai/earshot/pkg/types"
)

// Clip is one complete utterance of audio handed to a Provider.
type Clip struct {
	// PCM is raw little-endian 16-bit signed PCM audio.
	PCM []byte

	// SampleRate is the audio sample rate in Hz. Common value: 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// engines). Implementors may downmix multi-channel input internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en", "de").
	// An empty string uses the provider default.
	Language string
}

// Provider is the abstraction over any STT backend.
//
// Transcribe blocks until the full clip has been processed or ctx is
// cancelled. A clip that contains no recognisable speech yields a Transcript
// with an empty Text and a nil error — absence of speech is not a failure.
type Provider interface {
	// Transcribe converts one utterance clip to text.
	Transcribe(ctx context.Context, clip Clip) (types.Transcript, error)

	// Close releases all resources held by the provider (loaded models,
	// connections). After Close, Transcribe must return an error. Calling
	// Close more than once is safe and returns nil.
	Close() error
}
