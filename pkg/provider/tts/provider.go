// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., a local Coqui server
// or the ElevenLabs API) behind a one-shot interface: the orchestrator hands a
// complete response text to Synthesize and receives the rendered PCM audio.
// Earshot speaks one assistant reply per utterance, so there is no streaming
// handoff between token generation and synthesis.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Audio is a synthesised PCM clip.
type Audio struct {
	// PCM is little-endian 16-bit signed PCM.
	PCM []byte

	// SampleRate is the number of samples per second (e.g., 22050, 24000).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Voice identifies a synthesis voice offered by a provider.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS backend this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text into a single PCM clip using the given voice.
	// An empty text returns a zero-value Audio and no error. Providers should
	// return an error if the requested voice is not available.
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)

	// ListVoices returns all voices available from this provider. The list
	// reflects the provider's current catalogue and may change between calls.
	ListVoices(ctx context.Context) ([]Voice, error)
}
