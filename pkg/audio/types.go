// Package audio defines the frame types and capture-source abstraction for the
// Earshot pipeline.
//
// Audio enters the system as a stream of fixed-duration [AudioFrame] values
// produced by a [Source] (a microphone device, a WAV file in tests, or a mock).
// Frames are the atomic unit of transport: the voice activity gate scores them
// one at a time and the utterance assembler concatenates them into clips for
// transcription.
package audio

import "time"

// AudioFrame represents a single frame of audio data flowing through the
// pipeline. Data is raw little-endian 16-bit signed PCM.
type AudioFrame struct {
	// PCM audio data. Sample rate and channel count are determined by the
	// capture config.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT input).
	SampleRate int

	// Channels: 1 for mono capture, 2 for stereo devices before downmix.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame's PCM data. Returns zero
// for frames with missing format information.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 || len(f.Data) == 0 {
		return 0
	}
	samples := len(f.Data) / (2 * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Source is a continuous producer of audio frames.
//
// Frames returns a receive-only channel that emits frames in capture order.
// The channel is closed when the source is exhausted (end of file) or closed.
// A Source never blocks its producer on a slow consumer for longer than its
// internal buffer allows; capture devices drop frames instead and report the
// gap through Gaps.
type Source interface {
	// Frames returns the frame stream. The same channel is returned on every
	// call.
	Frames() <-chan AudioFrame

	// Gaps returns a channel that emits the duration of audio lost whenever
	// the consumer fell behind and capture frames had to be discarded.
	// Sources that cannot drop (e.g., file sources) return a channel that
	// never emits.
	Gaps() <-chan time.Duration

	// Close stops capture and closes the Frames channel. Calling Close more
	// than once is safe.
	Close() error
}
