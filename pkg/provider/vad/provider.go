// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech scorer (e.g., Silero VAD, an energy
// detector, or a custom model) and surfaces it as a stateful, per-stream
// session. Each session maintains its own internal state (smoothing history,
// noise floor estimates) so that multiple concurrent audio streams can be
// scored independently.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a speech
// probability, making it suitable for the low-latency capture loop that feeds
// the voice activity gate. The gate owns all temporal logic — debounce,
// padding, trailing silence — so sessions only need to score single frames.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most VAD
	// models operate on fixed frame sizes (e.g., 10, 20, or 32 ms).
	// ProcessFrame will return an error if the supplied frame does not match
	// this size.
	FrameSizeMs int
}

// Score is the result of scoring a single audio frame.
type Score struct {
	// Probability is the speech probability for the frame (0.0–1.0).
	Probability float64
}

// SessionHandle represents an active VAD session for a single audio stream. It
// is an interface so that test code can supply mock implementations without a
// live engine. Each session maintains its own scoring state; Reset clears this
// state without closing the session.
//
// A SessionHandle should not be shared between goroutines unless the
// implementation explicitly guarantees concurrent safety.
type SessionHandle interface {
	// ProcessFrame scores a single audio frame. The frame must be raw
	// little-endian 16-bit PCM at the SampleRate and FrameSizeMs configured
	// when the session was created. Returns an error if the frame size is
	// wrong or if the engine encounters an internal failure.
	//
	// This method is called synchronously in the capture loop; it must not
	// block.
	ProcessFrame(frame []byte) (Score, error)

	// Reset clears all accumulated scoring state (smoothing history, noise
	// floor) without closing the session. Use this when the audio stream is
	// interrupted or restarted to avoid stale state from the previous segment
	// affecting subsequent frames.
	Reset()

	// Close releases all resources associated with the session. After Close,
	// ProcessFrame and Reset must return errors or be no-ops. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration. The
	// session is immediately ready to accept audio frames.
	//
	// Returns an error if the configuration is invalid (e.g., unsupported
	// sample rate or frame size) or if the engine cannot allocate resources
	// for the session.
	NewSession(cfg Config) (SessionHandle, error)
}
