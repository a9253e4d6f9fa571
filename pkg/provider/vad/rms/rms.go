// Package rms provides a pure-Go VAD engine based on RMS energy with an
// adaptive noise floor. It needs no model files or CGO, making it the default
// backend for development and the fallback when a neural VAD is unavailable.
//
// The probability mapping is deliberately simple: the session tracks a slowly
// adapting noise floor and maps the ratio of frame energy to that floor onto
// [0, 1] with a soft knee. A well-tuned neural model will outperform it in
// noisy rooms, but for close-mic capture the energy signal is a reliable
// speech indicator.
package rms

import (
	"errors"
	"fmt"
	"math"

	"github.com/earshot-ai/earshot/pkg/provider/vad"
)

const (
	// floorAdapt is the exponential smoothing factor applied to the noise
	// floor while the signal is quiet. Smaller adapts slower.
	floorAdapt = 0.05

	// minFloor prevents the noise floor from collapsing to zero in digital
	// silence, which would make any non-zero frame score 1.0.
	minFloor = 0.0025

	// speechRatio is the energy-to-floor ratio mapped to probability 0.5.
	speechRatio = 4.0
)

// Engine implements [vad.Engine] using RMS energy scoring.
type Engine struct{}

// New returns a ready-to-use RMS engine.
func New() *Engine { return &Engine{} }

// Compile-time assertion that Engine satisfies vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("rms vad: SampleRate must be positive")
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, errors.New("rms vad: FrameSizeMs must be positive")
	}
	return &session{
		frameBytes: cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
		floor:      minFloor,
	}, nil
}

// session is an RMS scoring session for a single stream. Not safe for
// concurrent use; the capture loop owns it.
type session struct {
	frameBytes int
	floor      float64
	closed     bool
}

var _ vad.SessionHandle = (*session)(nil)

// ProcessFrame implements [vad.SessionHandle].
func (s *session) ProcessFrame(frame []byte) (vad.Score, error) {
	if s.closed {
		return vad.Score{}, errors.New("rms vad: session is closed")
	}
	if len(frame) != s.frameBytes {
		// Trailing file frames may be short; score what is there as long as
		// the data is sample-aligned.
		if len(frame) == 0 || len(frame)%2 != 0 || len(frame) > s.frameBytes {
			return vad.Score{}, fmt.Errorf("rms vad: frame size %d bytes, want %d", len(frame), s.frameBytes)
		}
	}

	level := rmsLevel(frame)

	// Adapt the noise floor only on quiet frames so sustained speech does not
	// raise it.
	if level < s.floor*2 {
		s.floor += floorAdapt * (level - s.floor)
		if s.floor < minFloor {
			s.floor = minFloor
		}
	}

	ratio := level / s.floor
	prob := ratio / (ratio + speechRatio)
	if prob > 1 {
		prob = 1
	}
	return vad.Score{Probability: prob}, nil
}

// Reset implements [vad.SessionHandle].
func (s *session) Reset() {
	s.floor = minFloor
}

// Close implements [vad.SessionHandle].
func (s *session) Close() error {
	s.closed = true
	return nil
}

// rmsLevel computes the root-mean-square level of little-endian int16 PCM,
// normalised to [0, 1].
func rmsLevel(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum/float64(samples)) / 32768
}
