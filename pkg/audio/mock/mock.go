// Package mock provides an in-memory mock implementation of the [audio.Source]
// interface for use in unit tests.
//
// The mock is safe for concurrent use. Tests push frames through the exported
// channel and close it to signal end of capture:
//
//	src := mock.NewSource(16)
//	src.Push(audio.AudioFrame{Data: pcm, SampleRate: 16000, Channels: 1})
//	src.Finish()
package mock

import (
	"sync"
	"time"

	"github.com/earshot-ai/earshot/pkg/audio"
)

// Source is a mock implementation of [audio.Source]. Frames pushed via Push
// appear on the Frames channel in order; simulated capture gaps are emitted
// via PushGap.
type Source struct {
	frames chan audio.AudioFrame
	gaps   chan time.Duration

	mu       sync.Mutex
	finished bool

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSource creates a mock source whose Frames channel has the given buffer
// capacity.
func NewSource(buffer int) *Source {
	return &Source{
		frames: make(chan audio.AudioFrame, buffer),
		gaps:   make(chan time.Duration, 4),
	}
}

// Push queues a frame for the consumer. Blocks when the buffer is full.
// Panics if called after Finish or Close, mirroring a send on a closed channel.
func (s *Source) Push(frame audio.AudioFrame) {
	s.frames <- frame
}

// PushGap emits a simulated capture gap of the given duration.
func (s *Source) PushGap(d time.Duration) {
	s.gaps <- d
}

// Finish closes the Frames channel, signalling end of capture. Safe to call
// once; subsequent calls are no-ops.
func (s *Source) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.frames)
	}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.AudioFrame { return s.frames }

// Gaps implements [audio.Source].
func (s *Source) Gaps() <-chan time.Duration { return s.gaps }

// Close implements [audio.Source]. It records the call and closes the Frames
// channel if still open.
func (s *Source) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	s.mu.Unlock()
	s.Finish()
	return nil
}

var _ audio.Source = (*Source)(nil)
