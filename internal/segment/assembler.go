// Package segment assembles gated audio frames into utterances.
//
// The assembler couples a VAD session with the [gate.Gate] state machine and a
// small pre-roll ring of recent frames. When the gate confirms speech, the
// assembler reaches back into the ring for the debounced frames and the
// leading pad, so the resulting utterance contains audio from before the
// moment of confirmation. When the gate closes an utterance, the trailing pad
// has already been appended frame by frame.
//
// Utterances that reach the configured maximum duration are force-closed and
// capture continues seamlessly into a fresh utterance, so a monologue becomes
// several bounded utterances instead of one unbounded buffer.
package segment

import (
	"fmt"
	"time"

	"github.com/earshot-ai/earshot/internal/gate"
	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/provider/vad"
)

// Utterance is one contiguous span of speech audio, padded on both sides.
type Utterance struct {
	// ID numbers utterances per assembler, starting at 1, so downstream
	// stages can attribute sentences back to the audio they came from.
	ID uint64

	// PCM is little-endian 16-bit signed PCM at SampleRate/Channels.
	PCM []byte

	// SampleRate is the capture sample rate.
	SampleRate int

	// Channels is the capture channel count.
	Channels int

	// Start is the offset of the first included frame from stream start.
	Start time.Duration

	// Duration is the total audio length.
	Duration time.Duration

	// ForceClosed reports that the utterance hit the maximum duration and
	// was split rather than ended by silence.
	ForceClosed bool
}

// Config holds the assembler's tuning.
type Config struct {
	// Gate is the voice activity gate configuration.
	Gate gate.Config

	// MaxUtteranceDuration force-closes an utterance that grows past this
	// length. Zero disables the limit.
	MaxUtteranceDuration time.Duration

	// SampleRate and Channels describe the incoming frames.
	SampleRate int
	Channels   int
}

// Assembler turns a stream of frames into zero or more utterances. It is not
// safe for concurrent use; drive it from the single capture goroutine.
type Assembler struct {
	cfg     Config
	session vad.SessionHandle
	g       *gate.Gate

	// ring holds the most recent frames while the gate is silent, so a
	// confirmed utterance can include its own beginning.
	ring     []ringFrame
	ringCap  int
	ringNext int
	ringLen  int

	collecting bool
	buf        []byte
	start      time.Duration
	frames     int
	maxFrames  int
	nextID     uint64
}

type ringFrame struct {
	data []byte
	ts   time.Duration
}

// New creates an assembler that scores frames with a session from engine.
func New(cfg Config, engine vad.Engine) (*Assembler, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("segment: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("segment: channels must be positive, got %d", cfg.Channels)
	}

	g, err := gate.New(cfg.Gate)
	if err != nil {
		return nil, err
	}

	session, err := engine.NewSession(vad.Config{
		SampleRate:  cfg.SampleRate,
		FrameSizeMs: int(cfg.Gate.FrameDuration / time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("segment: create vad session: %w", err)
	}

	maxFrames := 0
	if cfg.MaxUtteranceDuration > 0 {
		maxFrames = int(cfg.MaxUtteranceDuration / cfg.Gate.FrameDuration)
		if maxFrames < 1 {
			maxFrames = 1
		}
	}

	ringCap := g.LookbackFrames() + 1
	return &Assembler{
		cfg:       cfg,
		session:   session,
		g:         g,
		ring:      make([]ringFrame, ringCap),
		ringCap:   ringCap,
		maxFrames: maxFrames,
	}, nil
}

// Feed consumes one capture frame and returns a completed utterance when the
// frame closed one, or nil otherwise.
func (a *Assembler) Feed(frame audio.AudioFrame) (*Utterance, error) {
	score, err := a.session.ProcessFrame(frame.Data)
	if err != nil {
		return nil, fmt.Errorf("segment: score frame: %w", err)
	}

	d := a.g.Feed(score.Probability)

	switch {
	case d.SpeechStarted:
		a.beginUtterance(d.StartFramesAgo, frame)
	case a.collecting:
		a.appendFrame(frame)
	}
	a.pushRing(frame)

	if d.SpeechEnded {
		return a.closeUtterance(false), nil
	}
	if a.collecting && a.maxFrames > 0 && a.frames >= a.maxFrames {
		u := a.closeUtterance(true)
		// Capture continues: the next frame starts a fresh utterance with no
		// leading pad, since we are still mid-speech.
		a.collecting = true
		a.start = 0
		return u, nil
	}
	return nil, nil
}

// Flush closes and returns any utterance in progress, for end-of-stream
// handling. Returns nil when the gate was silent.
func (a *Assembler) Flush() *Utterance {
	if !a.collecting {
		return nil
	}
	a.g.Reset()
	return a.closeUtterance(false)
}

// Reset discards any utterance in progress and returns the gate and the VAD
// session to their initial state.
func (a *Assembler) Reset() {
	a.g.Reset()
	a.session.Reset()
	a.collecting = false
	a.buf = nil
	a.frames = 0
	a.ringLen = 0
	a.ringNext = 0
}

// Close releases the VAD session.
func (a *Assembler) Close() error {
	return a.session.Close()
}

// beginUtterance seeds the buffer with the ring frames covering the utterance
// start, then appends the current frame.
func (a *Assembler) beginUtterance(framesAgo int, frame audio.AudioFrame) {
	a.collecting = true
	a.buf = a.buf[:0]
	a.frames = 0
	a.start = frame.Timestamp

	if framesAgo > a.ringLen {
		framesAgo = a.ringLen
	}
	for i := framesAgo; i >= 1; i-- {
		rf := a.ringAt(i)
		if a.frames == 0 {
			a.start = rf.ts
		}
		a.buf = append(a.buf, rf.data...)
		a.frames++
	}
	a.appendFrame(frame)
}

func (a *Assembler) appendFrame(frame audio.AudioFrame) {
	if a.frames == 0 && a.start == 0 {
		a.start = frame.Timestamp
	}
	a.buf = append(a.buf, frame.Data...)
	a.frames++
}

func (a *Assembler) closeUtterance(forced bool) *Utterance {
	if !a.collecting || a.frames == 0 {
		a.collecting = false
		return nil
	}
	pcm := make([]byte, len(a.buf))
	copy(pcm, a.buf)

	a.nextID++
	u := &Utterance{
		ID:          a.nextID,
		PCM:         pcm,
		SampleRate:  a.cfg.SampleRate,
		Channels:    a.cfg.Channels,
		Start:       a.start,
		Duration:    time.Duration(a.frames) * a.cfg.Gate.FrameDuration,
		ForceClosed: forced,
	}
	a.collecting = false
	a.buf = a.buf[:0]
	a.frames = 0
	a.start = 0
	return u
}

// pushRing records the frame for future pre-roll. Frame data is copied since
// sources may reuse their buffers.
func (a *Assembler) pushRing(frame audio.AudioFrame) {
	data := make([]byte, len(frame.Data))
	copy(data, frame.Data)
	a.ring[a.ringNext] = ringFrame{data: data, ts: frame.Timestamp}
	a.ringNext = (a.ringNext + 1) % a.ringCap
	if a.ringLen < a.ringCap {
		a.ringLen++
	}
}

// ringAt returns the frame pushed n frames ago (1 = most recent).
func (a *Assembler) ringAt(n int) ringFrame {
	idx := (a.ringNext - n + a.ringCap*2) % a.ringCap
	return a.ring[idx]
}
