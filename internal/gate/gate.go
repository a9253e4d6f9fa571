// Package gate implements the voice activity gate that decides which audio
// frames belong to an utterance.
//
// The gate is a four-state machine driven by one speech probability per frame
// (produced by a [vad.Engine] session):
//
//	Silence ──prob ≥ threshold──▶ Candidate ──sustained──▶ Speech
//	   ▲                             │ drop                   │ drop
//	   │                             ▼                        ▼
//	   └────────pad elapsed───── Trailing ◀──────────────────┘
//	                                 │ prob ≥ threshold
//	                                 └──────▶ back to Speech
//
// A burst shorter than the configured minimum speech duration never leaves
// Candidate and is discarded as noise. Once speech is confirmed, the utterance
// is extended backwards by the speech pad (the quiet frames just before the
// burst) and forwards by the same pad after the last speech frame. A brief dip
// below the threshold shorter than the pad does not split the utterance.
//
// The gate itself is pure bookkeeping over frame counts; it never touches
// audio bytes. The segment assembler pairs its decisions with a frame ring to
// produce actual utterances.
package gate

import (
	"fmt"
	"time"
)

// State is the gate's position in the speech detection state machine.
type State int

const (
	// StateSilence means no speech activity is being tracked.
	StateSilence State = iota

	// StateCandidate means speech probability crossed the threshold but has
	// not yet been sustained long enough to count as an utterance.
	StateCandidate

	// StateSpeech means an utterance is in progress.
	StateSpeech

	// StateTrailing means an utterance is in progress but the last frames
	// were below the threshold; the gate is waiting to see whether speech
	// resumes before the pad runs out.
	StateTrailing
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateSilence:
		return "silence"
	case StateCandidate:
		return "candidate"
	case StateSpeech:
		return "speech"
	case StateTrailing:
		return "trailing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the gate's temporal tuning.
type Config struct {
	// Threshold is the speech probability at or above which a frame counts
	// as speech. Must be in (0, 1).
	Threshold float64

	// MinSpeechDuration is how long speech must be sustained before a
	// candidate burst is confirmed as an utterance. Shorter bursts are
	// discarded.
	MinSpeechDuration time.Duration

	// SpeechPad is the quiet audio kept on both sides of an utterance. It
	// also sets how long a mid-utterance dip may last before the utterance
	// closes.
	SpeechPad time.Duration

	// FrameDuration is the fixed duration of each fed frame.
	FrameDuration time.Duration
}

// Decision is the gate's verdict on a single frame.
type Decision struct {
	// State is the gate state after consuming the frame.
	State State

	// SpeechStarted reports that this frame confirmed a new utterance.
	SpeechStarted bool

	// StartFramesAgo is only meaningful when SpeechStarted is set: how many
	// frames before the current one the utterance content begins. It covers
	// the candidate frames already consumed plus the leading pad.
	StartFramesAgo int

	// SpeechEnded reports that the in-progress utterance closed with this
	// frame. The trailing pad frames were fed since the last speech frame
	// and belong to the utterance.
	SpeechEnded bool
}

// Gate is the state machine. It is not safe for concurrent use; drive it from
// the single capture goroutine.
type Gate struct {
	cfg Config

	candidateFrames int // frames needed to confirm speech
	padFrames       int // frames of pad on each side

	state      State
	candidates int // consecutive speech frames while in Candidate
	trailing   int // consecutive silence frames while in Trailing
}

// New validates cfg and returns a gate in StateSilence.
func New(cfg Config) (*Gate, error) {
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("gate: threshold %v out of range (0, 1)", cfg.Threshold)
	}
	if cfg.FrameDuration <= 0 {
		return nil, fmt.Errorf("gate: frame duration must be positive, got %v", cfg.FrameDuration)
	}
	if cfg.MinSpeechDuration < 0 || cfg.SpeechPad < 0 {
		return nil, fmt.Errorf("gate: durations must not be negative")
	}

	g := &Gate{
		cfg:             cfg,
		candidateFrames: framesFor(cfg.MinSpeechDuration, cfg.FrameDuration),
		padFrames:       framesFor(cfg.SpeechPad, cfg.FrameDuration),
	}
	if g.candidateFrames < 1 {
		g.candidateFrames = 1
	}
	return g, nil
}

// PadFrames returns the number of frames the configured pad spans. The
// assembler sizes its pre-roll ring from this.
func (g *Gate) PadFrames() int { return g.padFrames }

// LookbackFrames returns the maximum value StartFramesAgo can take: the full
// debounce run minus the confirming frame, plus the leading pad. A pre-roll
// ring of this depth always covers a confirmed utterance's start.
func (g *Gate) LookbackFrames() int { return g.candidateFrames - 1 + g.padFrames }

// State returns the current gate state.
func (g *Gate) State() State { return g.state }

// Feed consumes the speech probability of the next frame and returns the
// gate's decision for it.
func (g *Gate) Feed(probability float64) Decision {
	speech := probability >= g.cfg.Threshold

	switch g.state {
	case StateSilence:
		if speech {
			g.state = StateCandidate
			g.candidates = 1
			return g.confirmIfSustained()
		}
		return Decision{State: StateSilence}

	case StateCandidate:
		if !speech {
			// Burst too short: noise, not speech.
			g.state = StateSilence
			g.candidates = 0
			return Decision{State: StateSilence}
		}
		g.candidates++
		return g.confirmIfSustained()

	case StateSpeech:
		if speech {
			return Decision{State: StateSpeech}
		}
		g.state = StateTrailing
		g.trailing = 1
		return g.closeIfPadElapsed()

	case StateTrailing:
		if speech {
			// Dip shorter than the pad: same utterance continues.
			g.state = StateSpeech
			g.trailing = 0
			return Decision{State: StateSpeech}
		}
		g.trailing++
		return g.closeIfPadElapsed()
	}

	// Unreachable.
	return Decision{State: g.state}
}

// Reset returns the gate to StateSilence, discarding any utterance in
// progress.
func (g *Gate) Reset() {
	g.state = StateSilence
	g.candidates = 0
	g.trailing = 0
}

// confirmIfSustained promotes Candidate to Speech once the burst reached the
// minimum duration.
func (g *Gate) confirmIfSustained() Decision {
	if g.candidates < g.candidateFrames {
		return Decision{State: StateCandidate}
	}
	g.state = StateSpeech
	started := g.candidates - 1 + g.padFrames
	g.candidates = 0
	return Decision{
		State:          StateSpeech,
		SpeechStarted:  true,
		StartFramesAgo: started,
	}
}

// closeIfPadElapsed ends the utterance once silence has persisted for the
// full pad.
func (g *Gate) closeIfPadElapsed() Decision {
	if g.padFrames > 0 && g.trailing < g.padFrames {
		return Decision{State: StateTrailing}
	}
	g.state = StateSilence
	g.trailing = 0
	return Decision{State: StateSilence, SpeechEnded: true}
}

// framesFor converts a duration into a frame count, rounding up so the
// configured duration is always fully covered.
func framesFor(d, frame time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + frame - 1) / frame)
}
