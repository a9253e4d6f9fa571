// Package transcript turns closed utterances into cleaned, sentence-segmented
// transcription units.
//
// Each utterance is transcribed exactly once. The raw model output is scrubbed
// of non-speech artifacts that Whisper-family models emit on marginal audio
// ("[BLANK_AUDIO]", "(coughs)", stray music glyphs), then split into sentence
// units so the downstream gating pipeline can classify and route each sentence
// independently. An utterance whose transcription is empty after scrubbing
// yields zero units; that is an ordinary outcome for breathing noise or a
// false VAD trigger, not an error.
package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/earshot-ai/earshot/internal/segment"
	"github.com/earshot-ai/earshot/pkg/provider/stt"
	"github.com/earshot-ai/earshot/pkg/types"
)

// Result is the outcome of transcribing one utterance.
type Result struct {
	// Transcript is the scrubbed transcript with provider metadata.
	Transcript types.Transcript

	// Units are the sentence-level segments of the transcript text, in
	// spoken order, each tagged with its source utterance. Empty when
	// nothing intelligible was said.
	Units []types.SentenceUnit
}

// Empty reports whether the utterance produced no usable text.
func (r Result) Empty() bool { return len(r.Units) == 0 }

// Segmenter splits a scrubbed transcript into sentence units, spoken order
// preserved. Implementations must return nil for blank input.
type Segmenter interface {
	Split(text string) []string
}

// Stream transcribes utterances sequentially. It is safe for concurrent use
// when the underlying provider is.
type Stream struct {
	sttP stt.Provider
	seg  Segmenter
}

// StreamOption configures a [Stream].
type StreamOption func(*Stream)

// WithSegmenter replaces the default rule-based sentence segmenter.
func WithSegmenter(seg Segmenter) StreamOption {
	return func(s *Stream) { s.seg = seg }
}

// NewStream creates a Stream backed by the given STT provider.
func NewStream(p stt.Provider, opts ...StreamOption) *Stream {
	s := &Stream{sttP: p, seg: RuleSegmenter{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process transcribes one utterance and returns its cleaned sentence units.
// The provider is called exactly once per utterance regardless of how many
// sentences it contains.
func (s *Stream) Process(ctx context.Context, u *segment.Utterance) (Result, error) {
	t, err := s.sttP.Transcribe(ctx, stt.Clip{
		PCM:        u.PCM,
		SampleRate: u.SampleRate,
		Channels:   u.Channels,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcript: transcribe utterance: %w", err)
	}

	t.Text = Scrub(t.Text)
	if t.AudioDuration == 0 {
		t.AudioDuration = u.Duration
	}

	sentences := s.seg.Split(t.Text)
	units := make([]types.SentenceUnit, 0, len(sentences))
	for i, text := range sentences {
		units = append(units, types.SentenceUnit{
			Text:        text,
			UtteranceID: u.ID,
			Seq:         i,
			Timestamp:   u.Start,
		})
	}

	return Result{Transcript: t, Units: units}, nil
}

// Scrub removes non-speech artifacts from raw STT output: bracketed and
// parenthesised annotations ("[BLANK_AUDIO]", "(laughs)"), music glyphs, and
// redundant whitespace. Returns "" when nothing but artifacts was present.
func Scrub(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			if depth > 0 {
				depth--
			}
		case '♪', '♫':
			// Music glyphs appear on hummed or sung audio.
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// RuleSegmenter is the default [Segmenter]: it splits on '.', '!', or '?'
// followed by whitespace or end of string. Terminators stay attached to their
// sentence. Periods followed directly by a non-space ("3.14", "e.g.x") do not
// split, which is abbreviation-safe enough for spoken text.
type RuleSegmenter struct{}

// Compile-time assertion that RuleSegmenter satisfies Segmenter.
var _ Segmenter = RuleSegmenter{}

// Split implements [Segmenter].
func (RuleSegmenter) Split(text string) []string {
	return SplitSentences(text)
}

// SplitSentences splits text into sentences on '.', '!', or '?' followed by
// whitespace or end of string. Terminators stay attached to their sentence.
// Abbreviation-like periods followed directly by a letter ("3.14", "e.g.x")
// do not split. A blank input returns nil.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var units []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && !isSpace(text[i+1]) {
				continue
			}
			unit := strings.TrimSpace(text[start : i+1])
			if unit != "" {
				units = append(units, unit)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		units = append(units, rest)
	}
	return units
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
