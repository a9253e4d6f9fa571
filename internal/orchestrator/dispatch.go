package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/pkg/provider/tts"
)

// ConsoleDispatcher writes replies to a stream, one per line. Used when no
// speech output is configured, and in tests.
type ConsoleDispatcher struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleDispatcher creates a dispatcher writing to out.
func NewConsoleDispatcher(out io.Writer) *ConsoleDispatcher {
	return &ConsoleDispatcher{out: out}
}

var _ Dispatcher = (*ConsoleDispatcher)(nil)

// Emit writes the reply prefixed with the assistant marker.
func (d *ConsoleDispatcher) Emit(_ context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.out, "assistant> %s\n", text)
	return err
}

// Player renders a synthesised clip on an output device.
type Player interface {
	Play(ctx context.Context, clip tts.Audio) error
}

// PlayerFunc adapts a function into a [Player].
type PlayerFunc func(ctx context.Context, clip tts.Audio) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, clip tts.Audio) error { return f(ctx, clip) }

// SpeechDispatcher synthesises each reply and plays it. Synthesis failures
// fall through to the text fallback so a broken TTS backend never silences
// the assistant.
type SpeechDispatcher struct {
	synth    tts.Provider
	voice    tts.Voice
	player   Player
	fallback Dispatcher
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// NewSpeechDispatcher creates a dispatcher speaking through synth with voice.
// fallback may be nil, in which case synthesis failures are only logged.
func NewSpeechDispatcher(synth tts.Provider, voice tts.Voice, player Player, fallback Dispatcher, logger *slog.Logger) *SpeechDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechDispatcher{
		synth:    synth,
		voice:    voice,
		player:   player,
		fallback: fallback,
		logger:   logger,
		metrics:  observe.DefaultMetrics(),
	}
}

var _ Dispatcher = (*SpeechDispatcher)(nil)

// Emit synthesises and plays text.
func (d *SpeechDispatcher) Emit(ctx context.Context, text string) error {
	started := time.Now()
	clip, err := d.synth.Synthesize(ctx, text, d.voice)
	d.metrics.TTSDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		d.logger.Warn("speech synthesis failed", "error", err)
		if d.fallback != nil {
			return d.fallback.Emit(ctx, text)
		}
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := d.player.Play(ctx, clip); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
