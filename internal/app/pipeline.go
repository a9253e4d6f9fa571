package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/internal/segment"
	"github.com/earshot-ai/earshot/internal/session"
	"github.com/earshot-ai/earshot/internal/transcript"
	"github.com/earshot-ai/earshot/pkg/audio"
)

// defaultQueueSize bounds the utterance hand-off channel between the capture
// and processing stages when pipeline.queue_size is not configured.
const defaultQueueSize = 8

// Run starts the capture and processing stages and blocks until ctx is
// cancelled or the audio source is exhausted.
//
// The capture stage reads frames from the audio source and assembles
// utterances; it never blocks on a slow processing stage. The processing
// stage transcribes utterances and routes each sentence through the
// orchestrator, strictly one utterance at a time in capture order. Utterances
// that the bounded queue cannot hold spill into a capture-side backlog, so
// none are ever dropped.
func (a *App) Run(ctx context.Context) error {
	if a.providers.Audio == nil {
		return errors.New("app: an audio source is required")
	}

	metrics := observe.DefaultMetrics()
	metrics.ActiveSessions.Add(ctx, 1)
	defer metrics.ActiveSessions.Add(ctx, -1)

	sess := session.New(ctx, a.sessionID, a.mem)
	defer sess.Close()

	queueSize := a.cfg.Pipeline.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	queue := make(chan *segment.Utterance, queueSize)

	slog.Info("pipeline running",
		"session_id", sess.ID(),
		"queue_size", queueSize,
		"tools", len(a.registry.Definitions()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.capture(gctx, queue) })
	g.Go(func() error { return a.process(gctx, sess, queue) })

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// capture drives the voice activity gate over the frame stream and hands
// finished utterances to the processing stage. It owns the queue channel and
// closes it when the source is exhausted.
func (a *App) capture(ctx context.Context, queue chan<- *segment.Utterance) error {
	defer close(queue)

	metrics := observe.DefaultMetrics()

	asm, err := segment.New(a.assemblerConfig(), a.providers.VAD)
	if err != nil {
		return err
	}
	defer asm.Close()

	// backlog holds utterances the bounded queue could not absorb. Capture
	// keeps reading frames; the backlog drains as the processing stage
	// catches up.
	var backlog []*segment.Utterance

	enqueue := func(u *segment.Utterance) {
		metrics.Utterances.Add(ctx, 1)
		if len(backlog) == 0 {
			select {
			case queue <- u:
				metrics.QueuedUtterances.Add(ctx, 1)
				return
			default:
			}
		}
		backlog = append(backlog, u)
		slog.Debug("utterance queue full, spilling to backlog", "backlog", len(backlog))
	}

	drainBacklog := func() {
		for len(backlog) > 0 {
			select {
			case queue <- backlog[0]:
				metrics.QueuedUtterances.Add(ctx, 1)
				backlog = backlog[1:]
			default:
				return
			}
		}
	}

	// Normalize whatever the source delivers to the pipeline format; a
	// source already emitting it passes frames through untouched.
	target := audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: a.cfg.Audio.Channels}
	if target.SampleRate == 0 {
		target.SampleRate = 16000
	}
	if target.Channels == 0 {
		target.Channels = 1
	}
	frames := audio.ConvertStream(a.providers.Audio.Frames(), target)
	gaps := a.providers.Audio.Gaps()

	for {
		drainBacklog()

		select {
		case <-ctx.Done():
			// The source keeps producing until Shutdown closes it; drain
			// the converted stream so its goroutine can exit.
			go audio.Drain(frames)
			return ctx.Err()

		case gap, ok := <-gaps:
			if !ok {
				gaps = nil
				continue
			}
			// A dropped stretch of audio resets the gate so a half-heard
			// utterance is not stitched across the hole.
			slog.Warn("capture gap, resetting gate", "lost", gap)
			metrics.CaptureGaps.Add(ctx, 1)
			asm.Reset()

		case frame, ok := <-frames:
			if !ok {
				if u := asm.Flush(); u != nil {
					enqueue(u)
				}
				return a.flushBacklog(ctx, queue, backlog)
			}
			u, err := asm.Feed(frame)
			if err != nil {
				slog.Warn("assembler rejected frame", "err", err)
				continue
			}
			if u != nil {
				enqueue(u)
			}
		}
	}
}

// flushBacklog blocks until every backlogged utterance is handed over, then
// lets the deferred close(queue) end the processing stage.
func (a *App) flushBacklog(ctx context.Context, queue chan<- *segment.Utterance, backlog []*segment.Utterance) error {
	metrics := observe.DefaultMetrics()
	for _, u := range backlog {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case queue <- u:
			metrics.QueuedUtterances.Add(ctx, 1)
		}
	}
	return nil
}

// process transcribes utterances and routes their sentences through the
// orchestrator, strictly sequentially. Transcription failures skip the
// utterance and keep the stage alive.
func (a *App) process(ctx context.Context, sess *session.Session, queue <-chan *segment.Utterance) error {
	metrics := observe.DefaultMetrics()
	stream := a.newTranscriptStream()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case u, ok := <-queue:
			if !ok {
				return nil
			}
			metrics.QueuedUtterances.Add(ctx, -1)
			if err := a.processUtterance(ctx, sess, stream, u, metrics); err != nil {
				return err
			}
		}
	}
}

// processUtterance runs one utterance under a single trace span, with child
// spans for the transcription and model-turn stages. Only cancellation is
// returned as an error; everything else is logged and skipped so the stage
// stays alive.
func (a *App) processUtterance(ctx context.Context, sess *session.Session, stream *transcript.Stream, u *segment.Utterance, metrics *observe.Metrics) error {
	ctx, span := observe.StartSpan(ctx, "utterance.process")
	defer span.End()
	turnStart := time.Now()

	sttCtx, sttSpan := observe.StartSpan(ctx, "utterance.transcribe")
	sttStart := time.Now()
	res, err := stream.Process(sttCtx, u)
	sttSpan.End()
	metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		observe.Logger(ctx).Error("transcription failed, skipping utterance",
			"duration", u.Duration,
			"err", err,
		)
		metrics.RecordProviderError(ctx, "stt", "transcribe")
		return nil
	}
	if res.Empty() {
		observe.Logger(ctx).Debug("utterance produced no speech", "duration", u.Duration)
		return nil
	}

	turnCtx, turnSpan := observe.StartSpan(ctx, "utterance.turn")
	err = a.orch.HandleSentences(turnCtx, sess, res.Units)
	turnSpan.End()
	metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		observe.Logger(ctx).Error("sentence handling failed", "err", err)
	}
	return nil
}
