// Package orchestrator drives one utterance end to end.
//
// For each sentence of a finished transcript, in order, the orchestrator
// checks the voice-command filter, evaluates the gating pipeline, and acts on
// the resulting route: actionable sentences get a language-model turn (with
// the bounded tool-call loop), contextable sentences are inserted into
// long-term memory, and sentences that are neither are discarded without
// logging their content.
//
// Processing is strictly sequential; the orchestrator is driven by the
// single processing goroutine and holds no internal locks beyond counters.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/earshot-ai/earshot/internal/command"
	"github.com/earshot-ai/earshot/internal/gating"
	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/internal/session"
	"github.com/earshot-ai/earshot/internal/toolcall"
	"github.com/earshot-ai/earshot/pkg/provider/llm"
	"github.com/earshot-ai/earshot/pkg/types"
)

// fallbackApology is spoken when the language model cannot be reached. The
// turn fails; the session continues.
const fallbackApology = "I'm sorry, I'm having trouble thinking right now. Please try again in a moment."

// defaultRetrieveK is how many long-term memory hits go into the prompt.
const defaultRetrieveK = 5

// reThink strips chain-of-thought blocks some local models emit before the
// answer.
var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Dispatcher receives the final text of a turn. Implementations speak it,
// print it, or both. Emit is fire-and-forget from the orchestrator's
// perspective: a dispatch failure is logged, never propagated.
type Dispatcher interface {
	Emit(ctx context.Context, text string) error
}

// DispatchFunc adapts a function into a [Dispatcher].
type DispatchFunc func(ctx context.Context, text string) error

// Emit calls f.
func (f DispatchFunc) Emit(ctx context.Context, text string) error { return f(ctx, text) }

// Config configures an [Orchestrator]. Gate, Engine and Dispatcher are
// required.
type Config struct {
	// Gate routes each sentence.
	Gate *gating.Pipeline

	// Engine runs the bounded tool-call loop for actionable sentences.
	Engine *toolcall.Engine

	// Registry supplies tool definitions for the system prompt. May be nil
	// when no tools are registered.
	Registry *toolcall.Registry

	// Commands intercepts voice commands before gating. May be nil.
	Commands *command.Filter

	// Dispatcher receives every spoken reply.
	Dispatcher Dispatcher

	// SystemPrompt is the base system prompt. The tools section is appended
	// automatically when Registry has tools.
	SystemPrompt string

	// Temperature and MaxTokens are passed through to the model.
	Temperature float64
	MaxTokens   int

	// RetrieveK is how many similar memories are recalled per actionable
	// sentence. Defaults to 5 if zero or negative.
	RetrieveK int

	// Metrics receives per-sentence routing counts. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Orchestrator sequences gating, memory, the tool-call loop, and dispatch
// for each sentence of a transcript.
type Orchestrator struct {
	gate       *gating.Pipeline
	engine     *toolcall.Engine
	registry   *toolcall.Registry
	commands   *command.Filter
	dispatcher Dispatcher

	systemPrompt string
	temperature  float64
	maxTokens    int
	retrieveK    int
	logger       *slog.Logger
	metrics      *observe.Metrics

	discarded atomic.Int64
	answered  atomic.Int64
}

// New creates an [Orchestrator] from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Gate == nil {
		return nil, fmt.Errorf("orchestrator: Gate is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("orchestrator: Engine is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("orchestrator: Dispatcher is required")
	}
	retrieveK := cfg.RetrieveK
	if retrieveK <= 0 {
		retrieveK = defaultRetrieveK
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		gate:         cfg.Gate,
		engine:       cfg.Engine,
		registry:     cfg.Registry,
		commands:     cfg.Commands,
		dispatcher:   cfg.Dispatcher,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		retrieveK:    retrieveK,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// HandleSentences processes the sentence units of one utterance in order. A
// failure handling one sentence is logged and does not prevent the remaining
// sentences from being handled; the first error is returned after all
// sentences have been attempted.
func (o *Orchestrator) HandleSentences(ctx context.Context, sess *session.Session, units []types.SentenceUnit) error {
	var firstErr error
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.handleSentence(ctx, sess, unit); err != nil {
			o.logger.Error("sentence handling failed",
				"error", err, "utterance_id", unit.UtteranceID, "seq", unit.Seq)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Discarded returns how many sentences were dropped because neither
// classifier fired.
func (o *Orchestrator) Discarded() int64 { return o.discarded.Load() }

// Answered returns how many sentences received a language-model turn.
func (o *Orchestrator) Answered() int64 { return o.answered.Load() }

func (o *Orchestrator) handleSentence(ctx context.Context, sess *session.Session, unit types.SentenceUnit) error {
	sentence := strings.TrimSpace(unit.Text)
	if sentence == "" {
		return nil
	}

	if o.commands != nil {
		reply, handled, err := o.commands.Check(ctx, sess, sentence)
		if err != nil {
			return err
		}
		if handled {
			if reply != "" {
				o.dispatch(ctx, reply)
				if mem := sess.Memory(); mem != nil {
					o.logTurn(ctx, mem, sentence, reply)
				}
			}
			return nil
		}
	}

	decision, err := o.gate.Evaluate(ctx, sentence)
	if err != nil {
		return fmt.Errorf("gating: %w", err)
	}
	o.metrics.RecordSentence(ctx, decision.Route.String())
	o.logger.Debug("sentence routed",
		"route", decision.Route.String(),
		"utterance_id", unit.UtteranceID,
		"seq", unit.Seq,
		"actionable_confidence", decision.ActionableConfidence,
		"contextable_confidence", decision.ContextableConfidence,
	)

	mem := sess.Memory()

	if decision.Contextable && mem != nil {
		if err := mem.RememberText(ctx, sentence); err != nil {
			// Long-term memory is best effort; the turn still proceeds.
			o.logger.Warn("remember failed", "error", err)
		}
	}

	if !decision.Actionable {
		if !decision.Contextable {
			o.discarded.Add(1)
		}
		return nil
	}

	return o.respond(ctx, sess, sentence)
}

// respond runs the model turn for one actionable sentence.
func (o *Orchestrator) respond(ctx context.Context, sess *session.Session, sentence string) error {
	mem := sess.Memory()

	var contexts []string
	var history []session.Turn
	if mem != nil {
		var err error
		contexts, err = mem.RecallText(ctx, sentence, o.retrieveK)
		if err != nil {
			o.logger.Warn("memory recall failed", "error", err)
		}
		history = mem.Turns()
	}

	req := llm.CompletionRequest{
		SystemPrompt: o.assembleSystemPrompt(),
		Messages: []types.Message{
			{Role: "user", Content: BuildPrompt(contexts, history, sentence)},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}

	result, runErr := o.engine.Run(ctx, req)
	reply := o.finalReply(result, runErr)

	o.answered.Add(1)
	o.dispatch(ctx, reply)
	if mem != nil {
		// The transcript log reads chronologically: the user's sentence,
		// the tool steps taken while answering it, then the answer.
		if err := mem.AddExchange(ctx, sentence, toolSteps(result), reply); err != nil {
			o.logger.Warn("turn log failed", "error", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, toolcall.ErrLoopExceeded) {
		return fmt.Errorf("model turn: %w", runErr)
	}
	return nil
}

// finalReply turns an engine outcome into speakable text. A loop overrun
// falls back to the last tool result; a model failure falls back to the
// apology.
func (o *Orchestrator) finalReply(result *toolcall.RunResult, runErr error) string {
	switch {
	case runErr == nil:
		return Scrub(result.Reply)

	case errors.Is(runErr, toolcall.ErrLoopExceeded):
		o.logger.Warn("tool call loop exceeded, assembling best-effort answer")
		if last := lastToolResult(result); last != "" {
			return Scrub(last)
		}
		return fallbackApology

	default:
		o.logger.Error("language model unavailable", "error", runErr)
		return fallbackApology
	}
}

// dispatch forwards text to the response dispatcher. Failures are logged and
// swallowed.
func (o *Orchestrator) dispatch(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := o.dispatcher.Emit(ctx, text); err != nil {
		o.logger.Warn("dispatch failed", "error", err)
	}
}

// toolSteps extracts the named tool-role turns of a run for the transcript
// log. Returns nil for tool-free runs and failed completions.
func toolSteps(result *toolcall.RunResult) []session.ToolStep {
	if result == nil {
		return nil
	}
	var steps []session.ToolStep
	for _, step := range result.Steps {
		if step.Role != "tool" || step.Name == "" {
			continue
		}
		steps = append(steps, session.ToolStep{Name: step.Name, Content: step.Content})
	}
	return steps
}

// logTurn appends the exchange to the conversation window and transcript log.
func (o *Orchestrator) logTurn(ctx context.Context, mem *session.ContextMemory, user, assistant string) {
	if err := mem.AddTurn(ctx, user, assistant); err != nil {
		o.logger.Warn("turn log failed", "error", err)
	}
}

func (o *Orchestrator) assembleSystemPrompt() string {
	if o.registry == nil || o.registry.Len() == 0 {
		return o.systemPrompt
	}
	return o.systemPrompt + ToolsPrompt(o.registry.Definitions())
}

// lastToolResult returns the content of the most recent successful tool turn.
func lastToolResult(result *toolcall.RunResult) string {
	if result == nil {
		return ""
	}
	for i := len(result.Steps) - 1; i >= 0; i-- {
		step := result.Steps[i]
		if step.Role == "tool" && !strings.HasPrefix(step.Content, "Error:") {
			return step.Content
		}
	}
	return ""
}

// Scrub removes chain-of-thought blocks and trims the result.
func Scrub(text string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(text, ""))
}
