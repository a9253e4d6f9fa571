package toolcall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/pkg/provider/llm"
	"github.com/earshot-ai/earshot/pkg/types"
)

// defaultMaxIterations caps how many directives one utterance may trigger.
const defaultMaxIterations = 3

// Engine runs the bounded tool-call loop for one utterance.
//
// Each iteration sends the conversation to the LLM, extracts the first
// directive from the reply, executes it, and feeds the result back as a
// tool-role message. The loop ends when the model replies without a
// directive. Tool failures — unknown tool, invalid parameters, execution
// errors — do not abort the loop: their messages go back to the model as
// tool-role turns so it can correct itself within the iteration budget.
type Engine struct {
	registry *Registry
	provider llm.Provider
	maxIter  int
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithMaxIterations sets the directive cap per utterance. Values below 1 are
// ignored. Defaults to 3.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 {
			e.maxIter = n
		}
	}
}

// WithLogger sets the engine's logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEngineMetrics replaces the engine's metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithEngineMetrics(m *observe.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an [Engine] over the given registry and provider.
func NewEngine(registry *Registry, provider llm.Provider, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		provider: provider,
		maxIter:  defaultMaxIterations,
		logger:   slog.Default(),
		metrics:  observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult is the outcome of one tool-call loop.
type RunResult struct {
	// Reply is the model's final answer with all directive blocks stripped.
	Reply string

	// Steps holds the assistant and tool-role messages produced during the
	// loop, in order. Empty when the model answered without tools.
	Steps []types.Message

	// Iterations is the number of completions requested.
	Iterations int

	// UsedTool reports whether at least one directive was executed.
	UsedTool bool
}

// Run executes the tool-call loop for req. The request's Messages are not
// mutated; intermediate turns accumulate in the returned [RunResult.Steps].
//
// Returns an error wrapping [ErrLoopExceeded] when the model is still
// emitting directives after the iteration cap, and the provider's error if a
// completion fails.
func (e *Engine) Run(ctx context.Context, req llm.CompletionRequest) (*RunResult, error) {
	messages := make([]types.Message, len(req.Messages))
	copy(messages, req.Messages)

	result := &RunResult{}

	for i := 0; i < e.maxIter; i++ {
		req.Messages = messages
		started := time.Now()
		resp, err := e.provider.Complete(ctx, req)
		e.metrics.LLMDuration.Record(ctx, time.Since(started).Seconds())
		if err != nil {
			return nil, fmt.Errorf("tool call loop: completion %d: %w", i+1, err)
		}
		result.Iterations = i + 1

		directive, parseErr := ParseDirective(resp.Content)
		if directive == nil && parseErr == nil {
			result.Reply = StripDirectives(resp.Content)
			return result, nil
		}

		assistantTurn := types.Message{Role: "assistant", Content: resp.Content}
		messages = append(messages, assistantTurn)
		result.Steps = append(result.Steps, assistantTurn)

		var toolTurn types.Message
		switch {
		case parseErr != nil:
			e.logger.Warn("tool call directive unparseable", "error", parseErr)
			toolTurn = types.Message{
				Role:    "tool",
				Content: "Error: " + parseErr.Error(),
			}
		default:
			output, execErr := e.registry.Execute(ctx, directive.ToolName, directive.Parameters)
			if execErr != nil {
				e.logger.Warn("tool call failed",
					"tool", directive.ToolName,
					"error", execErr,
				)
				output = "Error: " + execErr.Error()
			} else {
				result.UsedTool = true
				e.logger.Debug("tool call succeeded", "tool", directive.ToolName)
			}
			toolTurn = types.Message{
				Role:    "tool",
				Name:    directive.ToolName,
				Content: output,
			}
		}

		messages = append(messages, toolTurn)
		result.Steps = append(result.Steps, toolTurn)
	}

	return result, fmt.Errorf("%w: no final answer after %d iterations", ErrLoopExceeded, e.maxIter)
}
