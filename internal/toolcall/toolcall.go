// Package toolcall implements the tool-call protocol between the LLM and
// Earshot's tools.
//
// Models that lack native function calling emit tool invocations as a tagged
// directive inside their text output:
//
//	<tool_call>
//	{"tool_name": "calculator", "parameters": {"expression": "15 + 27"}}
//	</tool_call>
//
// [ParseDirective] extracts the first such directive from a response,
// tolerating the malformed variants small local models actually produce.
// [Registry] holds the available tools and validates parameters against each
// tool's JSON Schema before execution. [Engine] runs the bounded
// request/execute/feed-back loop until the model produces a plain answer.
//
// All exported types are safe for concurrent use.
package toolcall

import (
	"context"
	"errors"

	"github.com/earshot-ai/earshot/pkg/types"
)

// Sentinel errors for the tool-call protocol. All errors returned by
// [Registry.Execute] and [Engine.Run] wrap one of these.
var (
	// ErrUnknownTool indicates a directive named a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidParameters indicates directive parameters that fail the
	// tool's schema validation.
	ErrInvalidParameters = errors.New("invalid tool parameters")

	// ErrExecutionFailed indicates a registered tool that returned an error.
	ErrExecutionFailed = errors.New("tool execution failed")

	// ErrMalformedDirective indicates a <tool_call> block whose payload could
	// not be parsed as a tool call.
	ErrMalformedDirective = errors.New("malformed tool call directive")

	// ErrLoopExceeded indicates the model kept emitting directives past the
	// iteration cap without producing a final answer.
	ErrLoopExceeded = errors.New("tool call loop exceeded")
)

// Tool is a callable capability offered to the LLM.
//
// Implementations must be safe for concurrent use.
type Tool interface {
	// Definition returns the tool's descriptor, including the JSON Schema
	// for its parameters.
	Definition() types.ToolDefinition

	// Call executes the tool. params has already been validated against the
	// schema in Definition. The returned string is fed back to the model as
	// a tool-role message.
	Call(ctx context.Context, params map[string]any) (string, error)
}

// Func adapts a plain function into a [Tool].
type Func struct {
	// Def is the tool's public descriptor.
	Def types.ToolDefinition

	// Fn is invoked by Call.
	Fn func(ctx context.Context, params map[string]any) (string, error)
}

var _ Tool = (*Func)(nil)

// Definition returns f.Def.
func (f *Func) Definition() types.ToolDefinition { return f.Def }

// Call invokes f.Fn.
func (f *Func) Call(ctx context.Context, params map[string]any) (string, error) {
	return f.Fn(ctx, params)
}
