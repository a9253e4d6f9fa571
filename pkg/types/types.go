// Package types defines the shared types used across all Earshot packages.
//
// These types form the lingua franca between providers, the capture pipeline,
// the memory layers, and the orchestrator. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

import "time"

// Transcript represents a speech-to-text result for one utterance.
type Transcript struct {
	// Text is the transcribed speech content. Empty when the audio contained
	// no recognisable speech.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Language is the BCP-47 language code detected or configured for this
	// transcription (e.g., "en").
	Language string

	// AudioDuration is the length of the audio that produced this transcript.
	AudioDuration time.Duration
}

// SentenceUnit is one sentence of a transcribed utterance, carrying enough
// provenance to attribute it back to the audio it came from.
type SentenceUnit struct {
	// Text is the cleaned sentence text.
	Text string

	// UtteranceID identifies the source utterance within its capture stream.
	UtteranceID uint64

	// Seq is the sentence's zero-based position within the utterance.
	Seq int

	// Timestamp is the source utterance's offset from stream start.
	Timestamp time.Duration
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this responds to.
	ToolCallID string
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call (provider-assigned).
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
