// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., a local Ollama or
// llama.cpp server, or a hosted endpoint) and exposes a uniform interface for
// the Earshot orchestrator to perform completions, count tokens, and inspect
// model capabilities without coupling to any specific SDK.
//
// The pipeline dispatches one complete response per utterance, so the
// interface is non-streaming: Complete blocks until the full response is
// available or ctx is cancelled.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/earshot-ai/earshot/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Provided as a
	// convenience; some providers return it directly rather than computing it
	// from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []types.Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Lower
	// values produce more deterministic outputs. A value of 0.0 typically
	// requests greedy (argmax) decoding.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default (usually the model's
	// MaxOutputTokens).
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. If the provider does not natively support a
	// dedicated system prompt, implementors should prepend it as a
	// "system"-role message.
	SystemPrompt string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Each method should propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or if ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens that the given message list
	// would consume in the model's context window. This is used to enforce
	// context budget limits before sending a request.
	//
	// Implementations may call the provider's tokenisation API or perform a
	// local approximation. The result need not be exact but should not
	// undercount.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports. The result is assumed to be constant for
	// the lifetime of the Provider instance.
	Capabilities() types.ModelCapabilities
}
