package resilience

import (
	"context"

	"github.com/earshot-ai/earshot/pkg/provider/llm"
	"github.com/earshot-ai/earshot/pkg/types"
)

// LLMFallback chains LLM backends behind one [llm.Provider]. A turn goes to
// the primary (say, local Ollama); if that fails or its breaker is open, the
// next backend (say, a hosted API) gets the request instead. The assistant
// keeps answering as long as any backend is healthy.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback wraps primary as the preferred backend. Add alternates with
// AddFallback before serving traffic.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends another backend; tried in registration order.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete runs the completion on the first backend that succeeds.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens uses the first healthy backend's tokenizer. Counts can differ
// slightly between backends, which is acceptable for budget estimates.
func (f *LLMFallback) CountTokens(messages []types.Message) (int, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (int, error) {
		return p.CountTokens(messages)
	})
}

// Capabilities reports the primary's capabilities. Static metadata, so no
// failover.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Capabilities()
	}
	return types.ModelCapabilities{}
}
