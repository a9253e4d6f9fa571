// Package mock is a test double for embeddings.Provider. Tests configure the
// vectors it hands back and inspect which texts were embedded, so memory and
// orchestrator behavior can be exercised without a live embedding model.
//
//	p := &mock.Provider{
//	    EmbedResult:     []float32{0.1, 0.2, 0.3},
//	    DimensionsValue: 3,
//	    ModelIDValue:    "test-embed-v1",
//	}
package mock

import (
	"context"
	"sync"

	"github.com/earshot-ai/earshot/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall is one recorded Embed invocation.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall is one recorded EmbedBatch invocation. Texts is a copy, so
// later mutation of the caller's slice does not corrupt the record.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider implements embeddings.Provider with canned responses. The zero
// value is usable; all methods are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Canned responses.
	EmbedResult      []float32   // returned by Embed
	EmbedErr         error       // returned by Embed when non-nil
	EmbedBatchResult [][]float32 // returned by EmbedBatch; nil means one nil vector per input
	EmbedBatchErr    error       // returned by EmbedBatch when non-nil
	DimensionsValue  int         // returned by Dimensions
	ModelIDValue     string      // returned by ModelID

	// Call records, in order.
	EmbedCalls          []EmbedCall
	EmbedBatchCalls     []EmbedBatchCall
	DimensionsCallCount int
	ModelIDCallCount    int
}

// Embed records the call and returns EmbedResult, EmbedErr.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	return p.EmbedResult, p.EmbedErr
}

// EmbedBatch records the call and returns EmbedBatchResult, EmbedBatchErr.
// A nil EmbedBatchResult yields len(texts) nil vectors so callers that only
// check lengths still work.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})

	switch {
	case p.EmbedBatchErr != nil:
		return nil, p.EmbedBatchErr
	case p.EmbedBatchResult != nil:
		return p.EmbedBatchResult, nil
	default:
		return make([][]float32, len(texts)), nil
	}
}

// Dimensions records the call and returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DimensionsCallCount++
	return p.DimensionsValue
}

// ModelID records the call and returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ModelIDCallCount++
	return p.ModelIDValue
}

// Reset clears all recorded calls, leaving the canned responses in place.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
	p.DimensionsCallCount = 0
	p.ModelIDCallCount = 0
}
