// Package mock provides a mock implementation of [llm.Provider] for testing.
package mock

import (
	"context"

	"github.com/earshot-ai/earshot/pkg/provider/llm"
	"github.com/earshot-ai/earshot/pkg/types"
)

// Provider is a mock llm.Provider whose behaviour is scripted through exported
// fields. When Responses is non-empty, each Complete call consumes the next
// entry; after exhaustion the last entry repeats.
type Provider struct {
	// Responses are returned from Complete in order.
	Responses []*llm.CompletionResponse
	// CompleteErr, when set, is returned from every Complete call.
	CompleteErr error
	// TokenCount is returned from CountTokens.
	TokenCount int
	// CountErr, when set, is returned from CountTokens.
	CountErr error
	// Caps is returned from Capabilities.
	Caps types.ModelCapabilities

	// CompleteCalls records the requests passed to Complete.
	CompleteCalls []llm.CompletionRequest

	next int
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.CompleteCalls = append(p.CompleteCalls, req)
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	idx := p.next
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	p.next++
	return p.Responses[idx], nil
}

func (p *Provider) CountTokens(messages []types.Message) (int, error) {
	if p.CountErr != nil {
		return 0, p.CountErr
	}
	return p.TokenCount, nil
}

func (p *Provider) Capabilities() types.ModelCapabilities {
	return p.Caps
}
