// Package mock provides a mock implementation of [tts.Provider] for testing.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-ai/earshot/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// Provider is a mock tts.Provider scripted through exported fields.
type Provider struct {
	mu sync.Mutex

	// SynthesizeResult is returned by every Synthesize call.
	SynthesizeResult tts.Audio
	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error
	// Voices is returned by ListVoices.
	Voices []tts.Voice
	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// SynthesizeCalls records every Synthesize invocation in order.
	SynthesizeCalls []SynthesizeCall
	// ListVoicesCallCount is the number of times ListVoices was called.
	ListVoicesCallCount int
}

var _ tts.Provider = (*Provider)(nil)

func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return tts.Audio{}, p.SynthesizeErr
	}
	return p.SynthesizeResult, nil
}

func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCallCount++
	return p.Voices, p.ListVoicesErr
}
