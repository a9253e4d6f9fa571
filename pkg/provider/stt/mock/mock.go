// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcripts into the pipeline
// without a live STT engine:
//
//	p := &mock.Provider{
//	    Transcripts: []types.Transcript{{Text: "turn on the lights."}},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/earshot-ai/earshot/pkg/provider/stt"
	"github.com/earshot-ai/earshot/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Clip is the clip passed to Transcribe.
	Clip stt.Clip
}

// Provider is a mock implementation of stt.Provider. Each Transcribe call
// consumes the next value from Transcripts; once exhausted, later calls return
// an empty Transcript (mimicking silence).
type Provider struct {
	mu sync.Mutex

	// Transcripts is the scripted result sequence.
	Transcripts []types.Transcript

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// TranscribeCalls records every invocation in order.
	TranscribeCalls []TranscribeCall

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Transcribe records the call and returns the next scripted transcript.
func (p *Provider) Transcribe(ctx context.Context, clip stt.Clip) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Clip: clip})
	if p.TranscribeErr != nil {
		return types.Transcript{}, p.TranscribeErr
	}

	idx := len(p.TranscribeCalls) - 1
	if idx >= len(p.Transcripts) {
		return types.Transcript{}, nil
	}
	return p.Transcripts[idx], nil
}

// Close records the call and returns nil.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountClose++
	return nil
}

var _ stt.Provider = (*Provider)(nil)
