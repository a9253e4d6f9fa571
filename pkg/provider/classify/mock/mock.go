// Package mock provides a test double for the classify.Classifier interface.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-ai/earshot/pkg/provider/classify"
)

// Classifier is a mock implementation of classify.Classifier.
// Set Result/Err before use; inspect Calls after.
type Classifier struct {
	mu sync.Mutex

	// Result is returned by every Classify call.
	Result classify.Result

	// Err, if non-nil, is returned as the error from Classify.
	Err error

	// ResultFor, when non-nil, overrides Result for specific inputs.
	ResultFor map[string]classify.Result

	// Calls records every text passed to Classify, in order.
	Calls []string
}

// Classify records the call and returns the configured result.
func (c *Classifier) Classify(_ context.Context, text string) (classify.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, text)
	if c.Err != nil {
		return classify.Result{}, c.Err
	}
	if c.ResultFor != nil {
		if r, ok := c.ResultFor[text]; ok {
			return r, nil
		}
	}
	return c.Result, nil
}

var _ classify.Classifier = (*Classifier)(nil)
