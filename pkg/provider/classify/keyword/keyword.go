// Package keyword provides a dependency-free classify.Classifier based on
// trigger-word matching. It is the fallback backend used when no zero-shot
// inference server is configured, and the default for quick local runs.
//
// A text matches when it contains at least one of the configured trigger words
// (case-insensitive, whole-word). Confidence grows with the number of distinct
// triggers hit, saturating at 1.0.
package keyword

import (
	"context"
	"strings"
	"unicode"

	"github.com/earshot-ai/earshot/pkg/provider/classify"
)

// Compile-time assertion that Classifier satisfies classify.Classifier.
var _ classify.Classifier = (*Classifier)(nil)

// Classifier implements classify.Classifier by whole-word trigger matching.
// It is read-only after construction and safe for concurrent use.
type Classifier struct {
	triggers map[string]struct{}
}

// New creates a Classifier that matches any of the given trigger words.
// Triggers are lower-cased; empty entries are ignored.
func New(triggers []string) *Classifier {
	set := make(map[string]struct{}, len(triggers))
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return &Classifier{triggers: set}
}

// Classify implements classify.Classifier. It never returns an error.
func (c *Classifier) Classify(_ context.Context, text string) (classify.Result, error) {
	if len(c.triggers) == 0 {
		return classify.Result{}, nil
	}

	hits := 0
	for _, word := range tokenise(text) {
		if _, ok := c.triggers[word]; ok {
			hits++
		}
	}
	if hits == 0 {
		return classify.Result{}, nil
	}

	confidence := 0.6 + 0.2*float64(hits-1)
	if confidence > 1 {
		confidence = 1
	}
	return classify.Result{Match: true, Confidence: confidence}, nil
}

// tokenise splits text into lower-cased words, stripping punctuation.
func tokenise(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
