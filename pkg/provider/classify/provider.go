// Package classify defines the Classifier interface for binary text
// classification backends.
//
// The gating pipeline runs two independent classifiers over every transcribed
// sentence: one decides whether the sentence requests an action (actionable),
// the other whether it states a fact worth remembering (contextable). Both are
// instances of the same Classifier abstraction configured with different
// labels, so backends can be mixed freely — a zero-shot model served over HTTP
// for one, a keyword heuristic for the other.
//
// Implementations must be safe for concurrent use.
package classify

import "context"

// Result is the outcome of classifying one text unit.
type Result struct {
	// Match reports whether the text belongs to the classifier's positive
	// label.
	Match bool

	// Confidence is the score backing the decision (0.0–1.0). May be zero for
	// backends that only produce hard decisions.
	Confidence float64
}

// Classifier is the abstraction over any binary text classification backend.
type Classifier interface {
	// Classify decides whether text belongs to the positive label. Returns an
	// error only for backend failures (network, model); an uncertain decision
	// is expressed through Result.Confidence, not an error.
	Classify(ctx context.Context, text string) (Result, error)
}
