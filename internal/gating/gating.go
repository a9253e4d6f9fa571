// Package gating decides what happens to each transcribed unit.
//
// Two classifiers run independently over the same text: one judges whether
// the unit is actionable (the user wants something done or answered), the
// other whether it is contextable (worth remembering for later recall). Their
// verdicts combine into one of four routes:
//
//	actionable  contextable  route
//	yes         yes          respond and remember
//	yes         no           respond only
//	no          yes          remember only
//	no          no           ignore
//
// The classifiers never see each other's output; overheard context worth
// remembering is stored even when no response is warranted, and a throwaway
// command is answered without polluting long-term memory.
package gating

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/pkg/provider/classify"
)

// Route is the disposition of one transcribed unit.
type Route int

const (
	// RouteIgnore drops the unit entirely.
	RouteIgnore Route = iota

	// RouteRemember stores the unit in context memory without responding.
	RouteRemember

	// RouteRespond generates a response without storing the unit.
	RouteRespond

	// RouteRespondAndRemember both responds and stores.
	RouteRespondAndRemember
)

// String returns a short route name for logs.
func (r Route) String() string {
	switch r {
	case RouteIgnore:
		return "ignore"
	case RouteRemember:
		return "remember"
	case RouteRespond:
		return "respond"
	case RouteRespondAndRemember:
		return "respond+remember"
	default:
		return fmt.Sprintf("route(%d)", int(r))
	}
}

// Decision carries both verdicts and the derived route.
type Decision struct {
	Actionable  bool
	Contextable bool

	// ActionableConfidence and ContextableConfidence are the classifier
	// scores behind the verdicts.
	ActionableConfidence  float64
	ContextableConfidence float64

	Route Route
}

// Pipeline evaluates units against the two classifiers.
//
// Pipeline is safe for concurrent use when the classifiers are.
type Pipeline struct {
	actionable  classify.Classifier
	contextable classify.Classifier
	metrics     *observe.Metrics
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithMetrics replaces the pipeline's metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a gating pipeline from the two classifiers. Both must be
// non-nil.
func New(actionable, contextable classify.Classifier, opts ...Option) (*Pipeline, error) {
	if actionable == nil || contextable == nil {
		return nil, fmt.Errorf("gating: both classifiers are required")
	}
	p := &Pipeline{
		actionable:  actionable,
		contextable: contextable,
		metrics:     observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Evaluate runs both classifiers on text concurrently and combines their
// verdicts. A failure of either classifier fails the evaluation; the caller
// decides whether to drop the unit or retry.
func (p *Pipeline) Evaluate(ctx context.Context, text string) (Decision, error) {
	started := time.Now()
	defer func() {
		p.metrics.GatingDuration.Record(ctx, time.Since(started).Seconds())
	}()

	var actRes, ctxRes classify.Result

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := p.actionable.Classify(ctx, text)
		if err != nil {
			return fmt.Errorf("actionable classifier: %w", err)
		}
		actRes = r
		return nil
	})
	g.Go(func() error {
		r, err := p.contextable.Classify(ctx, text)
		if err != nil {
			return fmt.Errorf("contextable classifier: %w", err)
		}
		ctxRes = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return Decision{}, fmt.Errorf("gating: %w", err)
	}

	d := Decision{
		Actionable:            actRes.Match,
		Contextable:           ctxRes.Match,
		ActionableConfidence:  actRes.Confidence,
		ContextableConfidence: ctxRes.Confidence,
	}
	switch {
	case d.Actionable && d.Contextable:
		d.Route = RouteRespondAndRemember
	case d.Actionable:
		d.Route = RouteRespond
	case d.Contextable:
		d.Route = RouteRemember
	default:
		d.Route = RouteIgnore
	}
	return d, nil
}
