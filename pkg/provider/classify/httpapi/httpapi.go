// Package httpapi provides a classify.Classifier backed by a local zero-shot
// inference server.
//
// The server is expected to expose a POST /classify endpoint accepting
//
//	{"text": "...", "labels": ["actionable", "not actionable"]}
//
// and returning
//
//	{"labels": ["actionable", "not actionable"], "scores": [0.91, 0.09]}
//
// with labels sorted by descending score — the response shape of the common
// transformers zero-shot pipeline wrappers. The classifier treats the text as
// a positive match when the top label equals the configured positive label and
// its score reaches the threshold.
//
// Only standard library packages are used for transport — the server speaks
// plain JSON over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/earshot-ai/earshot/pkg/provider/classify"
)

// DefaultBaseURL is the default address of a locally running inference server.
const DefaultBaseURL = "http://localhost:8090"

// defaultThreshold is the minimum top-label score accepted as a match.
const defaultThreshold = 0.5

// Compile-time assertion that Classifier satisfies classify.Classifier.
var _ classify.Classifier = (*Classifier)(nil)

// Classifier implements classify.Classifier against a zero-shot HTTP server.
// It is safe for concurrent use.
type Classifier struct {
	baseURL       string
	positiveLabel string
	negativeLabel string
	threshold     float64
	httpClient    *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout   time.Duration
	threshold float64
}

// Option is a functional option for Classifier.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout. A zero or negative value means
// no timeout (the default).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithThreshold sets the minimum top-label score required for a positive
// match. Default: 0.5.
func WithThreshold(t float64) Option {
	return func(c *config) { c.threshold = t }
}

// New constructs a Classifier.
//
// baseURL is the inference server address; if empty, DefaultBaseURL is used.
// positiveLabel and negativeLabel are the two candidate labels sent with every
// request (e.g., "actionable" / "not actionable").
func New(baseURL, positiveLabel, negativeLabel string, opts ...Option) (*Classifier, error) {
	if positiveLabel == "" || negativeLabel == "" {
		return nil, fmt.Errorf("httpapi classifier: both labels must be non-empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &config{threshold: defaultThreshold}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Classifier{
		baseURL:       baseURL,
		positiveLabel: positiveLabel,
		negativeLabel: negativeLabel,
		threshold:     cfg.threshold,
		httpClient:    httpClient,
	}, nil
}

// request is the JSON body sent to /classify.
type request struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

// response is the JSON body returned by /classify.
type response struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classify implements classify.Classifier.
func (c *Classifier) Classify(ctx context.Context, text string) (classify.Result, error) {
	body, err := json.Marshal(request{
		Text:   text,
		Labels: []string{c.positiveLabel, c.negativeLabel},
	})
	if err != nil {
		return classify.Result{}, fmt.Errorf("httpapi classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return classify.Result{}, fmt.Errorf("httpapi classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify.Result{}, fmt.Errorf("httpapi classifier: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classify.Result{}, fmt.Errorf("httpapi classifier: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return classify.Result{}, fmt.Errorf("httpapi classifier: decode response: %w", err)
	}
	if len(out.Labels) == 0 || len(out.Scores) != len(out.Labels) {
		return classify.Result{}, fmt.Errorf("httpapi classifier: malformed response: %d labels, %d scores", len(out.Labels), len(out.Scores))
	}

	top := out.Labels[0]
	score := out.Scores[0]
	return classify.Result{
		Match:      top == c.positiveLabel && score >= c.threshold,
		Confidence: score,
	}, nil
}
