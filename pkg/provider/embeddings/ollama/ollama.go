// Package ollama implements an embeddings provider on Ollama's native
// /api/embed endpoint, with models such as nomic-embed-text, mxbai-embed-large
// and all-minilm.
//
// This is the default embeddings backend for a fully local Earshot deployment:
// pair it with an Ollama LLM and nothing leaves the machine.
//
//	p, err := ollama.New("", "nomic-embed-text") // connects to http://localhost:11434
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/earshot-ai/earshot/pkg/provider/embeddings"
)

// DefaultBaseURL is where a locally running Ollama instance listens.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// Provider talks to an Ollama server over HTTP.
//
// The vector dimension is resolved in this order: the WithDimensions option,
// then a built-in table of recognised model names, then a one-time probe
// embed against the live server on the first Dimensions call.
//
// Provider is safe for concurrent use.
type Provider struct {
	endpoint   string // baseURL + "/api/embed"
	model      string
	httpClient *http.Client

	// dimensions is the resolved vector length. Zero means not yet known;
	// detectOnce fills it in lazily.
	dimensions int
	detectOnce sync.Once
	detectErr  error
}

type config struct {
	timeout    time.Duration
	dimensions int
}

// Option configures the provider at construction time.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout. Zero or negative means no
// timeout, which is the default.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithDimensions pins the embedding dimension up front, skipping both the
// model-name table and the probe request an unknown model would otherwise
// trigger on the first Dimensions call.
func WithDimensions(dims int) Option {
	return func(c *config) {
		c.dimensions = dims
	}
}

// New builds a Provider for the given Ollama server and embedding model.
// An empty baseURL means DefaultBaseURL; a trailing slash is stripped.
// model must not be empty.
func New(baseURL string, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	dims := cfg.dimensions
	if dims == 0 {
		// No explicit dimension — well-known models resolve from the table
		// and skip the probe entirely.
		dims = knownDimensions(model)
	}

	return &Provider{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/embed",
		model:      model,
		httpClient: &http.Client{Timeout: max(cfg.timeout, 0)},
		dimensions: dims,
	}, nil
}

// apiRequest and apiResponse mirror the wire format of Ollama's /api/embed.
type apiRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type apiResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider. The text is forwarded verbatim; any
// model-specific prefix ("query: ", "passage: ") is the caller's responsibility.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.post(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("ollama embeddings: embed: empty response")
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider with a single /api/embed request.
// An empty texts slice returns (nil, nil) without a network round trip.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.post(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: embed batch: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// Dimensions implements embeddings.Provider. For unknown models a probe embed
// is issued once against the live server; if the probe fails, 0 is returned.
func (p *Provider) Dimensions() int {
	if p.dimensions != 0 {
		return p.dimensions
	}
	p.detectOnce.Do(func() {
		vecs, err := p.post(context.Background(), []string{"probe"})
		if err != nil {
			p.detectErr = err
			return
		}
		if len(vecs) > 0 {
			p.dimensions = len(vecs[0])
		}
	})
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

// post sends one /api/embed request and returns the raw vectors.
func (p *Provider) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(apiRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}
	return result.Embeddings, nil
}

// knownDimensions maps recognised Ollama embedding models to their vector
// width. Zero means unknown, which defers to the probe in Dimensions.
func knownDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	default:
		return 0
	}
}
