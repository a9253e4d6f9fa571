// Package openai implements an embeddings provider on the OpenAI API. It is
// the hosted alternative to the local Ollama embedder for vector-indexing
// contextable sentences into memory.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/earshot-ai/earshot/pkg/provider/embeddings"
)

// DefaultModel is used when the config names no embedding model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

var _ embeddings.Provider = (*Provider)(nil)

// Provider calls the OpenAI embeddings endpoint.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option configures the provider at construction time.
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible server instead of
// api.openai.com.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New builds a Provider. An empty model falls back to DefaultModel.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embeddings: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	return &Provider{
		client: oai.NewClient(cfg.requestOptions(apiKey)...),
		model:  model,
	}, nil
}

func (c *config) requestOptions(apiKey string) []option.RequestOption {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	if c.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(c.organization))
	}
	if c.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: c.timeout}))
	}
	return reqOpts
}

// request performs one embeddings call for either a single string or a batch.
func (p *Provider) request(ctx context.Context, input oai.EmbeddingNewParamsInputUnion) (*oai.CreateEmbeddingResponse, error) {
	return p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: input,
	})
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.request(ctx, oai.EmbeddingNewParamsInputUnion{
		OfString: param.NewOpt(text),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return float64ToFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch implements embeddings.Provider. The API may return embeddings
// out of order, so results are placed by the index the server reports.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.request(ctx, oai.EmbeddingNewParamsInputUnion{
		OfArrayOfStrings: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: unexpected index %d", e.Index)
		}
		result[e.Index] = float64ToFloat32(e.Embedding)
	}
	return result, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	return modelDimensions(p.model)
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

// modelDimensions maps known OpenAI embedding models to their vector width.
// The memory store sizes its pgvector column from this value.
func modelDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "text-embedding-3-large"):
		return 3072
	case strings.Contains(lower, "text-embedding-3-small"),
		strings.Contains(lower, "text-embedding-ada-002"):
		return 1536
	default:
		// Unknown models get the 3-small width rather than zero, which
		// would break column sizing outright.
		return 1536
	}
}

// float64ToFloat32 narrows the API's float64 vectors. pgvector stores
// float32 and the precision loss is irrelevant for similarity ranking.
func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
