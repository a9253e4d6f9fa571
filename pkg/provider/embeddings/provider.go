// Package embeddings defines the Provider interface for text-embedding backends.
//
// An embeddings provider maps text to dense float32 vectors. Earshot embeds every
// contextable sentence before writing it to memory, and embeds the current
// utterance when recalling related turns — similarity search over these vectors
// is what makes "remember that ..." work across a session. Backends include
// Ollama models such as nomic-embed-text and the OpenAI text-embedding-3 family.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Every vector a single Provider produces has the same length, reported by
// Dimensions. Vectors from different providers (or different models of the same
// provider) live in different spaces and must never be compared against each
// other; the memory store is keyed to one provider for the life of a session.
type Provider interface {
	// Embed computes the vector for one text string. The result has length
	// Dimensions(). Text is passed to the model verbatim — if a model wants a
	// task prefix like "search_query: ", the caller adds it.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one backend call. The result is
	// index-aligned with texts. All-or-nothing: any failure returns a nil
	// slice and the error, never partial results.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed vector length of this provider's model. The
	// memory store uses it to size its pgvector column.
	Dimensions() int

	// ModelID names the underlying embedding model, e.g.
	// "nomic-embed-text" or "text-embedding-3-small". Shows up in logs and
	// the startup summary.
	ModelID() string
}
