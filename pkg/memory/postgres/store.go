// Package postgres implements the earshot memory interfaces on PostgreSQL.
// The semantic store uses the pgvector extension with an HNSW index for
// approximate nearest-neighbour search.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/earshot-ai/earshot/pkg/memory"
)

var (
	_ memory.TranscriptLog = (*TranscriptLog)(nil)
	_ memory.SemanticStore = (*SemanticStore)(nil)
)

// Store holds a single [pgxpool.Pool] and exposes both memory layers:
//
//   - [Store.Log] returns a [TranscriptLog] implementing [memory.TranscriptLog]
//   - [Store.Semantic] returns a [SemanticStore] implementing [memory.SemanticStore]
//
// All operations are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	log      *TranscriptLog
	semantic *SemanticStore
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate] to ensure
// all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embeddings
// provider (e.g., 768 for nomic-embed-text, 1536 for text-embedding-3-small).
// Changing this value after the first migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:     pool,
		log:      &TranscriptLog{pool: pool},
		semantic: &SemanticStore{pool: pool},
	}, nil
}

// Log returns the transcript log implementation.
func (s *Store) Log() *TranscriptLog { return s.log }

// Semantic returns the semantic store implementation.
func (s *Store) Semantic() *SemanticStore { return s.semantic }

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
