package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Transcript log DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlTranscriptEntries = `
CREATE TABLE IF NOT EXISTS transcript_entries (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL,
    role         TEXT         NOT NULL,
    text         TEXT         NOT NULL,
    timestamp    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_ns  BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_session_timestamp
    ON transcript_entries (session_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_fts
    ON transcript_entries USING GIN (to_tsvector('english', text));
`

// ddlMemories returns the semantic store DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memories_session_id
    ON memories (session_id);

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 768 for nomic-embed-text, 1536 for text-embedding-3-small).
// Changing this value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlTranscriptEntries,
		ddlMemories(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
