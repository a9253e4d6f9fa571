package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/earshot-ai/earshot/pkg/memory"
)

// SemanticStore is the similarity-searchable memory layer backed by a
// PostgreSQL memories table with a pgvector HNSW index. Obtain one via
// [Store.Semantic].
//
// All methods are safe for concurrent use.
type SemanticStore struct {
	pool *pgxpool.Pool
}

// Remember implements [memory.SemanticStore]. It upserts a pre-embedded entry
// into the memories table. If an entry with the same ID already exists it is
// completely replaced. An empty ID gets a random one assigned.
func (s *SemanticStore) Remember(ctx context.Context, entry memory.Entry) error {
	const q = `
		INSERT INTO memories
		    (id, session_id, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    session_id = EXCLUDED.session_id,
		    text       = EXCLUDED.text,
		    embedding  = EXCLUDED.embedding,
		    created_at = EXCLUDED.created_at`

	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	vec := pgvector.NewVector(entry.Embedding)
	_, err := s.pool.Exec(ctx, q,
		entry.ID,
		entry.SessionID,
		entry.Text,
		vec,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("semantic store: remember: %w", err)
	}
	return nil
}

// Search implements [memory.SemanticStore]. It finds the topK entries whose
// embeddings are closest (cosine distance) to the supplied query embedding,
// optionally filtered by filter.
//
// Results are ordered by ascending distance; ties go to the newer entry.
func (s *SemanticStore) Search(ctx context.Context, embedding []float32, topK int, filter memory.SearchFilter) ([]memory.SearchResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(filter.SessionID))
	}
	if !filter.After.IsZero() {
		conditions = append(conditions, "created_at > "+next(filter.After))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "created_at < "+next(filter.Before))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, session_id, text, embedding, created_at,
		       embedding <=> $1 AS distance
		FROM   memories
		%s
		ORDER  BY distance, created_at DESC
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.SearchResult, error) {
		var (
			sr  memory.SearchResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&sr.Entry.ID,
			&sr.Entry.SessionID,
			&sr.Entry.Text,
			&vec,
			&sr.Entry.CreatedAt,
			&sr.Distance,
		); err != nil {
			return memory.SearchResult{}, err
		}
		sr.Entry.Embedding = vec.Slice()
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("semantic store: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.SearchResult{}
	}
	return results, nil
}

// Reset implements [memory.SemanticStore]. With an empty sessionID the whole
// table is cleared.
func (s *SemanticStore) Reset(ctx context.Context, sessionID string) error {
	var err error
	if sessionID == "" {
		_, err = s.pool.Exec(ctx, `DELETE FROM memories`)
	} else {
		_, err = s.pool.Exec(ctx, `DELETE FROM memories WHERE session_id = $1`, sessionID)
	}
	if err != nil {
		return fmt.Errorf("semantic store: reset: %w", err)
	}
	return nil
}

// newEntryID returns a random 16-byte hex identifier.
func newEntryID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// timestamp so Remember still succeeds.
		return fmt.Sprintf("mem-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
