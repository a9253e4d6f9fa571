package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/earshot-ai/earshot/pkg/memory"
)

// TranscriptLog is the append-only session log backed by the
// transcript_entries table. Obtain one via [Store.Log].
//
// All methods are safe for concurrent use.
type TranscriptLog struct {
	pool *pgxpool.Pool
}

// Append implements [memory.TranscriptLog].
func (l *TranscriptLog) Append(ctx context.Context, entry memory.TranscriptEntry) error {
	const q = `
		INSERT INTO transcript_entries
		    (session_id, role, text, timestamp, duration_ns)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := l.pool.Exec(ctx, q,
		entry.SessionID,
		entry.Role,
		entry.Text,
		entry.Timestamp,
		int64(entry.AudioDuration),
	)
	if err != nil {
		return fmt.Errorf("transcript log: append: %w", err)
	}
	return nil
}

// Recent implements [memory.TranscriptLog]. It returns the n most recent
// entries for sessionID in chronological order (oldest first).
func (l *TranscriptLog) Recent(ctx context.Context, sessionID string, n int) ([]memory.TranscriptEntry, error) {
	if n <= 0 {
		return []memory.TranscriptEntry{}, nil
	}

	// Inner query selects the newest n rows; the outer query restores
	// chronological order.
	const q = `
		SELECT session_id, role, text, timestamp, duration_ns
		FROM (
		    SELECT session_id, role, text, timestamp, duration_ns
		    FROM   transcript_entries
		    WHERE  session_id = $1
		    ORDER  BY timestamp DESC
		    LIMIT  $2
		) latest
		ORDER BY timestamp`

	rows, err := l.pool.Query(ctx, q, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("transcript log: recent: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.TranscriptEntry, error) {
		var (
			e          memory.TranscriptEntry
			durationNS int64
		)
		if err := row.Scan(&e.SessionID, &e.Role, &e.Text, &e.Timestamp, &durationNS); err != nil {
			return memory.TranscriptEntry{}, err
		}
		e.AudioDuration = time.Duration(durationNS)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcript log: scan rows: %w", err)
	}
	if entries == nil {
		entries = []memory.TranscriptEntry{}
	}
	return entries, nil
}
