package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonara-ai/sonara/internal/transcript"
)

// TurnStore implements transcript.Store on PostgreSQL.
type TurnStore struct {
	pool *pgxpool.Pool
}

// Append implements transcript.Store.
func (s *TurnStore) Append(ctx context.Context, t *transcript.Turn) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO turns (id, call_id, speaker, text, confidence, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.CallID, string(t.Speaker), t.Text, t.Confidence, t.Language, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("turn store: insert: %w", err)
	}
	return nil
}

// ListByCall implements transcript.Store.
func (s *TurnStore) ListByCall(ctx context.Context, callID string) ([]*transcript.Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, call_id, speaker, text, confidence, language, created_at
		FROM turns WHERE call_id = $1
		ORDER BY created_at, id`, callID)
	if err != nil {
		return nil, fmt.Errorf("turn store: list: %w", err)
	}
	return collectTurns(rows)
}

// Recent implements transcript.Store. The inner query takes the newest
// rows, the outer flips them back to oldest-first.
func (s *TurnStore) Recent(ctx context.Context, callID string, limit int) ([]*transcript.Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, call_id, speaker, text, confidence, language, created_at FROM (
			SELECT id, call_id, speaker, text, confidence, language, created_at
			FROM turns WHERE call_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) newest
		ORDER BY created_at, id`, callID, limit)
	if err != nil {
		return nil, fmt.Errorf("turn store: recent: %w", err)
	}
	return collectTurns(rows)
}

// Count implements transcript.Store.
func (s *TurnStore) Count(ctx context.Context, callID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM turns WHERE call_id = $1`, callID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("turn store: count: %w", err)
	}
	return n, nil
}

func collectTurns(rows pgx.Rows) ([]*transcript.Turn, error) {
	defer rows.Close()
	var out []*transcript.Turn
	for rows.Next() {
		var (
			t       transcript.Turn
			speaker string
		)
		if err := rows.Scan(&t.ID, &t.CallID, &speaker, &t.Text, &t.Confidence, &t.Language, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("turn store: scan: %w", err)
		}
		t.Speaker = transcript.Speaker(speaker)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("turn store: rows: %w", err)
	}
	return out, nil
}
