package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonara-ai/sonara/internal/call"
)

const callColumns = `id, room_name, source, status, summary, entities,
	created_at, started_at, handed_off_at, ended_at, updated_at`

// CallStore implements call.Store on PostgreSQL.
type CallStore struct {
	pool *pgxpool.Pool
}

// Create implements call.Store.
func (s *CallStore) Create(ctx context.Context, c *call.Call) error {
	entities, err := marshalEntities(c.Entities)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO calls (id, room_name, source, status, summary, entities,
			created_at, started_at, handed_off_at, ended_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.RoomName, c.Source, string(c.Status), c.Summary, entities,
		c.CreatedAt, c.StartedAt, c.HandedOffAt, c.EndedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("call store: insert: %w", err)
	}
	return nil
}

// Get implements call.Store.
func (s *CallStore) Get(ctx context.Context, id string) (*call.Call, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id)
	c, err := scanCall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, call.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("call store: get: %w", err)
	}
	return c, nil
}

// List implements call.Store.
func (s *CallStore) List(ctx context.Context, f call.Filter) ([]*call.Call, error) {
	limit := f.Limit
	if limit <= 0 || limit > call.DefaultListLimit {
		limit = call.DefaultListLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if f.Status != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT `+callColumns+` FROM calls
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2`, string(f.Status), limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+callColumns+` FROM calls
			ORDER BY created_at DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("call store: list: %w", err)
	}
	defer rows.Close()

	var out []*call.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("call store: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call store: list rows: %w", err)
	}
	return out, nil
}

// Transition implements call.Store. The guarded UPDATE makes the
// check-and-apply one atomic statement: it only fires when the current
// status is a legal source for the target, so concurrent transitions for
// the same call serialize on the row and exactly one wins.
func (s *CallStore) Transition(ctx context.Context, id string, target call.Status, at time.Time) (*call.Call, error) {
	sources := call.AllowedSources(target)
	if len(sources) == 0 {
		return nil, &call.TransitionError{To: target}
	}
	allowed := make([]string, len(sources))
	for i, st := range sources {
		allowed[i] = string(st)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE calls SET
			status        = $2,
			updated_at    = $3,
			started_at    = CASE WHEN $2 = 'ACTIVE'     THEN $3 ELSE started_at END,
			handed_off_at = CASE WHEN $2 = 'HANDED_OFF' THEN $3 ELSE handed_off_at END,
			ended_at      = CASE WHEN $2 = 'ENDED'      THEN $3 ELSE ended_at END
		WHERE id = $1 AND status = ANY($4)
		RETURNING `+callColumns,
		id, string(target), at, allowed,
	)

	c, err := scanCall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the call does not exist or its status blocks the edge.
		cur, gerr := s.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &call.TransitionError{From: cur.Status, To: target}
	}
	if err != nil {
		return nil, fmt.Errorf("call store: transition: %w", err)
	}
	return c, nil
}

// UpdateContext implements call.Store. The status guard in the UPDATE
// keeps ENDED calls immutable. Summary and entities both overwrite: a
// recomputation that found no entities clears the column.
func (s *CallStore) UpdateContext(ctx context.Context, id, summary string, entities map[string][]string) (*call.Call, error) {
	blob, err := marshalEntities(entities)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE calls SET summary = $2, entities = $3, updated_at = now()
		WHERE id = $1 AND status <> 'ENDED'
		RETURNING `+callColumns,
		id, summary, blob,
	)

	c, err := scanCall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, call.ErrCallEnded
	}
	if err != nil {
		return nil, fmt.Errorf("call store: update context: %w", err)
	}
	return c, nil
}

// scanCall reads one call row.
func scanCall(row pgx.Row) (*call.Call, error) {
	var (
		c        call.Call
		status   string
		entities []byte
	)
	err := row.Scan(
		&c.ID, &c.RoomName, &c.Source, &status, &c.Summary, &entities,
		&c.CreatedAt, &c.StartedAt, &c.HandedOffAt, &c.EndedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = call.Status(status)
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &c.Entities); err != nil {
			return nil, fmt.Errorf("decode entities: %w", err)
		}
	}
	return &c, nil
}

// marshalEntities renders the entity map as JSONB, nil for an empty map.
func marshalEntities(entities map[string][]string) ([]byte, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	blob, err := json.Marshal(entities)
	if err != nil {
		return nil, fmt.Errorf("call store: encode entities: %w", err)
	}
	return blob, nil
}
