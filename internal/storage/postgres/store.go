// Package postgres provides the PostgreSQL-backed call store and turn
// ledger. Both share one connection pool; NewStore runs the schema
// migration on startup.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/transcript"
)

// Compile-time interface checks.
var (
	_ call.Store       = (*CallStore)(nil)
	_ transcript.Store = (*TurnStore)(nil)
)

// Store holds the shared pool and exposes the two durable stores:
//
//   - [Store.Calls] implements [call.Store]
//   - [Store.Turns] implements [transcript.Store]
//
// All operations are safe for concurrent use.
type Store struct {
	pool  *pgxpool.Pool
	calls *CallStore
	turns *TurnStore
}

// NewStore connects to the database at dsn, verifies the connection, and
// ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:  pool,
		calls: &CallStore{pool: pool},
		turns: &TurnStore{pool: pool},
	}, nil
}

// Calls returns the call store implementation.
func (s *Store) Calls() *CallStore { return s.calls }

// Turns returns the turn ledger implementation.
func (s *Store) Turns() *TurnStore { return s.turns }

// Ping verifies database connectivity. Readiness probes call this.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// migrate creates the calls and turns tables when missing. The turns
// table carries no update path at all; the ledger is append-only down to
// the schema.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id            TEXT PRIMARY KEY,
	room_name     TEXT NOT NULL,
	source        TEXT NOT NULL,
	status        TEXT NOT NULL,
	summary       TEXT NOT NULL DEFAULT '',
	entities      JSONB,
	created_at    TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	handed_off_at TIMESTAMPTZ,
	ended_at      TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_status_created_idx ON calls (status, created_at DESC);

CREATE TABLE IF NOT EXISTS turns (
	id         TEXT PRIMARY KEY,
	call_id    TEXT NOT NULL REFERENCES calls (id),
	speaker    TEXT NOT NULL,
	text       TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	language   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_call_created_idx ON turns (call_id, created_at);
`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
