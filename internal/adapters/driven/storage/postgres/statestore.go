// Package postgres persists the canonical record in PostgreSQL as a single
// JSONB document, for deployments that share one record between hosts.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Migration is the DDL for the record table. It is safe to execute
// multiple times.
const Migration = `
CREATE TABLE IF NOT EXISTS clinical_record (
    id          SMALLINT PRIMARY KEY CHECK (id = 1),
    record_json JSONB NOT NULL,
    events      INTEGER NOT NULL,
    medications INTEGER NOT NULL,
    saved_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// pgRow represents a single row returned by QueryRow.
type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the minimal database interface the store needs. A pool wrapper
// and test fakes implement it.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) error
}

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore implements driven.StateStore. Every save replaces the one
// row holding the record, so a reader never sees half a record.
type StateStore struct {
	db pgConn
}

// NewStateStore creates a store over an existing connection.
func NewStateStore(db pgConn) *StateStore {
	return &StateStore{db: db}
}

// Open connects to url, runs the migration and returns the store with a
// close function for the pool.
func Open(ctx context.Context, url string) (*StateStore, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := NewStateStore(&pgxPoolWrapper{pool: pool})
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

// Migrate creates the record table when missing.
func (s *StateStore) Migrate(ctx context.Context) error {
	if err := s.db.Exec(ctx, Migration); err != nil {
		return fmt.Errorf("migrate clinical_record: %w", err)
	}
	return nil
}

// LoadState returns the stored record, or an empty one before the first save.
func (s *StateStore) LoadState(ctx context.Context) (domain.Record, error) {
	const query = `SELECT record_json FROM clinical_record WHERE id = 1`

	var data []byte
	if err := s.db.QueryRow(ctx, query).Scan(&data); err != nil {
		if isNoRows(err) {
			return domain.Record{}, nil
		}
		return domain.Record{}, fmt.Errorf("load record: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

// SaveState upserts the record row.
func (s *StateStore) SaveState(ctx context.Context, rec domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	const query = `INSERT INTO clinical_record (id, record_json, events, medications, saved_at)
VALUES (1, $1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET record_json = EXCLUDED.record_json,
                               events      = EXCLUDED.events,
                               medications = EXCLUDED.medications,
                               saved_at    = EXCLUDED.saved_at`

	if err := s.db.Exec(ctx, query, data, len(rec.Events), len(rec.Medications)); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// isNoRows reports whether err is a "no rows" condition from pgx or a fake.
func isNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "no rows")
}

// pgxPoolWrapper adapts *pgxpool.Pool to pgConn; pool.Exec also returns a
// command tag the store does not need.
type pgxPoolWrapper struct {
	pool *pgxpool.Pool
}

func (w *pgxPoolWrapper) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return w.pool.QueryRow(ctx, sql, args...)
}

func (w *pgxPoolWrapper) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := w.pool.Exec(ctx, sql, args...)
	return err
}
