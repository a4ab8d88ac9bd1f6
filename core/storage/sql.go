package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/citybot/core/logger"
)

const (
	selectScopeQuery = `SELECT entry_key, entry_value FROM state_entries WHERE scope = ? AND scope_id = ?`
	selectKeyQuery   = `SELECT entry_value FROM state_entries WHERE scope = ? AND scope_id = ? AND entry_key = ?`
	upsertQuery      = `INSERT INTO state_entries (scope, scope_id, entry_key, entry_value, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (scope, scope_id, entry_key)
DO UPDATE SET entry_value = excluded.entry_value, updated_at = CURRENT_TIMESTAMP`
	deleteQuery = `DELETE FROM state_entries WHERE scope = ? AND scope_id = ? AND entry_key = ?`
)

type entryRow struct {
	Key   string `db:"entry_key"`
	Value []byte `db:"entry_value"`
}

// SQL stores one row per key in the state_entries table. It works with both
// PostgreSQL (JSONB values) and SQLite (TEXT values); values are JSON encoded.
type SQL struct {
	db *sqlx.DB

	selectScope string
	selectKey   string
	upsert      string
	delete      string
}

// NewSQL wraps an open connection. The schema is created by migrations.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{
		db:          db,
		selectScope: db.Rebind(selectScopeQuery),
		selectKey:   db.Rebind(selectKeyQuery),
		upsert:      db.Rebind(upsertQuery),
		delete:      db.Rebind(deleteQuery),
	}
}

// Load reads every key of the scope instance.
func (s *SQL) Load(ctx context.Context, ref Ref) (Values, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, s.selectScope, string(ref.Scope), ref.ID); err != nil {
		s.logFailure(ctx, "store.load", ref, err)
		return nil, fmt.Errorf("storage: load %s: %w", ref, err)
	}
	values := make(Values, len(rows))
	for _, row := range rows {
		v, err := decodeValue(row.Value)
		if err != nil {
			return nil, fmt.Errorf("storage: decode %s/%s: %w", ref, row.Key, err)
		}
		values[row.Key] = v
	}
	logger.Store.LogAttrs(ctx, slog.LevelDebug, "",
		slog.String("event", "store.load"),
		slog.String("scope", string(ref.Scope)),
		slog.String("scope_id", ref.ID),
		slog.Int("count", len(values)),
		slog.Duration("duration", logger.Took(start)),
	)
	return values, nil
}

// Get reads a single key.
func (s *SQL) Get(ctx context.Context, ref Ref, key string) (any, bool, error) {
	if err := (Mutation{Ref: ref, Key: key}).validate(); err != nil {
		return nil, false, err
	}
	var raw []byte
	err := s.db.GetContext(ctx, &raw, s.selectKey, string(ref.Scope), ref.ID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		s.logFailure(ctx, "store.get", ref, err)
		return nil, false, fmt.Errorf("storage: get %s/%s: %w", ref, key, err)
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, false, fmt.Errorf("storage: decode %s/%s: %w", ref, key, err)
	}
	return v, true, nil
}

// Set upserts a single key.
func (s *SQL) Set(ctx context.Context, ref Ref, key string, value any) error {
	return s.Apply(ctx, []Mutation{{Ref: ref, Key: key, Value: value}})
}

// Delete removes a single key.
func (s *SQL) Delete(ctx context.Context, ref Ref, key string) error {
	return s.Apply(ctx, []Mutation{{Ref: ref, Key: key, Delete: true}})
}

// Apply executes the batch in a single transaction.
func (s *SQL) Apply(ctx context.Context, muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	for _, mut := range muts {
		if err := mut.validate(); err != nil {
			return err
		}
	}

	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	for _, mut := range muts {
		if err := s.exec(ctx, tx, mut); err != nil {
			_ = tx.Rollback()
			s.logFailure(ctx, "store.apply", mut.Ref, err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	logger.Store.LogAttrs(ctx, slog.LevelDebug, "",
		slog.String("event", "store.apply"),
		slog.String("status", "ok"),
		slog.Int("mutations", len(muts)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func (s *SQL) exec(ctx context.Context, tx *sqlx.Tx, mut Mutation) error {
	if mut.Delete {
		if _, err := tx.ExecContext(ctx, s.delete, string(mut.Ref.Scope), mut.Ref.ID, mut.Key); err != nil {
			return fmt.Errorf("storage: delete %s/%s: %w", mut.Ref, mut.Key, err)
		}
		return nil
	}
	raw, err := json.Marshal(mut.Value)
	if err != nil {
		return fmt.Errorf("storage: encode %s/%s: %w", mut.Ref, mut.Key, err)
	}
	// Sent as text so PostgreSQL parses it into JSONB and SQLite keeps it as TEXT.
	if _, err := tx.ExecContext(ctx, s.upsert, string(mut.Ref.Scope), mut.Ref.ID, mut.Key, string(raw)); err != nil {
		return fmt.Errorf("storage: set %s/%s: %w", mut.Ref, mut.Key, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) logFailure(ctx context.Context, event string, ref Ref, err error) {
	logger.Store.LogAttrs(ctx, slog.LevelError, "",
		slog.String("event", event),
		slog.String("status", "fail"),
		slog.String("driver", s.db.DriverName()),
		slog.String("scope", string(ref.Scope)),
		slog.String("scope_id", ref.ID),
		slog.String("err", err.Error()),
	)
}

func decodeValue(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
