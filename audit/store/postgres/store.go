// Package postgres persists audit records to PostgreSQL via database/sql
// (lib/pq). Append joins the transaction carried in context when the save
// coordinator supplies one, so audit rows commit or roll back together with
// the base mutations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"chronicle/audit"
	"chronicle/pkg/txcontext"
)

// Schema is the DDL for the audit table. Callers apply it through
// EnsureSchema or their own migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id            UUID PRIMARY KEY,
	actor_id      UUID,
	change_type   TEXT        NOT NULL,
	object_type   TEXT        NOT NULL,
	from_json     TEXT        NOT NULL,
	to_json       TEXT        NOT NULL,
	table_name    TEXT        NOT NULL,
	identity_json TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
)`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the audit table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, record audit.Record) error {
	const query = `
		INSERT INTO audit_records (
			id, actor_id, change_type, object_type,
			from_json, to_json, table_name, identity_json, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID,
		record.ActorID,
		record.ChangeType,
		record.ObjectType,
		record.FromJSON,
		record.ToJSON,
		record.TableName,
		record.IdentityJSON,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}
