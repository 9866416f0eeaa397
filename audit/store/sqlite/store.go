// Package sqlite persists audit records through the pure-Go sqlite driver
// (modernc.org/sqlite). It mirrors the postgres store and exists for
// embedded deployments and for exercising the full save path in tests
// without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chronicle/audit"
	"chronicle/pkg/txcontext"
)

// Schema is the DDL for the audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id            TEXT PRIMARY KEY,
	actor_id      TEXT,
	change_type   TEXT      NOT NULL,
	object_type   TEXT      NOT NULL,
	from_json     TEXT      NOT NULL,
	to_json       TEXT      NOT NULL,
	table_name    TEXT      NOT NULL,
	identity_json TEXT      NOT NULL,
	created_at    TIMESTAMP NOT NULL
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var actorID sql.NullString
	if record.ActorID != nil {
		actorID = sql.NullString{String: record.ActorID.String(), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID.String(),
		actorID,
		record.ChangeType,
		record.ObjectType,
		record.FromJSON,
		record.ToJSON,
		record.TableName,
		record.IdentityJSON,
		record.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}
