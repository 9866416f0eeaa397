// Package sqlengine flushes tracked changes to a database/sql store. It
// turns the tracker's collected changes into INSERT/UPDATE/DELETE
// statements and provides the transaction scope the save coordinator runs
// in.
package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"chronicle/fieldjson"
	"chronicle/pkg/txcontext"
	"chronicle/tracking"
)

// ErrNoKeyColumns is returned when an update or delete targets a model
// without declared key fields; such rows cannot be addressed.
var ErrNoKeyColumns = errors.New("model declares no key columns")

// Engine owns a tracker and a database handle and implements the save
// coordinator's Engine contract.
type Engine struct {
	db      *sql.DB
	dialect Dialect
	tracker *tracking.Tracker

	// changes collected by Changes() and consumed by Flush(). Flush never
	// re-queries the tracker: original values are gone once the tracker
	// has been accepted.
	changes []tracking.Change
}

func New(db *sql.DB, dialect Dialect, tracker *tracking.Tracker) *Engine {
	return &Engine{db: db, dialect: dialect, tracker: tracker}
}

// Tracker exposes the underlying tracker for attaching entities.
func (e *Engine) Tracker() *tracking.Tracker { return e.tracker }

// Changes collects the pending changes, retaining them for the following
// Flush.
func (e *Engine) Changes() []tracking.Change {
	e.changes = e.tracker.Changes()
	return e.changes
}

// AcceptChanges marks the tracker clean without re-running detection.
func (e *Engine) AcceptChanges() {
	e.tracker.AcceptChanges()
	e.changes = nil
}

// RunInTx begins a transaction, stores it in context so stores sharing the
// handle join it, and commits when fn succeeds. Any error, including
// context cancellation, rolls the whole transaction back.
func (e *Engine) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.With(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Flush writes the changes collected by the preceding Changes() call and
// returns the number of affected rows. It must run inside RunInTx so the
// statements join the ambient transaction.
func (e *Engine) Flush(ctx context.Context) (int64, error) {
	execer := e.execer(ctx)
	var affected int64
	for _, change := range e.changes {
		query, args, err := e.statement(change)
		if err != nil {
			return affected, err
		}
		res, err := execer.ExecContext(ctx, query, args...)
		if err != nil {
			return affected, fmt.Errorf("flush %s %s: %w", strings.ToLower(change.Kind.String()), change.Model.Table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}
	return affected, nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (e *Engine) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return e.db
}

func (e *Engine) statement(change tracking.Change) (string, []any, error) {
	switch change.Kind {
	case tracking.KindAdded:
		return e.insert(change)
	case tracking.KindModified:
		return e.update(change)
	case tracking.KindDeleted:
		return e.delete(change)
	default:
		return "", nil, fmt.Errorf("flush: unsupported change kind %s", change.Kind)
	}
}

func (e *Engine) insert(change tracking.Change) (string, []any, error) {
	columns := make([]string, 0, len(change.After))
	markers := make([]string, 0, len(change.After))
	args := make([]any, 0, len(change.After))
	for _, f := range change.After {
		column, ok := change.Model.Field(f.Name)
		if !ok {
			return "", nil, fmt.Errorf("insert %s: unknown field %q", change.Model.Table, f.Name)
		}
		columns = append(columns, column.Column)
		markers = append(markers, e.dialect.Placeholder(len(args)+1))
		args = append(args, f.Value)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		change.Model.Table, strings.Join(columns, ", "), strings.Join(markers, ", "))
	return query, args, nil
}

func (e *Engine) update(change tracking.Change) (string, []any, error) {
	assignments := make([]string, 0, len(change.After))
	args := make([]any, 0, len(change.After))
	before := indexByName(change.Before)
	for _, f := range change.After {
		if prev, ok := before[f.Name]; ok && fieldjson.Render(prev) == fieldjson.Render(f.Value) {
			continue
		}
		column, ok := change.Model.Field(f.Name)
		if !ok {
			return "", nil, fmt.Errorf("update %s: unknown field %q", change.Model.Table, f.Name)
		}
		assignments = append(assignments,
			fmt.Sprintf("%s = %s", column.Column, e.dialect.Placeholder(len(args)+1)))
		args = append(args, f.Value)
	}
	if len(assignments) == 0 {
		// A no-op update still surfaces upstream as a tracking
		// inconsistency; nothing to write here.
		return "", nil, fmt.Errorf("update %s: no changed columns", change.Model.Table)
	}
	where, args, err := e.keyPredicate(change, change.Before, args)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		change.Model.Table, strings.Join(assignments, ", "), where)
	return query, args, nil
}

func (e *Engine) delete(change tracking.Change) (string, []any, error) {
	where, args, err := e.keyPredicate(change, change.Before, nil)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", change.Model.Table, where), args, nil
}

// keyPredicate builds the WHERE clause addressing the row by its declared
// key fields, reading key values out of the given snapshot.
func (e *Engine) keyPredicate(change tracking.Change, snapshot []fieldjson.Field, args []any) (string, []any, error) {
	keys := change.Model.KeyFields()
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("%s %s: %w", strings.ToLower(change.Kind.String()), change.Model.Table, ErrNoKeyColumns)
	}
	values := indexByName(snapshot)
	predicates := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := values[k.Name]
		if !ok {
			return "", nil, fmt.Errorf("%s %s: snapshot is missing key field %q", strings.ToLower(change.Kind.String()), change.Model.Table, k.Name)
		}
		predicates = append(predicates,
			fmt.Sprintf("%s = %s", k.Column, e.dialect.Placeholder(len(args)+1)))
		args = append(args, v)
	}
	return strings.Join(predicates, " AND "), args, nil
}

func indexByName(fields []fieldjson.Field) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m
}
