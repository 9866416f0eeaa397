package sqlengine_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"chronicle/schema"
	"chronicle/sqlengine"
	"chronicle/tracking"
)

type Widget struct {
	ID    int64 `db:"id,pk"`
	Label string
	Price float64
}

type Unkeyed struct {
	Note string
}

func newEngine(t *testing.T) (*sqlengine.Engine, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// A second pooled connection would see its own empty :memory: database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, label TEXT, price REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unkeyeds (note TEXT)`)
	require.NoError(t, err)

	tracker := tracking.NewTracker(schema.NewRegistry())
	return sqlengine.New(db, sqlengine.SQLite{}, tracker), db
}

func flush(t *testing.T, e *sqlengine.Engine) (int64, error) {
	t.Helper()
	e.Changes()
	var affected int64
	err := e.RunInTx(context.Background(), func(ctx context.Context) error {
		n, err := e.Flush(ctx)
		affected = n
		return err
	})
	if err == nil {
		e.AcceptChanges()
	}
	return affected, err
}

func TestEngine_InsertUpdateDelete(t *testing.T) {
	e, db := newEngine(t)
	w := &Widget{ID: 1, Label: "bolt", Price: 0.10}

	require.NoError(t, e.Tracker().Add(w))
	n, err := flush(t, e)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var label string
	require.NoError(t, db.QueryRow(`SELECT label FROM widgets WHERE id = 1`).Scan(&label))
	assert.Equal(t, "bolt", label)

	w.Label = "hex bolt"
	n, err = flush(t, e)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, db.QueryRow(`SELECT label FROM widgets WHERE id = 1`).Scan(&label))
	assert.Equal(t, "hex bolt", label)

	require.NoError(t, e.Tracker().Remove(w))
	n, err = flush(t, e)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	assert.Zero(t, count)
}

func TestEngine_UpdateOnlyTouchesChangedColumns(t *testing.T) {
	e, db := newEngine(t)
	_, err := db.Exec(`INSERT INTO widgets (id, label, price) VALUES (1, 'bolt', 0.10)`)
	require.NoError(t, err)

	w := &Widget{ID: 1, Label: "bolt", Price: 0.10}
	require.NoError(t, e.Tracker().Attach(w))
	w.Price = 0.12

	_, err = flush(t, e)
	require.NoError(t, err)

	var label string
	var price float64
	require.NoError(t, db.QueryRow(`SELECT label, price FROM widgets WHERE id = 1`).Scan(&label, &price))
	assert.Equal(t, "bolt", label)
	assert.InDelta(t, 0.12, price, 1e-9)
}

func TestEngine_RunInTxRollsBackOnError(t *testing.T) {
	e, db := newEngine(t)
	w := &Widget{ID: 1, Label: "bolt"}
	require.NoError(t, e.Tracker().Add(w))
	e.Changes()

	sentinel := errors.New("audit append failed")
	err := e.RunInTx(context.Background(), func(ctx context.Context) error {
		if _, err := e.Flush(ctx); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	assert.Zero(t, count, "flushed rows roll back with the failing transaction")
}

func TestEngine_RunInTxObservesCancellation(t *testing.T) {
	e, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.RunInTx(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_UpdateWithoutKeyColumnsFails(t *testing.T) {
	e, _ := newEngine(t)
	u := &Unkeyed{Note: "a"}
	require.NoError(t, e.Tracker().Attach(u))
	u.Note = "b"

	_, err := flush(t, e)
	assert.ErrorIs(t, err, sqlengine.ErrNoKeyColumns)
}
