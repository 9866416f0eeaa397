package sqlengine

import "strconv"

// Dialect abstracts the placeholder syntax differences between the
// supported drivers.
type Dialect interface {
	// Placeholder returns the parameter marker for the n-th argument,
	// 1-based.
	Placeholder(n int) string
}

// Postgres emits $1, $2, ... markers (lib/pq).
type Postgres struct{}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// SQLite emits ? markers (modernc.org/sqlite).
type SQLite struct{}

func (SQLite) Placeholder(int) string { return "?" }
