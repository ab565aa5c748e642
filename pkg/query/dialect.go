package query

import "strconv"

// Dialect selects placeholder and pattern-matching syntax.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// DialectFor maps a database/sql driver name to its dialect. Anything not
// recognised as SQLite is treated as Postgres.
func DialectFor(driver string) Dialect {
	if driver == "sqlite" || driver == "sqlite3" {
		return SQLite
	}
	return Postgres
}

// Placeholder returns the bind marker for the n-th argument, counting
// from 1.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// Like returns the case-insensitive match operator. SQLite LIKE already
// folds ASCII case.
func (d Dialect) Like() string {
	if d == SQLite {
		return "LIKE"
	}
	return "ILIKE"
}

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}
