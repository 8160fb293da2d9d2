// Package render turns query plans into SQL text and positional arguments.
package render

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// Dialect names.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// Dialect covers the syntax that differs between backends.
type Dialect interface {
	Name() string
	Quote(ident string) string
	Placeholder(n int) string
	// ILike renders a case-insensitive match; col and param are already
	// rendered.
	ILike(col, param string) string
	// KeySet renders cols restricted to tuples, binding values through bind.
	KeySet(cols []string, tuples [][]any, bind func(any) string) string
	// Lock renders the row-lock suffix for rows of table, an already quoted
	// alias, or "" when unsupported.
	Lock(mode domain.LockMode, table string) string
	// LimitOffset renders the pagination suffix.
	LimitOffset(limit, offset *int) string
	SupportsReturning() bool
}

// DialectFor returns the dialect for a provider or dialect name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case Postgres, "postgresql", "pg", "pgx":
		return postgresDialect{}, nil
	case MySQL, "mariadb":
		return mysqlDialect{}, nil
	case SQLite, "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", name)
	}
}

func quoteWith(q, ident string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func standardLimitOffset(limit, offset *int, unbounded string) string {
	var parts []string
	switch {
	case limit != nil:
		parts = append(parts, fmt.Sprintf("LIMIT %d", *limit))
	case offset != nil && unbounded != "":
		parts = append(parts, "LIMIT "+unbounded)
	}
	if offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *offset))
	}
	return strings.Join(parts, " ")
}

// rowValueIn renders (a, b) IN ((?, ?), ...), with an optional keyword in
// front of the tuple list.
func rowValueIn(cols []string, tuples [][]any, bind func(any) string, keyword string) string {
	if len(tuples) == 0 {
		return "1 = 0"
	}
	var sb strings.Builder
	if len(cols) == 1 {
		sb.WriteString(cols[0])
	} else {
		sb.WriteString("(" + strings.Join(cols, ", ") + ")")
	}
	sb.WriteString(" IN (" + keyword)
	for i, t := range tuples {
		if i > 0 {
			sb.WriteString(", ")
		}
		if len(cols) > 1 {
			sb.WriteString("(")
		}
		for j, v := range t {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(bind(v))
		}
		if len(cols) > 1 {
			sb.WriteString(")")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

type postgresDialect struct{}

func (postgresDialect) Name() string                   { return Postgres }
func (postgresDialect) Quote(ident string) string      { return quoteWith(`"`, ident) }
func (postgresDialect) Placeholder(n int) string       { return fmt.Sprintf("$%d", n) }
func (postgresDialect) ILike(col, param string) string { return col + " ILIKE " + param }
func (postgresDialect) SupportsReturning() bool        { return true }

// KeySet binds a single-column key set as one array parameter.
func (postgresDialect) KeySet(cols []string, tuples [][]any, bind func(any) string) string {
	if len(cols) == 1 && len(tuples) > 0 {
		values := make([]interface{}, len(tuples))
		for i, t := range tuples {
			values[i] = t[0]
		}
		return cols[0] + " = ANY(" + bind(pq.Array(values)) + ")"
	}
	return rowValueIn(cols, tuples, bind, "")
}

// Lock names the locked table: PostgreSQL refuses to lock the nullable side
// of an outer join, so optional includes would otherwise fail.
func (postgresDialect) Lock(mode domain.LockMode, table string) string {
	switch mode {
	case domain.LockForUpdate:
		return "FOR UPDATE OF " + table
	case domain.LockForShare:
		return "FOR SHARE OF " + table
	}
	return ""
}

func (postgresDialect) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset, "")
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string              { return MySQL }
func (mysqlDialect) Quote(ident string) string { return quoteWith("`", ident) }
func (mysqlDialect) Placeholder(int) string    { return "?" }
func (mysqlDialect) SupportsReturning() bool   { return false }

func (mysqlDialect) ILike(col, param string) string {
	return "LOWER(" + col + ") LIKE LOWER(" + param + ")"
}

func (mysqlDialect) KeySet(cols []string, tuples [][]any, bind func(any) string) string {
	return rowValueIn(cols, tuples, bind, "")
}

// Lock uses LOCK IN SHARE MODE, which MariaDB also understands.
func (mysqlDialect) Lock(mode domain.LockMode, _ string) string {
	switch mode {
	case domain.LockForUpdate:
		return "FOR UPDATE"
	case domain.LockForShare:
		return "LOCK IN SHARE MODE"
	}
	return ""
}

func (mysqlDialect) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset, "18446744073709551615")
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string              { return SQLite }
func (sqliteDialect) Quote(ident string) string { return quoteWith(`"`, ident) }
func (sqliteDialect) Placeholder(int) string    { return "?" }
func (sqliteDialect) SupportsReturning() bool   { return true }

// ILike relies on LIKE being case-insensitive for ASCII in SQLite.
func (sqliteDialect) ILike(col, param string) string {
	return col + " LIKE " + param
}

// KeySet uses VALUES for composite keys; SQLite only accepts a subquery on
// the right of a row-value IN.
func (sqliteDialect) KeySet(cols []string, tuples [][]any, bind func(any) string) string {
	if len(cols) > 1 {
		return rowValueIn(cols, tuples, bind, "VALUES ")
	}
	return rowValueIn(cols, tuples, bind, "")
}

func (sqliteDialect) Lock(domain.LockMode, string) string { return "" }

func (sqliteDialect) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset, "-1")
}
