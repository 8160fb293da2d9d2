// Package database executes rendered statements against a connection pool
// or a transaction.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// ErrConnectionClosed is returned for statements on a disconnected adapter
// or a finished transaction.
var ErrConnectionClosed = errors.New("connection closed")

// Querier runs rendered statements. Adapter and Transaction implement it.
type Querier interface {
	// Query runs a statement that returns rows and reads them all.
	Query(ctx context.Context, q domain.SQL) (*ResultSet, error)
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, q domain.SQL) (Result, error)
	// IsOpen reports whether statements can still be run.
	IsOpen() bool
	// Dialect returns the render dialect name.
	Dialect() string
}

// ResultSet holds every row of a query. Values are as the driver returned
// them, except []byte, which is turned into string.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Records returns one map per row keyed by column name.
func (rs *ResultSet) Records() []domain.Record {
	out := make([]domain.Record, len(rs.Rows))
	for i, row := range rs.Rows {
		rec := make(domain.Record, len(rs.Columns))
		for j, c := range rs.Columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Result is the outcome of Exec. LastInsertID is zero when the driver does
// not report one.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Config holds connection configuration.
type Config struct {
	// Provider is postgres, mysql or sqlite.
	Provider string
	// Driver picks an alternative driver: pgx for postgres, modernc for
	// sqlite. Empty selects the provider default.
	Driver string
	URL    string

	MaxConnections      int
	MaxIdleConnections  int
	MaxIdleTime         time.Duration
	ConnMaxLifetime     time.Duration
	ConnectTimeout      time.Duration
	HealthCheckInterval time.Duration
}
