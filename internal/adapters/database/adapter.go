package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/satishbabariya/relquery/internal/core/database/pool"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/logging"
)

// Adapter runs statements on a connection pool. Create it with one of the
// provider packages.
type Adapter struct {
	dialect string
	driver  string
	dsn     string
	config  Config
	logger  *slog.Logger

	mu   sync.RWMutex
	pool *pool.Pool
}

// NewAdapter creates an adapter for a registered database/sql driver.
func NewAdapter(dialect, driver, dsn string, config Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		dialect: dialect,
		driver:  driver,
		dsn:     dsn,
		config:  config,
		logger:  logging.OrDiscard(logger),
	}
}

// Connect opens the pool and pings the database. Connecting an open
// adapter is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool != nil {
		return nil
	}

	cfg := pool.DefaultConfig()
	if a.config.MaxConnections > 0 {
		cfg.MaxOpenConns = a.config.MaxConnections
	}
	if a.config.MaxIdleConnections > 0 {
		cfg.MaxIdleConns = a.config.MaxIdleConnections
	}
	cfg.ConnMaxIdleTime = a.config.MaxIdleTime
	cfg.ConnMaxLifetime = a.config.ConnMaxLifetime
	cfg.HealthCheckInterval = a.config.HealthCheckInterval

	p, err := pool.New(a.driver, a.dsn, cfg, a.logger)
	if err != nil {
		return err
	}

	if a.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.ConnectTimeout)
		defer cancel()
	}
	if err := p.HealthCheck(ctx); err != nil {
		p.Close()
		return fmt.Errorf("failed to connect to %s: %w", a.dialect, err)
	}

	a.pool = p
	a.logger.Debug("database connected", "dialect", a.dialect, "driver", a.driver)
	return nil
}

// Disconnect closes the pool. Later statements fail with
// ErrConnectionClosed.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool == nil {
		return nil
	}
	err := a.pool.Close()
	a.pool = nil
	return err
}

// Ping checks the database connection.
func (a *Adapter) Ping(ctx context.Context) error {
	p := a.current()
	if p == nil {
		return ErrConnectionClosed
	}
	return p.HealthCheck(ctx)
}

// Stats returns pool statistics, or zero stats when disconnected.
func (a *Adapter) Stats() pool.Stats {
	p := a.current()
	if p == nil {
		return pool.Stats{}
	}
	return p.Stats()
}

// IsOpen reports whether the adapter is connected.
func (a *Adapter) IsOpen() bool {
	return a.current() != nil
}

// Dialect returns the render dialect name.
func (a *Adapter) Dialect() string {
	return a.dialect
}

// DB returns the underlying *sql.DB, or nil when disconnected.
func (a *Adapter) DB() *sql.DB {
	p := a.current()
	if p == nil {
		return nil
	}
	return p.DB()
}

func (a *Adapter) current() *pool.Pool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pool
}

// Query runs q and reads all rows.
func (a *Adapter) Query(ctx context.Context, q domain.SQL) (*ResultSet, error) {
	p := a.current()
	if p == nil {
		return nil, ErrConnectionClosed
	}
	return query(ctx, a.logger, p.DB(), q)
}

// Exec runs q.
func (a *Adapter) Exec(ctx context.Context, q domain.SQL) (Result, error) {
	p := a.current()
	if p == nil {
		return Result{}, ErrConnectionClosed
	}
	return exec(ctx, a.logger, p.DB(), q)
}

// Begin starts a transaction. opts may be nil.
func (a *Adapter) Begin(ctx context.Context, opts *sql.TxOptions) (*Transaction, error) {
	p := a.current()
	if p == nil {
		return nil, ErrConnectionClosed
	}
	tx, err := p.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	a.logger.Debug("transaction started", "trace_id", logging.TraceID(ctx))
	return &Transaction{
		state:   &txState{tx: tx},
		dialect: a.dialect,
		logger:  a.logger,
	}, nil
}

// conn is the part of *sql.DB and *sql.Tx statements run on.
type conn interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func query(ctx context.Context, logger *slog.Logger, c conn, q domain.SQL) (*ResultSet, error) {
	start := time.Now()
	rows, err := c.QueryContext(ctx, q.Query, q.Args...)
	if err != nil {
		logStatement(ctx, logger, q, start, err)
		return nil, &domain.QueryError{SQL: q.Query, Err: err}
	}
	defer rows.Close()

	rs, err := readRows(rows)
	logStatement(ctx, logger, q, start, err)
	if err != nil {
		return nil, &domain.QueryError{SQL: q.Query, Err: err}
	}
	return rs, nil
}

func exec(ctx context.Context, logger *slog.Logger, c conn, q domain.SQL) (Result, error) {
	start := time.Now()
	res, err := c.ExecContext(ctx, q.Query, q.Args...)
	logStatement(ctx, logger, q, start, err)
	if err != nil {
		return Result{}, &domain.QueryError{SQL: q.Query, Err: err}
	}

	var out Result
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return Result{}, &domain.QueryError{SQL: q.Query, Err: err}
	}
	// Not every driver reports insert ids.
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

func readRows(rows *sql.Rows) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	return rs, rows.Err()
}

func logStatement(ctx context.Context, logger *slog.Logger, q domain.SQL, start time.Time, err error) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := []any{
		"sql", q.Query,
		"args", q.Args,
		"duration", time.Since(start),
	}
	if id := logging.TraceID(ctx); id != "" {
		attrs = append(attrs, "trace_id", id)
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	logger.DebugContext(ctx, "statement", attrs...)
}
