package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// txState is shared by a transaction and its savepoints. A transaction is
// a single connection, so statements are serialized.
type txState struct {
	mu sync.Mutex
	tx *sql.Tx
}

// Transaction is a Querier bound to one database transaction, or to a
// savepoint inside one.
//
// A statement that fails rolls the transaction (or savepoint) back and
// closes it; the error is returned and later statements fail with
// ErrConnectionClosed.
type Transaction struct {
	state   *txState
	parent  *Transaction
	depth   int
	done    bool
	dialect string
	logger  *slog.Logger
}

// Query runs q inside the transaction.
func (t *Transaction) Query(ctx context.Context, q domain.SQL) (*ResultSet, error) {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.closed() {
		return nil, ErrConnectionClosed
	}
	rs, err := query(ctx, t.logger, t.state.tx, q)
	if err != nil {
		t.abort()
		return nil, err
	}
	return rs, nil
}

// Exec runs q inside the transaction.
func (t *Transaction) Exec(ctx context.Context, q domain.SQL) (Result, error) {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.closed() {
		return Result{}, ErrConnectionClosed
	}
	res, err := exec(ctx, t.logger, t.state.tx, q)
	if err != nil {
		t.abort()
		return Result{}, err
	}
	return res, nil
}

// IsOpen reports whether the transaction and all its parents are still
// running.
func (t *Transaction) IsOpen() bool {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	return !t.closed()
}

// Dialect returns the render dialect name.
func (t *Transaction) Dialect() string {
	return t.dialect
}

// Depth is 0 for the transaction itself and n for the n-th nested
// savepoint.
func (t *Transaction) Depth() int {
	return t.depth
}

// Begin starts a savepoint nested in t.
func (t *Transaction) Begin(ctx context.Context) (*Transaction, error) {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.closed() {
		return nil, ErrConnectionClosed
	}

	child := &Transaction{
		state:   t.state,
		parent:  t,
		depth:   t.depth + 1,
		dialect: t.dialect,
		logger:  t.logger,
	}
	if _, err := t.state.tx.ExecContext(ctx, "SAVEPOINT "+child.savepoint()); err != nil {
		t.abort()
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	return child, nil
}

// Commit commits the transaction, or releases the savepoint.
func (t *Transaction) Commit() error {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.closed() {
		return ErrConnectionClosed
	}
	t.done = true

	if t.depth == 0 {
		if err := t.state.tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	if _, err := t.state.tx.ExecContext(context.Background(), "RELEASE SAVEPOINT "+t.savepoint()); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// Rollback rolls the transaction back, or rolls back to the savepoint.
// Rolling back a finished transaction returns ErrConnectionClosed.
func (t *Transaction) Rollback() error {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.closed() {
		return ErrConnectionClosed
	}
	return t.rollback()
}

func (t *Transaction) savepoint() string {
	return fmt.Sprintf("sp_%d", t.depth)
}

// closed must be called with the state lock held.
func (t *Transaction) closed() bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.done {
			return true
		}
	}
	return false
}

func (t *Transaction) rollback() error {
	t.done = true
	if t.depth == 0 {
		if err := t.state.tx.Rollback(); err != nil {
			return fmt.Errorf("failed to roll back transaction: %w", err)
		}
		return nil
	}
	if _, err := t.state.tx.ExecContext(context.Background(), "ROLLBACK TO SAVEPOINT "+t.savepoint()); err != nil {
		return fmt.Errorf("failed to roll back to savepoint: %w", err)
	}
	return nil
}

// abort rolls back after a failed statement.
func (t *Transaction) abort() {
	if err := t.rollback(); err != nil {
		t.logger.Warn("automatic rollback failed", "depth", t.depth, "error", err)
	}
}

// BeginScope starts a transaction on an Adapter, or a savepoint when q is
// already a Transaction. Wrappers are unwrapped through an Unwrap method.
func BeginScope(ctx context.Context, q Querier) (*Transaction, error) {
	switch v := q.(type) {
	case *Adapter:
		return v.Begin(ctx, nil)
	case *Transaction:
		return v.Begin(ctx)
	case interface{ Unwrap() Querier }:
		return BeginScope(ctx, v.Unwrap())
	}
	return nil, fmt.Errorf("%T cannot start a transaction", q)
}
