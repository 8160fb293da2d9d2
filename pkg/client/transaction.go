package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/satishbabariya/relquery/internal/adapters/database"
)

// TxOptions configures the isolation level and read-only mode of a
// top-level transaction. They are ignored for nested transactions.
type TxOptions = sql.TxOptions

// Transaction runs fn with a client bound to a new transaction. Calling
// Transaction on that client nests a savepoint. The transaction commits
// when fn returns nil and rolls back when it returns an error or panics.
// A statement that fails inside the transaction rolls it back at once;
// later statements fail with ErrConnectionClosed.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Client) error) error {
	return c.TransactionWithOptions(ctx, nil, fn)
}

// TransactionWithOptions is Transaction with options for a top-level
// transaction.
func (c *Client) TransactionWithOptions(ctx context.Context, opts *TxOptions, fn func(tx *Client) error) (err error) {
	var tx *database.Transaction
	if c.tx != nil {
		tx, err = c.tx.Begin(ctx)
	} else {
		tx, err = c.adapter.Begin(ctx, opts)
	}
	if err != nil {
		return err
	}

	txc := *c
	txc.tx = tx
	txc.querier = tx

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, database.ErrConnectionClosed) {
				c.logger.ErrorContext(ctx, "rollback after panic failed", "error", rbErr, "depth", tx.Depth())
			}
			panic(p)
		}
	}()

	if err := fn(&txc); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, database.ErrConnectionClosed) {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// InTransaction reports whether the client is bound to a transaction.
func (c *Client) InTransaction() bool {
	return c.tx != nil
}

func newTraceID() string {
	return uuid.NewString()
}
