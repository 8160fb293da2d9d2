package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/pkg/client"
)

func tagCount(t *testing.T, c *client.Client) int64 {
	t.Helper()
	n, err := c.Count(context.Background(), "Tag", client.Query{})
	require.NoError(t, err)
	return n
}

func createTag(ctx context.Context, c *client.Client, name string) error {
	_, err := c.Create(ctx, "Tag", client.CreateArgs{Columns: []string{"name"}, Values: [][]any{{name}}})
	return err
}

func TestTransactionCommit(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(tx *client.Client) error {
		assert.True(t, tx.InTransaction())
		return createTag(ctx, tx, "poetry")
	})
	require.NoError(t, err)
	assert.False(t, c.InTransaction())
	assert.Equal(t, int64(4), tagCount(t, c))
}

func TestTransactionRollback(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := c.Transaction(ctx, func(tx *client.Client) error {
		require.NoError(t, createTag(ctx, tx, "poetry"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(3), tagCount(t, c))
}

func TestTransactionPanic(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, "boom", func() {
		_ = c.Transaction(ctx, func(tx *client.Client) error {
			require.NoError(t, createTag(ctx, tx, "poetry"))
			panic("boom")
		})
	})
	assert.Equal(t, int64(3), tagCount(t, c))
}

func TestTransactionFailedStatement(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(tx *client.Client) error {
		require.NoError(t, createTag(ctx, tx, "poetry"))
		err := createTag(ctx, tx, "classic")
		require.True(t, client.IsQueryError(err))

		// The failed statement closed the transaction.
		_, err = tx.Count(ctx, "Tag", client.Query{})
		assert.ErrorIs(t, err, client.ErrConnectionClosed)
		return err
	})
	assert.ErrorIs(t, err, client.ErrConnectionClosed)
	assert.Equal(t, int64(3), tagCount(t, c))
}

func TestNestedTransaction(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(tx *client.Client) error {
		require.NoError(t, createTag(ctx, tx, "poetry"))

		inner := tx.Transaction(ctx, func(sp *client.Client) error {
			require.NoError(t, createTag(ctx, sp, "epic"))
			return errors.New("undo epic")
		})
		require.Error(t, inner)

		require.NoError(t, tx.Transaction(ctx, func(sp *client.Client) error {
			return createTag(ctx, sp, "satire")
		}))
		return nil
	})
	require.NoError(t, err)

	got, err := c.FindMany(ctx, "Tag", client.Query{Select: []string{"name"}, Where: client.Where("id", client.Ops(client.Op("$gt", 3))), OrderBy: []client.OrderBy{{Field: "id"}}})
	require.NoError(t, err)
	assert.Equal(t, []client.Record{{"name": "poetry"}, {"name": "satire"}}, got)
}

func TestTransactionSingleRowOperations(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(tx *client.Client) error {
		_, err := tx.UpdateOne(ctx, "Review", client.UpdateArgs{
			Set:   []client.Assignment{{Field: "rating", Value: 1}},
			Where: client.Where("book_id", 1),
		})
		require.True(t, client.IsAmbiguous(err))

		// Only the savepoint of UpdateOne was rolled back.
		rec, err := tx.FindUnique(ctx, "Review", client.Query{Select: []string{"rating"}, Where: client.Where("id", 3)})
		require.NoError(t, err)
		assert.Equal(t, client.Record{"rating": int64(5)}, rec)
		return nil
	})
	require.NoError(t, err)
}
