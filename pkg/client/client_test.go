package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/satishbabariya/relquery/internal/testutil"
	"github.com/satishbabariya/relquery/pkg/client"
)

func newClient(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	return client.New(testutil.LibraryCatalog(t), testutil.OpenLibrary(t), opts...)
}

func TestClientFind(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	t.Run("find many with relations", func(t *testing.T) {
		got, err := c.FindMany(ctx, "Author", client.Query{
			Select:  []string{"name"},
			Where:   client.Where("id", 2),
			Include: []client.Include{{Relation: "books", Query: client.Query{Select: []string{"title"}, OrderBy: []client.OrderBy{{Field: "year"}}}}},
		})
		require.NoError(t, err)
		assert.Equal(t, []client.Record{{
			"name":  "Murakami",
			"books": []client.Record{{"title": "Norwegian Wood"}, {"title": "Kafka on the Shore"}},
		}}, got)
	})

	t.Run("find first", func(t *testing.T) {
		got, err := c.FindFirst(ctx, "Book", client.Query{Select: []string{"id"}, OrderBy: []client.OrderBy{{Field: "year", Direction: client.Desc}}})
		require.NoError(t, err)
		assert.Equal(t, client.Record{"id": int64(5)}, got)
	})

	t.Run("find first or throw", func(t *testing.T) {
		_, err := c.FindFirstOrThrow(ctx, "Book", client.Query{Where: client.Where("year", 1)})
		assert.True(t, client.IsNotFound(err))
	})

	t.Run("find unique", func(t *testing.T) {
		got, err := c.FindUnique(ctx, "Tag", client.Query{Select: []string{"name"}, Where: client.Where("id", 1)})
		require.NoError(t, err)
		assert.Equal(t, client.Record{"name": "classic"}, got)

		_, err = c.FindUnique(ctx, "Book", client.Query{Where: client.Where("author_id", 1)})
		assert.True(t, client.IsAmbiguous(err))
		var ce *client.CardinalityError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, int64(2), ce.Count)
	})

	t.Run("count", func(t *testing.T) {
		n, err := c.Count(ctx, "Review", client.Query{Where: client.Where("rating", 5)})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := c.FindMany(ctx, "Nope", client.Query{})
		assert.ErrorIs(t, err, client.ErrUnknownModel)
	})
}

func TestClientParsedQuery(t *testing.T) {
	c := newClient(t)

	q, err := client.ParseQuery([]byte(`{
		"select": ["title"],
		"where": {"year": {"$lt": 1900}},
		"orderBy": ["year"]
	}`))
	require.NoError(t, err)

	got, err := c.FindMany(context.Background(), "Book", q)
	require.NoError(t, err)
	assert.Equal(t, []client.Record{{"title": "Notre-Dame de Paris"}, {"title": "Les Miserables"}}, got)
}

func TestClientMutations(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	res, err := c.Create(ctx, "Tag", client.CreateArgs{Columns: []string{"name"}, Values: [][]any{{"poetry"}}, Returning: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, []client.Record{{"id": int64(4)}}, res.Records)

	res, err = c.CreateMany(ctx, "Tag", client.CreateArgs{Columns: []string{"name"}, Values: [][]any{{"epic"}, {"satire"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)

	res, err = c.Update(ctx, "Tag", client.UpdateArgs{
		Set:   []client.Assignment{{Field: "name", Value: "drama"}},
		Where: client.Where("name", "satire"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	_, err = c.UpdateOne(ctx, "Book", client.UpdateArgs{
		Set:   []client.Assignment{{Field: "year", Value: 1}},
		Where: client.Where("author_id", 2),
	})
	assert.True(t, client.IsAmbiguous(err))

	res, err = c.DeleteOne(ctx, "Tag", client.DeleteArgs{Where: client.Where("name", "drama"), Returning: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, []client.Record{{"name": "drama"}}, res.Records)

	_, err = c.Delete(ctx, "Tag", client.DeleteArgs{})
	assert.ErrorIs(t, err, client.ErrMissingWhere)

	res, err = c.Delete(ctx, "Tag", client.DeleteArgs{Where: client.Where("id", client.Ops(client.Op("$gt", 3)))})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)
}

func TestClientSQL(t *testing.T) {
	c := newClient(t)

	stmt, err := c.SQL("Book", client.Query{Select: []string{"title"}, Where: client.Where("id", 1)})
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, `FROM "books"`)
	assert.Equal(t, []any{1}, stmt.Args)
	assert.Equal(t, "sqlite", c.Dialect())
}

func TestClientOperator(t *testing.T) {
	even := func(target client.Target, value any) (*client.Expr, error) {
		return new(client.Expr).Text("(").Col(target.Ref()).Text(" % 2) = 0"), nil
	}
	c := newClient(t, client.WithOperator("$even", even))

	got, err := c.FindMany(context.Background(), "Book", client.Query{
		Select:  []string{"id"},
		Where:   client.Where("id", client.Ops(client.Op("$even", true))),
		OrderBy: []client.OrderBy{{Field: "id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []client.Record{{"id": int64(2)}, {"id": int64(4)}}, got)
}

func TestClientWhereMiddleware(t *testing.T) {
	onlyHugo := func(m *client.Model, f client.Filter) (client.Filter, error) {
		if m.Name != "Book" {
			return f, nil
		}
		scope := client.Where("author_id", 1)
		if f.IsEmpty() {
			return scope, nil
		}
		return client.Filter{And: []client.Filter{f, scope}}, nil
	}
	c := newClient(t, client.WithWhereMiddleware(onlyHugo))

	n, err := c.Count(context.Background(), "Book", client.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestClientTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c := newClient(t, client.WithTracerProvider(tp))

	_, err := c.FindMany(context.Background(), "Author", client.Query{
		Include: []client.Include{{Relation: "books"}},
	})
	require.NoError(t, err)
	assert.Len(t, sr.Ended(), 2)
}

func TestClientDisconnect(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Disconnect(ctx))
	_, err := c.FindMany(ctx, "Tag", client.Query{})
	assert.ErrorIs(t, err, client.ErrConnectionClosed)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	c, err := client.Open(ctx, testutil.LibraryCatalog(t), client.DatabaseConfig{URL: "file::memory:", Driver: "modernc"})
	require.NoError(t, err)
	defer c.Disconnect(ctx)
	assert.Equal(t, "sqlite", c.Dialect())
	require.NoError(t, c.Ping(ctx))

	_, err = client.Open(ctx, testutil.LibraryCatalog(t), client.DatabaseConfig{Provider: "oracle", URL: "x"})
	assert.Error(t, err)
}
