package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/executor"
	"github.com/satishbabariya/relquery/internal/core/query/planner"
	"github.com/satishbabariya/relquery/internal/testutil"
)

func setup(t *testing.T, opts ...executor.Option) (*executor.Orchestrator, *testutil.Recorder) {
	t.Helper()
	o := executor.New(planner.New(testutil.LibraryCatalog(t), nil), opts...)
	return o, testutil.Record(testutil.OpenLibrary(t))
}

func byID() []domain.OrderBy {
	return []domain.OrderBy{{Field: "id", Direction: domain.Asc}}
}

func field(records []domain.Record, name string) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r[name]
	}
	return out
}

func mustParse(t *testing.T, src string) domain.Query {
	t.Helper()
	q, err := domain.ParseQuery([]byte(src))
	require.NoError(t, err)
	return q
}

func TestResolveRoot(t *testing.T) {
	o, db := setup(t)
	ctx := context.Background()

	t.Run("select", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Book", domain.Query{Select: []string{"id", "title"}, OrderBy: byID()})
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, domain.Record{"id": int64(1), "title": "Les Miserables"}, got[0])
		assert.Equal(t, 1, db.Count())
	})

	t.Run("three row sort", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Book", domain.Query{
			Select:  []string{"title"},
			OrderBy: []domain.OrderBy{{Field: "year", Direction: domain.Desc}},
			Limit:   domain.Int(3),
		})
		require.NoError(t, err)
		assert.Equal(t, []any{"Untitled", "Kafka on the Shore", "Norwegian Wood"}, field(got, "title"))
	})

	t.Run("empty in matches nothing", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{where: {id: {$in: []}}, include: {tags: true}}`))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.Equal(t, 1, db.Count())
	})

	t.Run("filter", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [title], where: {year: {$gte: 1900}, $not: {title: Untitled}}, orderBy: [title]}`))
		require.NoError(t, err)
		assert.Equal(t, []any{"Kafka on the Shore", "Norwegian Wood"}, field(got, "title"))
	})
}

func TestResolveManyToOne(t *testing.T) {
	o, db := setup(t)
	ctx := context.Background()

	t.Run("missing optional relation is nil", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [id], include: {color: {select: [name]}, author: {select: [name]}}, orderBy: [id]}`))
		require.NoError(t, err)
		require.Len(t, got, 5)

		assert.Equal(t, domain.Record{
			"id":     int64(1),
			"color":  domain.Record{"name": "red"},
			"author": domain.Record{"name": "Hugo"},
		}, got[0])
		assert.Equal(t, domain.Record{
			"id":     int64(2),
			"color":  nil,
			"author": domain.Record{"name": "Hugo"},
		}, got[1])
		assert.Equal(t, 1, db.Count())
	})

	t.Run("wrapped optional relation", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Author", mustParse(t, `{select: [name], include: {country: {select: [name], include: {continent: {select: [name]}}}}, orderBy: [id]}`))
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, domain.Record{
			"name": "Hugo",
			"country": domain.Record{
				"name":      "France",
				"continent": domain.Record{"name": "Europe"},
			},
		}, got[0])
		assert.Equal(t, domain.Record{"name": "Anon", "country": nil}, got[2])
	})

	t.Run("order by relation field", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [title], include: {author: {select: [name]}}, orderBy: [[author.name, desc], [year, asc]]}`))
		require.NoError(t, err)
		assert.Equal(t, []any{"Norwegian Wood", "Kafka on the Shore", "Notre-Dame de Paris", "Les Miserables", "Untitled"}, field(got, "title"))
	})

	t.Run("root rows do not depend on to-many children", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [id], include: {reviews: true, tags: true}}`))
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})
}

func TestResolveToMany(t *testing.T) {
	o, db := setup(t)
	ctx := context.Background()

	t.Run("one to many", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Author", mustParse(t, `{select: [name], include: {books: {select: [title], orderBy: [id]}}, orderBy: [id]}`))
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, domain.Record{
			"name": "Hugo",
			"books": []domain.Record{
				{"title": "Les Miserables"},
				{"title": "Notre-Dame de Paris"},
			},
		}, got[0])
		assert.Equal(t, []domain.Record{{"title": "Untitled"}}, got[2]["books"])
		assert.Equal(t, 2, db.Count())
	})

	t.Run("many to many costs two statements", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [id], include: {tags: {select: [name]}}, orderBy: [id]}`))
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, 2, db.Count())

		names := func(rec domain.Record) []any {
			return field(rec["tags"].([]domain.Record), "name")
		}
		assert.ElementsMatch(t, []any{"classic", "romance"}, names(got[0]))
		assert.ElementsMatch(t, []any{"classic"}, names(got[1]))
		assert.ElementsMatch(t, []any{"romance"}, names(got[2]))
		assert.ElementsMatch(t, []any{"surreal"}, names(got[3]))
		assert.Equal(t, []domain.Record{}, got[4]["tags"])
		assert.Equal(t, domain.Record{"name": "classic"}, got[1]["tags"].([]domain.Record)[0])
	})

	t.Run("nested levels", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Author", mustParse(t, `{select: [name], where: {id: 1}, include: {books: {select: [id], orderBy: [id], include: {reviews: {select: [rating], orderBy: [id]}}}}}`))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 3, db.Count())

		books := got[0]["books"].([]domain.Record)
		require.Len(t, books, 2)
		assert.Equal(t, []domain.Record{{"rating": int64(5)}, {"rating": int64(4)}}, books[0]["reviews"])
		assert.Equal(t, []domain.Record{}, books[1]["reviews"])
	})

	t.Run("composite keys", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [id], where: {id: 1}, include: {translations: {select: [lang], orderBy: [lang], include: {chapters: {select: [title], orderBy: [num]}}}}}`))
		require.NoError(t, err)
		require.Len(t, got, 1)

		assert.Equal(t, []domain.Record{
			{"lang": "de", "chapters": []domain.Record{{"title": "Fantine (de)"}}},
			{"lang": "en", "chapters": []domain.Record{{"title": "Fantine"}, {"title": "Cosette"}}},
		}, got[0]["translations"])
	})

	t.Run("under a many-to-one relation", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Author", mustParse(t, `{select: [name], include: {country: {select: [name], include: {authors: {select: [name]}}}}, orderBy: [id]}`))
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 2, db.Count())

		assert.Equal(t, domain.Record{
			"name": "Hugo",
			"country": domain.Record{
				"name":    "France",
				"authors": []domain.Record{{"name": "Hugo"}},
			},
		}, got[0])
		assert.Equal(t, domain.Record{"name": "Anon", "country": nil}, got[2])
	})

	t.Run("under a wrapped relation", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Author", mustParse(t, `{select: [name], include: {country: {select: [name], include: {continent: {select: [name]}, authors: {select: [name]}}}}, orderBy: [id]}`))
		require.NoError(t, err)
		country := got[1]["country"].(domain.Record)
		assert.Equal(t, domain.Record{"name": "Asia"}, country["continent"])
		assert.Equal(t, []domain.Record{{"name": "Murakami"}}, country["authors"])
		assert.Nil(t, got[2]["country"])
	})

	t.Run("no parent keys issues no query", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Author", mustParse(t, `{select: [name], where: {id: 3}, include: {country: {include: {authors: true}}}}`))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Nil(t, got[0]["country"])
		assert.Equal(t, 1, db.Count())
	})

	t.Run("siblings fetch once each", func(t *testing.T) {
		db.Reset()
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [id], include: {reviews: true, tags: true, translations: true}}`))
		require.NoError(t, err)
		assert.Len(t, got, 5)
		assert.Equal(t, 4, db.Count())
	})

	t.Run("limit bounds only the relation fetch", func(t *testing.T) {
		got, err := o.Resolve(ctx, db, "Book", mustParse(t, `{select: [id], include: {reviews: {limit: 1, orderBy: [id]}}, orderBy: [id]}`))
		require.NoError(t, err)
		require.Len(t, got, 5)
		total := 0
		for _, b := range got {
			total += len(b["reviews"].([]domain.Record))
		}
		assert.Equal(t, 1, total)
	})
}

func TestResolveHiddenColumns(t *testing.T) {
	o, db := setup(t)
	got, err := o.Resolve(context.Background(), db, "Book", mustParse(t, `{select: [title], where: {id: 3}, include: {reviews: {select: [body]}, author: {select: [name], include: {books: {select: [id], orderBy: [id]}}}}}`))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, domain.Record{
		"title":   "Norwegian Wood",
		"reviews": []domain.Record{{"body": "moving"}},
		"author": domain.Record{
			"name":  "Murakami",
			"books": []domain.Record{{"id": int64(3)}, {"id": int64(4)}},
		},
	}, got[0])
}

func TestResolveErrors(t *testing.T) {
	o, db := setup(t)
	ctx := context.Background()

	_, err := o.Resolve(ctx, db, "Nope", domain.Query{})
	assert.ErrorIs(t, err, domain.ErrUnknownModel)

	_, err = o.Resolve(ctx, db, "Book", domain.Query{Include: []domain.Include{{Relation: "publisher"}}})
	assert.ErrorIs(t, err, domain.ErrUnknownRelation)

	_, err = o.Resolve(ctx, db, "Book", domain.Query{Limit: domain.Int(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	a := testutil.OpenLibrary(t)
	require.NoError(t, a.Disconnect(ctx))
	_, err = o.Resolve(ctx, a, "Book", domain.Query{})
	assert.ErrorIs(t, err, database.ErrConnectionClosed)
}

func TestResolveInTransaction(t *testing.T) {
	o, _ := setup(t)
	ctx := context.Background()
	a := testutil.OpenLibrary(t)

	tx, err := a.Begin(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.Exec(ctx, domain.SQL{Query: `INSERT INTO reviews (id, book_id, rating) VALUES (4, 2, 3)`})
	require.NoError(t, err)

	got, err := o.Resolve(ctx, tx, "Book", mustParse(t, `{select: [id], where: {id: 2}, include: {reviews: {select: [rating]}}}`))
	require.NoError(t, err)
	assert.Equal(t, []domain.Record{{"rating": int64(3)}}, got[0]["reviews"])
}

func TestResolveSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	o, db := setup(t, executor.WithTracerProvider(tp))
	_, err := o.Resolve(context.Background(), db, "Author", mustParse(t, `{include: {books: true}}`))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "relquery.resolve", s.Name())
	}
	// The child span ends first and is parented on the root.
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}
