package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/planner"
	"github.com/satishbabariya/relquery/internal/testutil"
)

func newPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	return planner.New(testutil.LibraryCatalog(t), nil)
}

func col(table, name string) domain.Column {
	return domain.Column{Table: table, Name: name}
}

func aliases(cols []domain.SelectColumn) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Alias
	}
	return out
}

func hidden(cols []domain.SelectColumn) []string {
	var out []string
	for _, c := range cols {
		if c.Hidden {
			out = append(out, c.Alias)
		}
	}
	return out
}

func TestFindRoot(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{}, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.Table{Name: "books", Alias: "a", Model: "Book"}, plan.Table)
	assert.Equal(t, []string{"id", "title", "year", "author_id", "color_id"}, aliases(plan.Columns))
	assert.Empty(t, hidden(plan.Columns))
	assert.Equal(t, col("a", "title"), plan.Columns[1].Column)
	assert.Equal(t, 1, plan.TableIndex)
	assert.Nil(t, plan.Where)
	assert.Nil(t, plan.Limit)
	assert.Nil(t, plan.Offset)
}

func TestFindSelect(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{Select: []string{"title", "year"}}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "year"}, aliases(plan.Columns))

	_, err = p.Find("Book", domain.Query{Select: []string{"isbn"}}, nil, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = p.Find("Ghost", domain.Query{}, nil, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownModel)

	_, err = p.Find("Book", domain.Query{Limit: domain.Int(-1)}, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFindJoinTypes(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{
		Select: []string{"title"},
		Include: []domain.Include{
			{Relation: "author", Query: domain.Query{Select: []string{"name"}}},
			{Relation: "color"},
		},
	}, nil, 0)
	require.NoError(t, err)

	require.Len(t, plan.Joins, 2)

	author := plan.Joins[0]
	assert.Equal(t, domain.InnerJoin, author.Type)
	assert.Equal(t, "b", author.Table.Alias)
	assert.Equal(t, []string{"author"}, author.Path)
	assert.Equal(t, []domain.JoinColumn{{From: col("a", "author_id"), To: col("b", "id")}}, author.Columns)

	color := plan.Joins[1]
	assert.Equal(t, domain.LeftJoin, color.Type)
	assert.Equal(t, "c", color.Table.Alias)
	assert.Nil(t, color.Subquery)

	assert.Equal(t, []string{
		"title",
		"author__name",
		"color____present",
		"color__id",
		"color__name",
	}, aliases(plan.Columns))
	assert.Equal(t, []string{"color____present"}, hidden(plan.Columns))
	assert.Equal(t, 3, plan.TableIndex)
}

func TestFindJoinWhere(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{
		Where: domain.Where("year", 1862),
		Include: []domain.Include{
			{Relation: "author", Query: domain.Query{Where: domain.Where("name", "Hugo")}},
		},
	}, nil, 0)
	require.NoError(t, err)

	require.Len(t, plan.Joins, 1)
	assert.Equal(t, []any{"Hugo"}, plan.Joins[0].Where.Params())
	assert.Equal(t, []any{1862}, plan.Where.Params())
}

func TestFindDeterministic(t *testing.T) {
	p := newPlanner(t)
	q := domain.Query{
		Include: []domain.Include{
			{Relation: "author", Query: domain.Query{Include: []domain.Include{
				{Relation: "country", Query: domain.Query{Include: []domain.Include{{Relation: "continent"}}}},
			}}},
			{Relation: "color"},
			{Relation: "tags"},
		},
		OrderBy: []domain.OrderBy{{Field: "year"}},
	}

	first, err := p.Find("Book", q, nil, 0)
	require.NoError(t, err)
	second, err := p.Find("Book", q, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFindWrapsOptionalWithJoins(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{
		Include: []domain.Include{
			{Relation: "author", Query: domain.Query{Include: []domain.Include{
				{Relation: "country", Query: domain.Query{Include: []domain.Include{{Relation: "continent"}}}},
			}}},
		},
	}, nil, 0)
	require.NoError(t, err)

	require.Len(t, plan.Joins, 2)
	assert.Equal(t, domain.InnerJoin, plan.Joins[0].Type)
	assert.Nil(t, plan.Joins[0].Subquery)

	country := plan.Joins[1]
	assert.Equal(t, domain.LeftJoin, country.Type)
	assert.Equal(t, "c_subq", country.Table.Alias)
	assert.Equal(t, []domain.JoinColumn{{From: col("b", "country_id"), To: col("c_subq", "id")}}, country.Columns)

	sub := country.Subquery
	require.NotNil(t, sub)
	assert.Equal(t, "c", sub.Table.Alias)
	require.Len(t, sub.Joins, 1)
	assert.Equal(t, domain.InnerJoin, sub.Joins[0].Type)
	assert.Equal(t, "d", sub.Joins[0].Table.Alias)
	assert.Equal(t, []string{"id", "name", "continent_id", "continent__id", "continent__name"}, aliases(sub.Columns))

	assert.Equal(t, []string{
		"id", "title", "year", "author_id", "color_id",
		"author__id", "author__name", "author__country_id",
		"author__country__id",
		"author__country__name",
		"author__country__continent_id",
		"author__country__continent__id",
		"author__country__continent__name",
		"author__country____present",
	}, aliases(plan.Columns))
	assert.Equal(t, col("c_subq", "continent__name"), plan.Columns[12].Column)
	assert.Equal(t, 4, plan.TableIndex)
}

func TestFindWrapOnlyWithJoins(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Author", domain.Query{
		Include: []domain.Include{{Relation: "country", Query: domain.Query{
			Include: []domain.Include{{Relation: "continent"}},
		}}},
	}, nil, 0)
	require.NoError(t, err)
	require.Len(t, plan.Joins, 1)
	assert.NotNil(t, plan.Joins[0].Subquery)

	plan, err = p.Find("Author", domain.Query{
		Include: []domain.Include{{Relation: "country"}, {Relation: "books"}},
	}, nil, 0)
	require.NoError(t, err)
	require.Len(t, plan.Joins, 1)
	assert.Nil(t, plan.Joins[0].Subquery)
	assert.Equal(t, "countries", plan.Joins[0].Table.Name)
}

func TestFindPageMerge(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{
		Limit:  domain.Int(10),
		Offset: domain.Int(5),
		Include: []domain.Include{
			{Relation: "author", Query: domain.Query{Limit: domain.Int(5), Offset: domain.Int(10)}},
		},
	}, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, plan.Limit)
	require.NotNil(t, plan.Offset)
	assert.Equal(t, 5, *plan.Limit)
	assert.Equal(t, 10, *plan.Offset)

	t.Run("nested only", func(t *testing.T) {
		plan, err := p.Find("Book", domain.Query{
			Include: []domain.Include{{Relation: "color", Query: domain.Query{Limit: domain.Int(2)}}},
		}, nil, 0)
		require.NoError(t, err)
		require.NotNil(t, plan.Limit)
		assert.Equal(t, 2, *plan.Limit)
		assert.Nil(t, plan.Offset)
	})

	t.Run("wrapped subquery moves page outward", func(t *testing.T) {
		plan, err := p.Find("Author", domain.Query{
			Include: []domain.Include{{Relation: "country", Query: domain.Query{
				Include: []domain.Include{{Relation: "continent"}},
				Limit:   domain.Int(3),
				OrderBy: []domain.OrderBy{{Field: "name", Direction: domain.Desc}},
			}}},
		}, nil, 0)
		require.NoError(t, err)
		sub := plan.Joins[0].Subquery
		assert.Nil(t, sub.Limit)
		assert.Nil(t, sub.OrderBy)
		require.NotNil(t, plan.Limit)
		assert.Equal(t, 3, *plan.Limit)
		assert.Equal(t, []domain.OrderColumn{{Column: col("b_subq", "name"), Direction: domain.Desc}}, plan.OrderBy)
	})
}

func TestFindOrderMerge(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{
		OrderBy: []domain.OrderBy{{Field: "year", Direction: domain.Desc}},
		Include: []domain.Include{
			{Relation: "author", Query: domain.Query{
				OrderBy: []domain.OrderBy{{Field: "name"}},
				Include: []domain.Include{{Relation: "country", Query: domain.Query{
					OrderBy: []domain.OrderBy{{Field: "name", Direction: domain.Desc}},
				}}},
			}},
			{Relation: "color", Query: domain.Query{OrderBy: []domain.OrderBy{{Field: "name"}}}},
		},
	}, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, []domain.OrderColumn{
		{Column: col("a", "year"), Direction: domain.Desc},
		{Column: col("b", "name"), Direction: domain.Asc},
		{Column: col("c", "name"), Direction: domain.Desc},
		{Column: col("d", "name"), Direction: domain.Asc},
	}, plan.OrderBy)
}

func TestFindOrderByDotted(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{
		Include: []domain.Include{{Relation: "author", Query: domain.Query{
			Include: []domain.Include{{Relation: "country", Query: domain.Query{
				Include: []domain.Include{{Relation: "continent"}},
			}}},
		}}},
		OrderBy: []domain.OrderBy{
			{Field: "author.name"},
			{Field: "author.country.continent.name", Direction: domain.Desc},
			{Field: "author.country.continent_id"},
		},
	}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.OrderColumn{
		{Column: col("b", "name"), Direction: domain.Asc},
		{Column: col("c_subq", "continent__name"), Direction: domain.Desc},
		{Column: col("c_subq", "continent_id"), Direction: domain.Asc},
	}, plan.OrderBy)

	t.Run("unprojected sub column", func(t *testing.T) {
		plan, err := p.Find("Author", domain.Query{
			Include: []domain.Include{{Relation: "country", Query: domain.Query{
				Select:  []string{"name"},
				Include: []domain.Include{{Relation: "continent", Query: domain.Query{Select: []string{"name"}}}},
				OrderBy: []domain.OrderBy{{Field: "continent_id"}},
			}}},
		}, nil, 0)
		require.NoError(t, err)
		sub := plan.Joins[0].Subquery
		assert.Equal(t, []string{"name", "id", "continent__name", "__order__3"}, aliases(sub.Columns))
		assert.Equal(t, col("b", "continent_id"), sub.Columns[3].Column)
		assert.Equal(t, []domain.OrderColumn{{Column: col("b_subq", "__order__3"), Direction: domain.Asc}}, plan.OrderBy)
	})

	errs := []struct {
		name  string
		model string
		q     domain.Query
	}{
		{"not included", "Book", domain.Query{OrderBy: []domain.OrderBy{{Field: "author.name"}}}},
		{"to-many", "Author", domain.Query{
			Include: []domain.Include{{Relation: "books"}},
			OrderBy: []domain.OrderBy{{Field: "books.title"}},
		}},
		{"bad direction", "Book", domain.Query{OrderBy: []domain.OrderBy{{Field: "year", Direction: "SIDEWAYS"}}}},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Find(tt.model, tt.q, nil, 0)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}

	_, err = p.Find("Book", domain.Query{OrderBy: []domain.OrderBy{{Field: "isbn"}}}, nil, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownField)
	_, err = p.Find("Book", domain.Query{OrderBy: []domain.OrderBy{{Field: "publisher.name"}}}, nil, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownRelation)
}

func TestFindToMany(t *testing.T) {
	p := newPlanner(t)

	books := domain.Query{Where: domain.Where("year", domain.Op(domain.OpGt, 1900))}
	plan, err := p.Find("Author", domain.Query{
		Select:  []string{"name"},
		Include: []domain.Include{{Relation: "books", Query: books}},
	}, nil, 0)
	require.NoError(t, err)

	assert.Empty(t, plan.Joins)
	assert.Equal(t, []string{"name", "id"}, aliases(plan.Columns))
	assert.Equal(t, []string{"id"}, hidden(plan.Columns))
	require.Len(t, plan.ToMany, 1)
	assert.Equal(t, domain.ToManyFetch{
		Relation: "books",
		Model:    "Book",
		Query:    books,
		From:     []string{"id"},
		To:       []string{"author_id"},
		Path:     []string{"books"},
	}, plan.ToMany[0])

	t.Run("many-to-many goes through the join model", func(t *testing.T) {
		tags := domain.Query{OrderBy: []domain.OrderBy{{Field: "name"}}}
		plan, err := p.Find("Book", domain.Query{
			Include: []domain.Include{{Relation: "tags", Query: tags}},
		}, nil, 0)
		require.NoError(t, err)
		require.Len(t, plan.ToMany, 1)
		f := plan.ToMany[0]
		assert.Equal(t, "BookTag", f.Model)
		assert.Equal(t, "tag", f.Unwrap)
		assert.Equal(t, []string{"id"}, f.From)
		assert.Equal(t, []string{"book_id"}, f.To)
		assert.Equal(t, domain.Query{
			Select:  []string{"book_id", "tag_id"},
			Include: []domain.Include{{Relation: "tag", Query: tags}},
		}, f.Query)
	})

	t.Run("nested under a join", func(t *testing.T) {
		plan, err := p.Find("Book", domain.Query{
			Include: []domain.Include{{Relation: "author", Query: domain.Query{
				Include: []domain.Include{{Relation: "books"}},
			}}},
		}, nil, 0)
		require.NoError(t, err)
		require.Len(t, plan.ToMany, 1)
		assert.Equal(t, []string{"author", "books"}, plan.ToMany[0].Path)
	})

	t.Run("composite keys", func(t *testing.T) {
		plan, err := p.Find("Translation", domain.Query{
			Select:  []string{"title"},
			Include: []domain.Include{{Relation: "chapters"}},
		}, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"title", "book_id", "lang"}, aliases(plan.Columns))
		require.Len(t, plan.ToMany, 1)
		assert.Equal(t, []string{"book_id", "lang"}, plan.ToMany[0].From)
		assert.Equal(t, []string{"book_id", "lang"}, plan.ToMany[0].To)
	})

	t.Run("to-many under a wrapped relation", func(t *testing.T) {
		plan, err := p.Find("Author", domain.Query{
			Include: []domain.Include{{Relation: "country", Query: domain.Query{
				Include: []domain.Include{{Relation: "continent"}, {Relation: "authors"}},
			}}},
		}, nil, 0)
		require.NoError(t, err)
		require.NotNil(t, plan.Joins[0].Subquery)
		assert.Empty(t, plan.Joins[0].Subquery.ToMany)
		require.Len(t, plan.ToMany, 1)
		assert.Equal(t, []string{"country", "authors"}, plan.ToMany[0].Path)
		assert.Equal(t, []string{"id"}, plan.ToMany[0].From)
		assert.Equal(t, []string{"country_id"}, plan.ToMany[0].To)
	})
}

func TestFindDuplicateInclude(t *testing.T) {
	_, err := newPlanner(t).Find("Book", domain.Query{
		Include: []domain.Include{{Relation: "author"}, {Relation: "author"}},
	}, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFindLateral(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Find("Book", domain.Query{Select: []string{"title"}, Where: domain.Where("year", 1862)},
		&domain.KeyFilter{Fields: []string{"author_id"}, Tuples: [][]any{{1}, {2}}}, 3)
	require.NoError(t, err)

	assert.Equal(t, "d", plan.Table.Alias)
	assert.Equal(t, 4, plan.TableIndex)
	assert.Equal(t, []string{"title", "author_id"}, aliases(plan.Columns))
	assert.Equal(t, []string{"author_id"}, hidden(plan.Columns))
	assert.Equal(t, []any{1862, 1, 2}, plan.Where.Params())

	_, err = p.Find("Book", domain.Query{}, &domain.KeyFilter{Fields: []string{"author_id"}, Tuples: [][]any{{1, 2}}}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = p.Find("Book", domain.Query{}, &domain.KeyFilter{}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCount(t *testing.T) {
	p := newPlanner(t)

	plan, err := p.Count("Book", domain.Query{
		Select:  []string{"title"},
		Where:   domain.Where("year", domain.Op(domain.OpGt, 1900)),
		OrderBy: []domain.OrderBy{{Field: "year"}},
		Limit:   domain.Int(1),
		Include: []domain.Include{
			{Relation: "author", Query: domain.Query{Where: domain.Where("name", "Hugo"), Limit: domain.Int(1)}},
			{Relation: "tags"},
		},
		Lock: domain.LockForShare,
	})
	require.NoError(t, err)
	assert.Equal(t, "a", plan.Table.Alias)
	require.Len(t, plan.Joins, 1)
	assert.Equal(t, "authors", plan.Joins[0].Table.Name)
	assert.Equal(t, []any{1900}, plan.Where.Params())
	assert.Equal(t, domain.LockForShare, plan.Lock)
}
