package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/database/sqlite"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/logging"
	"github.com/satishbabariya/relquery/internal/testutil"
	"github.com/satishbabariya/relquery/internal/ui"
	"github.com/satishbabariya/relquery/internal/utils/container"
)

type harness struct {
	dir     string
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	confirm []string
	answer  bool
}

// newHarness writes the library schema, a config file and a seeded SQLite
// database to a temp dir.
func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true
	pterm.DisableStyling()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "library.db")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.prisma"), []byte(testutil.LibrarySchema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relquery.yaml"), []byte(
		"database:\n  provider: sqlite\n  driver: modernc\n  url: "+dbPath+"\nschema:\n  path: "+filepath.Join(dir, "schema.prisma")+"\nlog:\n  level: error\n"), 0o644))

	ctx := context.Background()
	a, err := sqlite.New(database.Config{URL: dbPath, Driver: sqlite.DriverModernc}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx))
	for _, stmt := range append(append([]string(nil), testutil.LibraryDDL...), testutil.LibrarySeed...) {
		_, err := a.Exec(ctx, domain.SQL{Query: stmt})
		require.NoError(t, err)
	}
	require.NoError(t, a.Disconnect(ctx))

	return &harness{dir: dir, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	app := &App{
		Fs:      afero.NewOsFs(),
		In:      strings.NewReader(stdin),
		Printer: &ui.Printer{Out: h.out, Err: h.errOut},
		Confirm: func(message string) (bool, error) {
			h.confirm = append(h.confirm, message)
			return h.answer, nil
		},
		ContainerOptions: []container.Option{container.WithLogger(logging.Discard())},
	}
	root := NewRootCommand(app)
	root.SetArgs(append([]string{"--config", filepath.Join(h.dir, "relquery.yaml")}, args...))
	err := root.ExecuteContext(context.Background())
	require.NoError(t, app.Close(context.Background()))
	return err
}

func (h *harness) json(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(h.out.Bytes(), v))
}

func TestQueryCommand(t *testing.T) {
	h := newHarness(t)

	t.Run("table", func(t *testing.T) {
		require.NoError(t, h.run(t, "", "query", "Book", "-d", `{select: [title], where: {author_id: 2}, orderBy: [year]}`))
		assert.Contains(t, h.out.String(), "Norwegian Wood")
		assert.Contains(t, h.out.String(), "Kafka on the Shore")
		assert.NotContains(t, h.out.String(), "Les Miserables")
	})

	t.Run("json with includes from stdin", func(t *testing.T) {
		require.NoError(t, h.run(t, `{"select": ["name"], "where": {"id": 2}, "include": {"books": {"select": ["id"], "orderBy": ["id"]}}}`,
			"-o", "json", "query", "Author", "-"))
		var got []map[string]any
		h.json(t, &got)
		assert.Equal(t, []map[string]any{{
			"name":  "Murakami",
			"books": []any{map[string]any{"id": float64(3)}, map[string]any{"id": float64(4)}},
		}}, got)
	})

	t.Run("descriptor file", func(t *testing.T) {
		file := filepath.Join(h.dir, "query.yaml")
		require.NoError(t, os.WriteFile(file, []byte("select: [name]\nwhere: {id: 1}\n"), 0o644))
		require.NoError(t, h.run(t, "", "-o", "yaml", "query", "Tag", file))
		assert.Equal(t, "- name: classic\n", h.out.String())
	})

	t.Run("unique", func(t *testing.T) {
		err := h.run(t, "", "query", "Book", "--unique", "-d", `{where: {author_id: 1}}`)
		assert.ErrorIs(t, err, domain.ErrAmbiguous)

		require.NoError(t, h.run(t, "", "-o", "json", "query", "Book", "--first", "-d", `{select: [id], orderBy: [[id, desc]]}`))
		assert.JSONEq(t, `[{"id": 5}]`, h.out.String())
	})

	t.Run("exclusive flags", func(t *testing.T) {
		assert.Error(t, h.run(t, "", "query", "Book", "--first", "--unique"))
	})

	t.Run("watch needs a file", func(t *testing.T) {
		assert.EqualError(t, h.run(t, "", "query", "Book", "--watch"), "--watch needs a descriptor file")
	})
}

func TestCountCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "", "count", "Review", "-d", `{where: {rating: 5}}`))
	assert.Equal(t, "2\n", h.out.String())

	require.NoError(t, h.run(t, "", "-o", "json", "count", "Book"))
	assert.JSONEq(t, `{"count": 5}`, h.out.String())
}

func TestMutationCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "", "-o", "json", "create", "Tag", "-d", `{values: {name: poetry}, returning: [id]}`))
	assert.JSONEq(t, `{"count": 1, "records": [{"id": 4}]}`, h.out.String())

	require.NoError(t, h.run(t, "", "create", "Tag", "-d", `{values: [{name: epic}, {name: satire}]}`))
	assert.Contains(t, h.out.String(), "created: 2 row(s)")

	require.NoError(t, h.run(t, "", "update", "Tag", "-d", `{set: {name: drama}, where: {name: satire}}`))
	assert.Contains(t, h.out.String(), "updated: 1 row(s)")

	err := h.run(t, "", "update", "Book", "--one", "-d", `{set: {year: 1}, where: {author_id: 1}}`)
	assert.ErrorIs(t, err, domain.ErrAmbiguous)

	t.Run("delete asks first", func(t *testing.T) {
		h.answer = false
		err := h.run(t, "", "delete", "Tag", "-d", `{where: {id: {$gt: 3}}}`)
		assert.EqualError(t, err, "aborted")
		assert.Equal(t, []string{"Delete 3 Tag record(s)?"}, h.confirm)

		h.answer = true
		require.NoError(t, h.run(t, "", "delete", "Tag", "-d", `{where: {id: {$gt: 3}}}`))
		assert.Contains(t, h.out.String(), "deleted: 3 row(s)")
	})

	t.Run("delete one skips the prompt", func(t *testing.T) {
		h.confirm = nil
		require.NoError(t, h.run(t, "", "-o", "json", "delete", "Review", "--one", "-d", `{where: {id: 3}, returning: [body]}`))
		assert.JSONEq(t, `{"count": 1, "records": [{"body": "moving"}]}`, h.out.String())
		assert.Empty(t, h.confirm)
	})

	t.Run("delete needs a filter", func(t *testing.T) {
		err := h.run(t, "", "delete", "Review", "--yes", "-d", `{}`)
		assert.ErrorIs(t, err, domain.ErrMissingWhere)
	})
}

func TestSQLCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "", "sql", "Book", "-d", `{select: [title], where: {id: 1}}`))
	assert.Contains(t, h.out.String(), `FROM "books"`)
	assert.Contains(t, h.out.String(), "args: [1]")

	require.NoError(t, h.run(t, "", "sql", "Book", "--dialect", "mariadb", "-d", `{select: [title]}`))
	assert.Contains(t, h.out.String(), "FROM `books`")

	assert.Error(t, h.run(t, "", "sql", "Book", "--dialect", "oracle"))
}

func TestSchemaCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "", "validate"))
	assert.Contains(t, h.out.String(), "is valid")
	assert.Contains(t, h.out.String(), "Translation")

	require.NoError(t, h.run(t, "", "-o", "json", "describe", "Book"))
	var m map[string]any
	h.json(t, &m)
	assert.Equal(t, "books", m["Table"])

	err := h.run(t, "", "--schema", filepath.Join(h.dir, "missing.prisma"), "validate")
	assert.ErrorContains(t, err, "schema file not found")
}

func TestModelMarkdown(t *testing.T) {
	c := testutil.LibraryCatalog(t)
	m, err := c.Model("Book")
	require.NoError(t, err)

	md := ModelMarkdown(m)
	assert.True(t, strings.HasPrefix(md, "# Book\n"))
	assert.Contains(t, md, "| color_id | color_id | Int | true |")
	assert.Contains(t, md, "| color | ManyToOne (optional) | Color | (color_id) → (id) |")
	assert.Contains(t, md, "| tags | ManyToMany | Tag | through BookTag (book → tag) |")
}

func TestDoctorCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "", "doctor"))
	assert.Contains(t, h.out.String(), "SQLite")
	assert.Contains(t, h.out.String(), "RETURNING")
	assert.NotContains(t, h.out.String(), "unsupported")
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "", "version"))
	assert.Contains(t, h.out.String(), "relquery: dev")
}
