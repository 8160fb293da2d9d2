package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/internal/core/query/planner"
	"github.com/satishbabariya/relquery/internal/core/query/render"
	"github.com/satishbabariya/relquery/internal/core/query/where"
	schemadomain "github.com/satishbabariya/relquery/internal/core/schema/domain"
	"github.com/satishbabariya/relquery/pkg/client"
)

// NewSQLCommand creates the sql command.
func NewSQLCommand(app *App) *cobra.Command {
	var (
		descriptor string
		dialect    string
	)

	cmd := &cobra.Command{
		Use:   "sql MODEL [DESCRIPTOR_FILE|-]",
		Short: "Print the SQL of a query without running it",
		Long: `Print the root SELECT of a query with its arguments. To-many includes
are fetched by later statements and are not shown.`,
		Args:        cobra.RangeArgs(1, 2),
		Annotations: needs(needsSchema),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := app.readDescriptor(descriptorArgs(args), descriptor)
			if err != nil {
				return err
			}
			q, err := client.ParseQuery(data)
			if err != nil {
				return err
			}
			if dialect == "" {
				dialect = app.config.Database.Provider
			}
			if dialect == "" {
				dialect = render.Postgres
			}
			r, err := render.ForDialect(normalizeDialect(dialect))
			if err != nil {
				return err
			}
			plan, err := planner.New(app.catalog, where.NewCompiler()).Find(args[0], q, nil, 0)
			if err != nil {
				return err
			}
			stmt := r.Find(plan)
			return app.printValue(stmt, func() error {
				fmt.Fprintln(app.Printer.Out, stmt.Query)
				if len(stmt.Args) > 0 {
					app.Printer.Muted("args: %v", stmt.Args)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&descriptor, "descriptor", "d", "", "inline query descriptor")
	cmd.Flags().StringVar(&dialect, "dialect", "", "postgres, mysql or sqlite (default: the configured provider)")
	return cmd
}

func normalizeDialect(name string) string {
	switch strings.ToLower(name) {
	case "postgresql":
		return render.Postgres
	case "mariadb":
		return render.MySQL
	case "sqlite3":
		return render.SQLite
	}
	return strings.ToLower(name)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the schema",
		Long:        "Parse the schema and resolve every relation.",
		Args:        cobra.NoArgs,
		Annotations: needs(needsSchema),
		RunE: func(cmd *cobra.Command, args []string) error {
			models := app.catalog.Models()
			summary := make([]map[string]any, 0, len(models))
			rows := make([][]string, 0, len(models))
			for _, name := range models {
				m, err := app.catalog.Model(name)
				if err != nil {
					return err
				}
				summary = append(summary, map[string]any{
					"model": m.Name, "table": m.Table, "fields": len(m.Fields), "relations": len(m.Relations),
				})
				rows = append(rows, []string{m.Name, m.Table, fmt.Sprint(len(m.Fields)), fmt.Sprint(len(m.Relations))})
			}
			return app.printValue(summary, func() error {
				app.Printer.Success("Schema %s is valid", app.config.Schema.Path)
				return app.Printer.Table([]string{"Model", "Table", "Fields", "Relations"}, rows)
			})
		},
	}
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "describe MODEL",
		Short:       "Show the fields and relations of a model",
		Args:        cobra.ExactArgs(1),
		Annotations: needs(needsSchema),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.catalog.Model(args[0])
			if err != nil {
				return err
			}
			return app.printValue(m, func() error {
				return app.Printer.Markdown(ModelMarkdown(m))
			})
		},
	}
}

// ModelMarkdown documents a model as markdown tables.
func ModelMarkdown(m *schemadomain.Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.Name)
	table := m.Table
	if m.Schema != "" {
		table = m.Schema + "." + table
	}
	fmt.Fprintf(&b, "Table `%s`, primary key `(%s)`.\n\n", table, strings.Join(m.PrimaryKey, ", "))

	b.WriteString("## Fields\n\n| Field | Column | Type | Nullable |\n|---|---|---|---|\n")
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "| %s | %s | %s | %t |\n", f.Name, f.Column, f.Type, f.Nullable)
	}

	if len(m.Relations) == 0 {
		return b.String()
	}
	rels := append([]schemadomain.Relation(nil), m.Relations...)
	sort.Slice(rels, func(i, j int) bool { return rels[i].Name < rels[j].Name })

	b.WriteString("\n## Relations\n\n| Relation | Kind | Model | Keys |\n|---|---|---|---|\n")
	for _, r := range rels {
		keys := fmt.Sprintf("(%s) → (%s)", strings.Join(r.From, ", "), strings.Join(r.To, ", "))
		if r.Through != nil {
			keys = fmt.Sprintf("through %s (%s → %s)", r.Through.Model, r.Through.FromRelation, r.Through.ToRelation)
		}
		kind := string(r.Kind)
		if r.Optional {
			kind += " (optional)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", r.Name, kind, r.Model, keys)
	}
	return b.String()
}
