package render

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// Renderer renders plans for one dialect. It is stateless and safe for
// concurrent use.
type Renderer struct {
	dialect Dialect
}

// New creates a renderer for a dialect.
func New(d Dialect) *Renderer {
	return &Renderer{dialect: d}
}

// ForDialect creates a renderer from a dialect name.
func ForDialect(name string) (*Renderer, error) {
	d, err := DialectFor(name)
	if err != nil {
		return nil, err
	}
	return New(d), nil
}

// Dialect returns the renderer's dialect.
func (r *Renderer) Dialect() Dialect {
	return r.dialect
}

// Find renders a SELECT statement.
func (r *Renderer) Find(p *domain.FindPlan) domain.SQL {
	b := r.builder()
	b.find(p)
	return b.sql()
}

// Count renders a SELECT count(1) statement. A locked count selects the
// locked rows in a subquery and counts them outside it.
func (r *Renderer) Count(p *domain.CountPlan) domain.SQL {
	b := r.builder()
	lock := r.dialect.Lock(p.Lock, r.dialect.Quote(p.Table.Alias))
	if lock == "" {
		b.write("SELECT count(1) AS ", b.quote("count"), " FROM ")
		b.from(p.Table, p.Joins, p.Where)
		return b.sql()
	}

	b.write("SELECT count(1) AS ", b.quote("count"), " FROM (SELECT 1 FROM ")
	b.from(p.Table, p.Joins, p.Where)
	b.write(" ", lock, ") AS ", b.quote("t"))
	return b.sql()
}

// Insert renders an INSERT statement.
func (r *Renderer) Insert(p *domain.InsertPlan) domain.SQL {
	b := r.builder()
	mysql := r.dialect.Name() == MySQL

	b.write("INSERT ")
	if mysql && p.OnConflict != nil && len(p.OnConflict.Update) == 0 {
		b.write("IGNORE ")
	}
	b.write("INTO ", b.table(p.Table))

	switch {
	case len(p.Columns) == 0 && mysql:
		b.write(" () VALUES ()")
	case len(p.Columns) == 0:
		b.write(" DEFAULT VALUES")
	default:
		quoted := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			quoted[i] = b.quote(c)
		}
		b.write(" (", strings.Join(quoted, ", "), ") VALUES ")
		for i, row := range p.Values {
			if i > 0 {
				b.write(", ")
			}
			b.write("(")
			for j, v := range row {
				if j > 0 {
					b.write(", ")
				}
				b.write(b.param(v))
			}
			b.write(")")
		}
	}

	if oc := p.OnConflict; oc != nil {
		switch {
		case mysql && len(oc.Update) > 0:
			b.write(" ON DUPLICATE KEY UPDATE ")
			for i, c := range oc.Update {
				if i > 0 {
					b.write(", ")
				}
				b.write(b.quote(c), " = VALUES(", b.quote(c), ")")
			}
		case mysql:
			// INSERT IGNORE above.
		default:
			b.write(" ON CONFLICT")
			if len(oc.Columns) > 0 {
				quoted := make([]string, len(oc.Columns))
				for i, c := range oc.Columns {
					quoted[i] = b.quote(c)
				}
				b.write(" (", strings.Join(quoted, ", "), ")")
			}
			if len(oc.Update) == 0 {
				b.write(" DO NOTHING")
			} else {
				b.write(" DO UPDATE SET ")
				for i, c := range oc.Update {
					if i > 0 {
						b.write(", ")
					}
					b.write(b.quote(c), " = EXCLUDED.", b.quote(c))
				}
			}
		}
	}

	b.returning(p.Returning)
	return b.sql()
}

// Update renders an UPDATE statement.
func (r *Renderer) Update(p *domain.UpdatePlan) domain.SQL {
	b := r.builder()
	b.write("UPDATE ", b.table(p.Table), " AS ", b.quote(p.Table.Alias), " SET ")
	for i, s := range p.Set {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.quote(s.Column), " = ", b.param(s.Value))
	}
	if p.Where != nil {
		b.write(" WHERE ")
		b.expr(p.Where)
	}
	b.returning(p.Returning)
	return b.sql()
}

// Delete renders a DELETE statement.
func (r *Renderer) Delete(p *domain.DeletePlan) domain.SQL {
	b := r.builder()
	if r.dialect.Name() == MySQL {
		// MariaDB only accepts an alias in the multi-table form.
		b.write("DELETE ", b.quote(p.Table.Alias), " FROM ", b.table(p.Table), " AS ", b.quote(p.Table.Alias))
	} else {
		b.write("DELETE FROM ", b.table(p.Table), " AS ", b.quote(p.Table.Alias))
	}
	if p.Where != nil {
		b.write(" WHERE ")
		b.expr(p.Where)
	}
	b.returning(p.Returning)
	return b.sql()
}

func (r *Renderer) builder() *builder {
	return &builder{d: r.dialect}
}

// builder accumulates text and arguments. Parameters are numbered in the
// order they are written.
type builder struct {
	d    Dialect
	sb   strings.Builder
	args []interface{}
}

func (b *builder) sql() domain.SQL {
	return domain.SQL{Query: b.sb.String(), Args: b.args, Dialect: b.d.Name()}
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) quote(ident string) string {
	return b.d.Quote(ident)
}

func (b *builder) param(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *builder) column(c domain.Column) string {
	return b.quote(c.Table) + "." + b.quote(c.Name)
}

func (b *builder) table(t domain.Table) string {
	if t.Schema != "" {
		return b.quote(t.Schema) + "." + b.quote(t.Name)
	}
	return b.quote(t.Name)
}

func (b *builder) find(p *domain.FindPlan) {
	b.write("SELECT ")
	if len(p.Columns) == 0 {
		b.write("1")
	}
	for i, c := range p.Columns {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.column(c.Column), " AS ", b.quote(c.Alias))
	}
	b.write(" FROM ")
	b.from(p.Table, p.Joins, p.Where)

	if len(p.OrderBy) > 0 {
		b.write(" ORDER BY ")
		for i, o := range p.OrderBy {
			if i > 0 {
				b.write(", ")
			}
			b.write(b.column(o.Column), " ", string(o.Direction))
		}
	}
	if lo := b.d.LimitOffset(p.Limit, p.Offset); lo != "" {
		b.write(" ", lo)
	}
	if lock := b.d.Lock(p.Lock, b.quote(p.Table.Alias)); lock != "" {
		b.write(" ", lock)
	}
}

// from writes the table, its joins and the WHERE clause.
func (b *builder) from(t domain.Table, joins []domain.Join, where *domain.Expr) {
	b.write(b.table(t), " AS ", b.quote(t.Alias))
	for _, j := range joins {
		b.write(" ", string(j.Type), " JOIN ")
		if j.Subquery != nil {
			b.write("(")
			b.find(j.Subquery)
			b.write(")")
		} else {
			b.write(b.table(j.Table))
		}
		b.write(" AS ", b.quote(j.Table.Alias), " ON ")

		on := make([]*domain.Expr, 0, len(j.Columns)+1)
		for _, c := range j.Columns {
			on = append(on, domain.NewExpr().Col(c.From).Text(" = ").Col(c.To))
		}
		on = append(on, j.Where)
		b.expr(domain.AllOf(on...))
	}
	if where != nil {
		b.write(" WHERE ")
		b.expr(where)
	}
}

func (b *builder) expr(e *domain.Expr) {
	for _, p := range e.Parts {
		switch p.Kind {
		case domain.PartText:
			b.write(p.Text)
		case domain.PartColumn:
			b.write(b.column(p.Column))
		case domain.PartParam:
			b.write(b.param(p.Value))
		case domain.PartILike:
			col := b.column(p.Column)
			b.write(b.d.ILike(col, b.param(p.Value)))
		case domain.PartKeySet:
			cols := make([]string, len(p.Keys.Columns))
			for i, c := range p.Keys.Columns {
				cols[i] = b.column(c)
			}
			b.write(b.d.KeySet(cols, p.Keys.Tuples, b.param))
		default:
			panic(fmt.Sprintf("render: unknown expression part %d", p.Kind))
		}
	}
}

// returning writes unqualified RETURNING columns when the dialect has them.
func (b *builder) returning(cols []domain.SelectColumn) {
	if len(cols) == 0 || !b.d.SupportsReturning() {
		return
	}
	b.write(" RETURNING ")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.quote(c.Column.Name), " AS ", b.quote(c.Alias))
	}
}
