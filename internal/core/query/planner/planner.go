// Package planner builds query plans: it resolves selects, filters and
// relations against the catalog, allocates table aliases and merges nested
// ordering and pagination.
package planner

import (
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/where"
	schemadomain "github.com/satishbabariya/relquery/internal/core/schema/domain"
)

// Catalog is the part of the schema catalog the planner reads.
type Catalog interface {
	Model(name string) (*schemadomain.Model, error)
	Relation(model, name string) (*schemadomain.Relation, error)
}

// Planner builds plans. It holds no per-query state and is safe for
// concurrent use.
type Planner struct {
	catalog Catalog
	where   *where.Compiler
}

// New creates a planner. A nil compiler gets the built-in operators.
func New(catalog Catalog, compiler *where.Compiler) *Planner {
	if compiler == nil {
		compiler = where.NewCompiler()
	}
	return &Planner{catalog: catalog, where: compiler}
}

// Catalog returns the catalog the planner resolves against.
func (p *Planner) Catalog() Catalog {
	return p.catalog
}

func (p *Planner) table(m *schemadomain.Model, index int) domain.Table {
	return domain.Table{Schema: m.Schema, Name: m.Table, Alias: Alias(index), Model: m.Name}
}

func (p *Planner) column(m *schemadomain.Model, alias, field string) (domain.Column, error) {
	f, ok := m.Field(field)
	if !ok {
		return domain.Column{}, schemadomain.UnknownField(m.Name, field)
	}
	return domain.Column{Table: alias, Name: f.Column}, nil
}

// returning resolves returned fields to unqualified select columns.
func (p *Planner) returning(m *schemadomain.Model, fields []string) ([]domain.SelectColumn, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	cols := make([]domain.SelectColumn, 0, len(fields))
	for _, name := range fields {
		f, ok := m.Field(name)
		if !ok {
			return nil, schemadomain.UnknownField(m.Name, name)
		}
		cols = append(cols, domain.SelectColumn{
			Column: domain.Column{Name: f.Column},
			Alias:  name,
			Path:   []string{name},
		})
	}
	return cols, nil
}
