// Package schema provides the catalog that maps models to tables, fields to
// columns and relations to join keys.
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/satishbabariya/relquery/internal/core/schema/domain"
)

// Catalog is a read-only registry of resolved models. It is safe for
// concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]*domain.Model
}

// NewCatalog resolves and indexes a parsed schema.
func NewCatalog(schema *domain.Schema) (*Catalog, error) {
	c := &Catalog{models: make(map[string]*domain.Model)}
	if err := c.Load(schema); err != nil {
		return nil, err
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error. Intended for tests and
// static catalogs declared in code.
func MustCatalog(schema *domain.Schema) *Catalog {
	c, err := NewCatalog(schema)
	if err != nil {
		panic(err)
	}
	return c
}

// Load replaces the catalog contents with the resolved form of schema.
func (c *Catalog) Load(schema *domain.Schema) error {
	models := make(map[string]*domain.Model, len(schema.Models))
	for i := range schema.Models {
		m := copyModel(schema.Models[i])
		if _, dup := models[m.Name]; dup {
			return fmt.Errorf("%w: model %q declared twice", domain.ErrInvalidSchema, m.Name)
		}
		if m.Table == "" {
			m.Table = m.Name
		}
		for j := range m.Fields {
			if m.Fields[j].Column == "" {
				m.Fields[j].Column = m.Fields[j].Name
			}
		}
		models[m.Name] = m
	}

	// Many-to-one relations first, so list relations can derive their keys
	// from the back-reference.
	for _, m := range models {
		for _, pk := range m.PrimaryKey {
			if _, ok := m.Field(pk); !ok {
				return fmt.Errorf("%w: primary key %q is not a field of %q", domain.ErrInvalidSchema, pk, m.Name)
			}
		}
		for j := range m.Relations {
			rel := &m.Relations[j]
			if rel.Kind != domain.ManyToOne {
				continue
			}
			if err := resolveManyToOne(models, m, rel); err != nil {
				return err
			}
		}
	}

	for _, m := range models {
		for j := range m.Relations {
			rel := &m.Relations[j]
			var err error
			switch rel.Kind {
			case domain.ManyToOne:
				continue
			case domain.OneToMany:
				err = resolveOneToMany(models, m, rel)
			case domain.ManyToMany:
				err = resolveManyToMany(models, m, rel)
			default:
				err = fmt.Errorf("%w: relation %s.%s has unknown kind %q", domain.ErrInvalidSchema, m.Name, rel.Name, rel.Kind)
			}
			if err != nil {
				return err
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
	return nil
}

// Model retrieves a model by name.
func (c *Catalog) Model(name string) (*domain.Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.models[name]
	if !ok {
		return nil, domain.UnknownModel(name)
	}
	return m, nil
}

// Field retrieves a scalar field of a model.
func (c *Catalog) Field(model, name string) (*domain.Field, error) {
	m, err := c.Model(model)
	if err != nil {
		return nil, err
	}
	f, ok := m.Field(name)
	if !ok {
		return nil, domain.UnknownField(model, name)
	}
	return f, nil
}

// Relation retrieves a relation of a model.
func (c *Catalog) Relation(model, name string) (*domain.Relation, error) {
	m, err := c.Model(model)
	if err != nil {
		return nil, err
	}
	r, ok := m.Relation(name)
	if !ok {
		return nil, domain.UnknownRelation(model, name)
	}
	return r, nil
}

// Models returns the sorted model names.
func (c *Catalog) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyModel(m domain.Model) *domain.Model {
	out := m
	out.PrimaryKey = append([]string(nil), m.PrimaryKey...)
	out.Fields = append([]domain.Field(nil), m.Fields...)
	out.Relations = make([]domain.Relation, len(m.Relations))
	for i, r := range m.Relations {
		r.From = append([]string(nil), r.From...)
		r.To = append([]string(nil), r.To...)
		if r.Through != nil {
			t := *r.Through
			r.Through = &t
		}
		out.Relations[i] = r
	}
	return &out
}

func resolveManyToOne(models map[string]*domain.Model, owner *domain.Model, rel *domain.Relation) error {
	target, ok := models[rel.Model]
	if !ok {
		return fmt.Errorf("%w: relation %s.%s targets unknown model %q", domain.ErrInvalidSchema, owner.Name, rel.Name, rel.Model)
	}
	if len(rel.From) == 0 || len(rel.From) != len(rel.To) {
		return fmt.Errorf("%w: relation %s.%s needs matching fields and references", domain.ErrInvalidSchema, owner.Name, rel.Name)
	}
	for i := range rel.From {
		from, ok := owner.Field(rel.From[i])
		if !ok {
			return fmt.Errorf("%w: relation %s.%s: %v", domain.ErrInvalidSchema, owner.Name, rel.Name, domain.UnknownField(owner.Name, rel.From[i]))
		}
		if _, ok := target.Field(rel.To[i]); !ok {
			return fmt.Errorf("%w: relation %s.%s: %v", domain.ErrInvalidSchema, owner.Name, rel.Name, domain.UnknownField(target.Name, rel.To[i]))
		}
		if from.Nullable {
			rel.Optional = true
		}
	}
	return nil
}

func resolveOneToMany(models map[string]*domain.Model, owner *domain.Model, rel *domain.Relation) error {
	child, ok := models[rel.Model]
	if !ok {
		return fmt.Errorf("%w: relation %s.%s targets unknown model %q", domain.ErrInvalidSchema, owner.Name, rel.Name, rel.Model)
	}
	if len(rel.From) > 0 {
		if len(rel.From) != len(rel.To) {
			return fmt.Errorf("%w: relation %s.%s needs matching fields and references", domain.ErrInvalidSchema, owner.Name, rel.Name)
		}
		for i := range rel.From {
			if _, ok := owner.Field(rel.From[i]); !ok {
				return fmt.Errorf("%w: relation %s.%s: %v", domain.ErrInvalidSchema, owner.Name, rel.Name, domain.UnknownField(owner.Name, rel.From[i]))
			}
			if _, ok := child.Field(rel.To[i]); !ok {
				return fmt.Errorf("%w: relation %s.%s: %v", domain.ErrInvalidSchema, owner.Name, rel.Name, domain.UnknownField(child.Name, rel.To[i]))
			}
		}
		return nil
	}

	var back []*domain.Relation
	for j := range child.Relations {
		r := &child.Relations[j]
		if r.Kind == domain.ManyToOne && r.Model == owner.Name {
			back = append(back, r)
		}
	}
	switch len(back) {
	case 0:
		return fmt.Errorf("%w: relation %s.%s has no back-reference on %q", domain.ErrInvalidSchema, owner.Name, rel.Name, child.Name)
	case 1:
		rel.From = append([]string(nil), back[0].To...)
		rel.To = append([]string(nil), back[0].From...)
		return nil
	default:
		return fmt.Errorf("%w: relation %s.%s is ambiguous, %q has %d relations to %q", domain.ErrInvalidSchema, owner.Name, rel.Name, child.Name, len(back), owner.Name)
	}
}

func resolveManyToMany(models map[string]*domain.Model, owner *domain.Model, rel *domain.Relation) error {
	if rel.Through == nil {
		return fmt.Errorf("%w: relation %s.%s has no through model", domain.ErrInvalidSchema, owner.Name, rel.Name)
	}
	through, ok := models[rel.Through.Model]
	if !ok {
		return fmt.Errorf("%w: relation %s.%s goes through unknown model %q", domain.ErrInvalidSchema, owner.Name, rel.Name, rel.Through.Model)
	}
	if len(through.PrimaryKey) == 0 {
		return fmt.Errorf("%w: through model %q has no primary key", domain.ErrInvalidSchema, through.Name)
	}
	fromRel, ok := through.Relation(rel.Through.FromRelation)
	if !ok || fromRel.Kind != domain.ManyToOne || fromRel.Model != owner.Name {
		return fmt.Errorf("%w: relation %s.%s: %q is not a relation from %q to %q", domain.ErrInvalidSchema, owner.Name, rel.Name, rel.Through.FromRelation, through.Name, owner.Name)
	}
	toRel, ok := through.Relation(rel.Through.ToRelation)
	if !ok || toRel.Kind != domain.ManyToOne {
		return fmt.Errorf("%w: relation %s.%s: %q is not a many-to-one relation on %q", domain.ErrInvalidSchema, owner.Name, rel.Name, rel.Through.ToRelation, through.Name)
	}
	if rel.Model == "" {
		rel.Model = toRel.Model
	}
	if rel.Model != toRel.Model {
		return fmt.Errorf("%w: relation %s.%s targets %q but %s.%s points to %q", domain.ErrInvalidSchema, owner.Name, rel.Name, rel.Model, through.Name, toRel.Name, toRel.Model)
	}
	rel.From = append([]string(nil), fromRel.To...)
	rel.To = append([]string(nil), fromRel.From...)
	return nil
}
