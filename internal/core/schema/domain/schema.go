// Package domain contains the entities of the schema catalog.
package domain

import "context"

// Schema is the parsed, not yet resolved, set of models.
type Schema struct {
	Models []Model
}

// Model maps a model name to a table.
type Model struct {
	Name       string
	Table      string
	Schema     string
	PrimaryKey []string
	Fields     []Field
	Relations  []Relation
}

// Field maps a scalar field to a column.
type Field struct {
	Name     string
	Column   string
	Type     string
	Nullable bool
}

// RelationKind is the cardinality of a relation.
type RelationKind string

const (
	// ManyToOne points from a child to its parent through a foreign key.
	ManyToOne RelationKind = "ManyToOne"
	// OneToMany points from a parent to all children referencing it.
	OneToMany RelationKind = "OneToMany"
	// ManyToMany links two models through a join model.
	ManyToMany RelationKind = "ManyToMany"
)

// Relation describes how one model reaches another.
//
// From holds fields of the owning model and To holds the matching fields of
// the related model, pairwise. For ManyToMany relations From/To are empty
// and Through names the join model.
type Relation struct {
	Name     string
	Kind     RelationKind
	Model    string
	From     []string
	To       []string
	Optional bool
	Through  *Through
}

// Through names the join model of a many-to-many relation and the two
// many-to-one relations on it that point back to the owner and on to the
// target.
type Through struct {
	Model        string
	FromRelation string
	ToRelation   string
}

// IsToMany reports whether the relation yields a list.
func (r Relation) IsToMany() bool {
	return r.Kind == OneToMany || r.Kind == ManyToMany
}

// Field looks up a scalar field by name.
func (m *Model) Field(name string) (*Field, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// Relation looks up a relation by name.
func (m *Model) Relation(name string) (*Relation, bool) {
	for i := range m.Relations {
		if m.Relations[i].Name == name {
			return &m.Relations[i], true
		}
	}
	return nil, false
}

// SchemaParser parses catalog source text.
type SchemaParser interface {
	// Parse parses schema content from a string.
	Parse(ctx context.Context, content string) (*Schema, error)
}
