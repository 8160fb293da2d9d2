// Package parser implements the catalog language parser.
//
// The language is a small subset of the Prisma schema language:
//
//	model Post {
//	  id        Int     @id
//	  title     String
//	  author_id Int?    @map("author")
//	  author    User?   @relation(fields: [author_id], references: [id])
//	  tags      Tag[]   @relation(through: PostTag, from: post, to: tag)
//	  @@map("posts")
//	}
package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/satishbabariya/relquery/internal/core/schema/domain"
)

var scalarTypes = map[string]bool{
	"String": true, "Boolean": true, "Int": true, "BigInt": true,
	"Float": true, "Decimal": true, "DateTime": true,
	"Json": true, "Bytes": true,
}

// Attributes accepted for compatibility but without effect on queries.
var ignoredAttributes = map[string]bool{
	"default": true, "unique": true, "updatedAt": true, "index": true,
}

var grammar = participle.MustBuild[rawSchema](
	participle.Lexer(catalogLexer),
	participle.Elide("Whitespace", "Newline", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)

// Parser implements domain.SchemaParser.
type Parser struct{}

// NewParser creates a new catalog parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses catalog source text.
func (p *Parser) Parse(ctx context.Context, content string) (*domain.Schema, error) {
	return p.ParseReader("schema.rq", strings.NewReader(content))
}

// ParseReader parses catalog source from r. filename is only used in error
// positions.
func (p *Parser) ParseReader(filename string, r io.Reader) (*domain.Schema, error) {
	raw, err := grammar.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return convert(raw)
}

// Ensure Parser implements SchemaParser interface.
var _ domain.SchemaParser = (*Parser)(nil)

func convert(raw *rawSchema) (*domain.Schema, error) {
	schema := &domain.Schema{Models: make([]domain.Model, 0, len(raw.Models))}
	for _, rm := range raw.Models {
		m, err := convertModel(rm)
		if err != nil {
			return nil, err
		}
		schema.Models = append(schema.Models, m)
	}
	return schema, nil
}

func convertModel(rm *rawModel) (domain.Model, error) {
	m := domain.Model{Name: rm.Name}

	for _, member := range rm.Members {
		if member.Block != nil {
			if err := applyBlockAttribute(&m, member.Block); err != nil {
				return m, err
			}
			continue
		}

		f := member.Field
		if scalarTypes[f.Type] {
			field, isID, err := convertField(f)
			if err != nil {
				return m, fmt.Errorf("%s: %w", rm.Name, err)
			}
			if isID {
				m.PrimaryKey = append(m.PrimaryKey, field.Name)
			}
			m.Fields = append(m.Fields, field)
			continue
		}

		rel, err := convertRelation(f)
		if err != nil {
			return m, fmt.Errorf("%s: %w", rm.Name, err)
		}
		m.Relations = append(m.Relations, rel)
	}
	return m, nil
}

func applyBlockAttribute(m *domain.Model, attr *rawAttribute) error {
	switch attr.Name {
	case "map":
		v, err := stringArg(attr, "name", 0)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		m.Table = v
	case "schema":
		v, err := stringArg(attr, "name", 0)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		m.Schema = v
	case "id":
		v := attr.arg("fields", 0)
		if v == nil {
			return fmt.Errorf("%s: @@id needs a field list at %s", m.Name, attr.Pos)
		}
		fields, ok := v.list()
		if !ok || len(fields) == 0 {
			return fmt.Errorf("%s: @@id needs a field list at %s", m.Name, attr.Pos)
		}
		m.PrimaryKey = fields
	default:
		if !ignoredAttributes[attr.Name] {
			return fmt.Errorf("%s: unknown block attribute @@%s at %s", m.Name, attr.Name, attr.Pos)
		}
	}
	return nil
}

func convertField(f *rawField) (domain.Field, bool, error) {
	field := domain.Field{
		Name:     f.Name,
		Type:     f.Type,
		Nullable: f.Optional,
	}
	if f.List {
		return field, false, fmt.Errorf("scalar list field %q is not supported at %s", f.Name, f.Pos)
	}

	isID := false
	for _, attr := range f.Attributes {
		switch attr.Name {
		case "id":
			isID = true
		case "map":
			v, err := stringArg(attr, "name", 0)
			if err != nil {
				return field, false, err
			}
			field.Column = v
		default:
			if !ignoredAttributes[attr.Name] {
				return field, false, fmt.Errorf("unknown attribute @%s on field %q at %s", attr.Name, f.Name, attr.Pos)
			}
		}
	}
	return field, isID, nil
}

func convertRelation(f *rawField) (domain.Relation, error) {
	rel := domain.Relation{
		Name:     f.Name,
		Model:    f.Type,
		Optional: f.Optional,
	}

	var attr *rawAttribute
	for _, a := range f.Attributes {
		if a.Name == "relation" {
			attr = a
			continue
		}
		if !ignoredAttributes[a.Name] {
			return rel, fmt.Errorf("unknown attribute @%s on relation %q at %s", a.Name, f.Name, a.Pos)
		}
	}

	if attr != nil && attr.arg("through", -1) != nil {
		if !f.List {
			return rel, fmt.Errorf("relation %q uses through but is not a list at %s", f.Name, attr.Pos)
		}
		through := &domain.Through{}
		for key, dst := range map[string]*string{
			"through": &through.Model,
			"from":    &through.FromRelation,
			"to":      &through.ToRelation,
		} {
			v := attr.arg(key, -1)
			if v == nil {
				return rel, fmt.Errorf("relation %q is missing %s: at %s", f.Name, key, attr.Pos)
			}
			s, ok := v.text()
			if !ok {
				return rel, fmt.Errorf("relation %q: %s must be a name at %s", f.Name, key, attr.Pos)
			}
			*dst = s
		}
		rel.Kind = domain.ManyToMany
		rel.Through = through
		return rel, nil
	}

	if attr != nil {
		from, to, err := keyArgs(f.Name, attr)
		if err != nil {
			return rel, err
		}
		rel.From, rel.To = from, to
	}

	if f.List {
		rel.Kind = domain.OneToMany
		return rel, nil
	}
	if len(rel.From) == 0 {
		return rel, fmt.Errorf("relation %q needs @relation(fields: [...], references: [...]) at %s", f.Name, f.Pos)
	}
	rel.Kind = domain.ManyToOne
	return rel, nil
}

func keyArgs(name string, attr *rawAttribute) ([]string, []string, error) {
	fv, rv := attr.arg("fields", -1), attr.arg("references", -1)
	if fv == nil || rv == nil {
		return nil, nil, fmt.Errorf("relation %q needs both fields and references at %s", name, attr.Pos)
	}
	from, ok1 := fv.list()
	to, ok2 := rv.list()
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("relation %q: fields and references must be lists at %s", name, attr.Pos)
	}
	if len(from) != len(to) {
		return nil, nil, fmt.Errorf("relation %q: %d fields but %d references at %s", name, len(from), len(to), attr.Pos)
	}
	return from, to, nil
}

func stringArg(attr *rawAttribute, name string, pos int) (string, error) {
	v := attr.arg(name, pos)
	if v == nil || v.String == nil {
		return "", fmt.Errorf("@%s needs a string argument at %s", attr.Name, attr.Pos)
	}
	return *v.String, nil
}
