package planner

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/relquery/internal/core/schema/domain"
)

// Find builds the SELECT plan for model. When lateral is set the root rows
// are restricted to its key set and its fields are projected. Aliases are
// allocated from startIndex; the returned plan's TableIndex is the next
// free index.
func (p *Planner) Find(model string, q domain.Query, lateral *domain.KeyFilter, startIndex int) (*domain.FindPlan, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	b, err := p.build(model, q, lateral, startIndex, nil)
	if err != nil {
		return nil, err
	}
	return b.plan, nil
}

// Count builds a count(1) plan. Joins and filters are resolved as for Find;
// select, ordering and pagination are ignored at every level.
func (p *Planner) Count(model string, q domain.Query) (*domain.CountPlan, error) {
	b, err := p.build(model, countQuery(q), nil, 0, nil)
	if err != nil {
		return nil, err
	}
	return &domain.CountPlan{
		Table:      b.plan.Table,
		Joins:      b.plan.Joins,
		Where:      b.plan.Where,
		Lock:       q.Lock,
		TableIndex: b.plan.TableIndex,
	}, nil
}

func countQuery(q domain.Query) domain.Query {
	out := domain.Query{Where: q.Where}
	for _, inc := range q.Include {
		out.Include = append(out.Include, domain.Include{Relation: inc.Relation, Query: countQuery(inc.Query)})
	}
	return out
}

// scope resolves field names of one joined path to columns.
type scope struct {
	model   *schemadomain.Model
	path    []string
	resolve func(field string) (domain.Column, error)
}

// findBuilder holds the state of one statement under construction.
type findBuilder struct {
	p       *Planner
	index   int
	plan    *domain.FindPlan
	columns map[string]int
	scopes  map[string]*scope
	order   []domain.OrderColumn
	limit   *int
	offset  *int
}

func (p *Planner) build(modelName string, q domain.Query, lateral *domain.KeyFilter, startIndex int, keys []string) (*findBuilder, error) {
	m, err := p.catalog.Model(modelName)
	if err != nil {
		return nil, err
	}

	b := &findBuilder{
		p:       p,
		index:   startIndex,
		columns: make(map[string]int),
		scopes:  make(map[string]*scope),
	}
	root := b.alloc(m)
	b.plan = &domain.FindPlan{Table: root, Lock: q.Lock}
	b.scopes[""] = b.physicalScope(m, root.Alias, nil)

	if err := b.selectFields(m, root.Alias, nil, q.Select); err != nil {
		return nil, err
	}
	for _, k := range keys {
		col, err := p.column(m, root.Alias, k)
		if err != nil {
			return nil, err
		}
		b.addColumn(col, []string{k}, true)
	}

	w, err := p.where.Compile(m, root.Alias, q.Where)
	if err != nil {
		return nil, err
	}
	if lateral != nil {
		ks, err := b.keySet(m, root.Alias, lateral)
		if err != nil {
			return nil, err
		}
		w = domain.AllOf(w, ks)
	}
	b.plan.Where = w
	b.mergePage(q.Limit, q.Offset)

	if err := b.includes(m, root.Alias, nil, q.Include); err != nil {
		return nil, err
	}

	rootOrder, err := b.orderBy(nil, q.OrderBy)
	if err != nil {
		return nil, err
	}
	b.plan.OrderBy = append(rootOrder, b.order...)
	b.plan.Limit, b.plan.Offset = b.limit, b.offset
	b.plan.TableIndex = b.index
	return b, nil
}

func (b *findBuilder) alloc(m *schemadomain.Model) domain.Table {
	t := b.p.table(m, b.index)
	b.index++
	return t
}

// addColumn projects col at path. A path is projected once; projecting it
// again visibly un-hides it.
func (b *findBuilder) addColumn(col domain.Column, path []string, hidden bool) {
	alias := domain.PathAlias(path)
	if i, ok := b.columns[alias]; ok {
		if !hidden {
			b.plan.Columns[i].Hidden = false
		}
		return
	}
	b.columns[alias] = len(b.plan.Columns)
	b.plan.Columns = append(b.plan.Columns, domain.SelectColumn{
		Column: col,
		Alias:  alias,
		Path:   append([]string(nil), path...),
		Hidden: hidden,
	})
}

func (b *findBuilder) selectFields(m *schemadomain.Model, alias string, path []string, names []string) error {
	if len(names) == 0 {
		for _, f := range m.Fields {
			b.addColumn(domain.Column{Table: alias, Name: f.Column}, appendPath(path, f.Name), false)
		}
		return nil
	}
	for _, name := range names {
		col, err := b.p.column(m, alias, name)
		if err != nil {
			return err
		}
		b.addColumn(col, appendPath(path, name), false)
	}
	return nil
}

func (b *findBuilder) keySet(m *schemadomain.Model, alias string, kf *domain.KeyFilter) (*domain.Expr, error) {
	if len(kf.Fields) == 0 {
		return nil, fmt.Errorf("%w: key filter on %s has no fields", domain.ErrInvalidArgument, m.Name)
	}
	ks := domain.KeySet{Columns: make([]domain.Column, len(kf.Fields)), Tuples: kf.Tuples}
	for i, f := range kf.Fields {
		col, err := b.p.column(m, alias, f)
		if err != nil {
			return nil, err
		}
		ks.Columns[i] = col
		b.addColumn(col, []string{f}, true)
	}
	for i, t := range kf.Tuples {
		if len(t) != len(kf.Fields) {
			return nil, fmt.Errorf("%w: key tuple %d has %d values, expected %d", domain.ErrInvalidArgument, i, len(t), len(kf.Fields))
		}
	}
	return domain.InKeys(ks), nil
}

func (b *findBuilder) mergePage(limit, offset *int) {
	if limit != nil && (b.limit == nil || *limit < *b.limit) {
		v := *limit
		b.limit = &v
	}
	if offset != nil && (b.offset == nil || *offset > *b.offset) {
		v := *offset
		b.offset = &v
	}
}

func (b *findBuilder) physicalScope(m *schemadomain.Model, alias string, path []string) *scope {
	return &scope{
		model: m,
		path:  path,
		resolve: func(field string) (domain.Column, error) {
			return b.p.column(m, alias, field)
		},
	}
}

func (b *findBuilder) includes(owner *schemadomain.Model, alias string, path []string, includes []domain.Include) error {
	seen := make(map[string]bool, len(includes))
	for _, inc := range includes {
		if seen[inc.Relation] {
			return fmt.Errorf("%w: relation %q included twice on %s", domain.ErrInvalidArgument, inc.Relation, owner.Name)
		}
		seen[inc.Relation] = true

		rel, err := b.p.catalog.Relation(owner.Name, inc.Relation)
		if err != nil {
			return err
		}
		relPath := appendPath(path, inc.Relation)

		if rel.IsToMany() {
			if err := b.toMany(owner, alias, path, relPath, rel, inc.Query); err != nil {
				return err
			}
			continue
		}

		target, err := b.p.catalog.Model(rel.Model)
		if err != nil {
			return err
		}
		wrap := false
		if rel.Optional {
			if wrap, err = b.p.hasJoins(target, inc.Query.Include); err != nil {
				return err
			}
		}
		if wrap {
			err = b.wrapped(owner, alias, relPath, rel, target, inc.Query)
		} else {
			err = b.joined(owner, alias, relPath, rel, target, inc.Query)
		}
		if err != nil {
			return fmt.Errorf("include %s: %w", strings.Join(relPath, "."), err)
		}
	}
	return nil
}

// toMany defers a one-to-many or many-to-many relation to its own fetch and
// projects the parent keys the fetch is batched on.
func (b *findBuilder) toMany(owner *schemadomain.Model, alias string, path, relPath []string, rel *schemadomain.Relation, q domain.Query) error {
	for _, f := range rel.From {
		col, err := b.p.column(owner, alias, f)
		if err != nil {
			return err
		}
		b.addColumn(col, appendPath(path, f), true)
	}

	fetch := domain.ToManyFetch{
		Relation: rel.Name,
		Path:     relPath,
		From:     append([]string(nil), rel.From...),
		To:       append([]string(nil), rel.To...),
	}
	switch rel.Kind {
	case schemadomain.OneToMany:
		fetch.Model = rel.Model
		fetch.Query = q
	case schemadomain.ManyToMany:
		through, err := b.p.catalog.Model(rel.Through.Model)
		if err != nil {
			return err
		}
		fetch.Model = through.Name
		fetch.Unwrap = rel.Through.ToRelation
		fetch.Query = domain.Query{
			Select:  append([]string(nil), through.PrimaryKey...),
			Include: []domain.Include{{Relation: rel.Through.ToRelation, Query: q}},
			Lock:    q.Lock,
		}
	}
	b.plan.ToMany = append(b.plan.ToMany, fetch)
	return nil
}

// joined adds a many-to-one relation as a join of this statement.
func (b *findBuilder) joined(owner *schemadomain.Model, alias string, relPath []string, rel *schemadomain.Relation, target *schemadomain.Model, q domain.Query) error {
	t := b.alloc(target)
	join := domain.Join{
		Type:     domain.InnerJoin,
		Relation: rel.Name,
		Path:     relPath,
		Table:    t,
	}
	if rel.Optional {
		join.Type = domain.LeftJoin
	}
	for i := range rel.From {
		from, err := b.p.column(owner, alias, rel.From[i])
		if err != nil {
			return err
		}
		to, err := b.p.column(target, t.Alias, rel.To[i])
		if err != nil {
			return err
		}
		join.Columns = append(join.Columns, domain.JoinColumn{From: from, To: to})
	}

	w, err := b.p.where.Compile(target, t.Alias, q.Where)
	if err != nil {
		return err
	}
	join.Where = w
	b.plan.Joins = append(b.plan.Joins, join)

	if rel.Optional {
		b.addColumn(join.Columns[0].To, appendPath(relPath, domain.PresenceField), true)
	}
	if err := b.selectFields(target, t.Alias, relPath, q.Select); err != nil {
		return err
	}
	b.scopes[pathKey(relPath)] = b.physicalScope(target, t.Alias, relPath)
	b.mergePage(q.Limit, q.Offset)

	pos := len(b.order)
	if err := b.includes(target, t.Alias, relPath, q.Include); err != nil {
		return err
	}
	entries, err := b.orderBy(relPath, q.OrderBy)
	if err != nil {
		return err
	}
	b.order = insertOrder(b.order, pos, entries)
	return nil
}

// wrapped builds an optional many-to-one relation whose include tree has
// joins of its own as a derived table, so the inner joins cannot filter
// out parent rows. The sub-plan continues this statement's alias sequence.
func (b *findBuilder) wrapped(owner *schemadomain.Model, alias string, relPath []string, rel *schemadomain.Relation, target *schemadomain.Model, q domain.Query) error {
	inner := domain.Query{
		Select:  q.Select,
		Where:   q.Where,
		Include: q.Include,
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	sb, err := b.p.build(target.Name, inner, nil, b.index, rel.To)
	if err != nil {
		return err
	}
	sub := sb.plan
	b.index = sub.TableIndex
	subAlias := sub.Table.Alias + "_subq"

	for _, sc := range sub.Columns {
		b.addColumn(domain.Column{Table: subAlias, Name: sc.Alias}, concatPath(relPath, sc.Path), sc.Hidden)
	}

	join := domain.Join{
		Type:     domain.LeftJoin,
		Relation: rel.Name,
		Path:     relPath,
		Table: domain.Table{
			Schema: target.Schema,
			Name:   target.Table,
			Alias:  subAlias,
			Model:  target.Name,
		},
		Subquery: sub,
	}
	for i := range rel.From {
		from, err := b.p.column(owner, alias, rel.From[i])
		if err != nil {
			return err
		}
		to := domain.Column{Table: subAlias, Name: domain.PathAlias([]string{rel.To[i]})}
		join.Columns = append(join.Columns, domain.JoinColumn{From: from, To: to})
	}
	b.plan.Joins = append(b.plan.Joins, join)
	b.addColumn(join.Columns[0].To, appendPath(relPath, domain.PresenceField), true)

	for _, s := range sb.scopes {
		s := s
		b.scopes[pathKey(concatPath(relPath, s.path))] = &scope{
			model: s.model,
			path:  concatPath(relPath, s.path),
			resolve: func(field string) (domain.Column, error) {
				col, err := s.resolve(field)
				if err != nil {
					return domain.Column{}, err
				}
				return exposeSubColumn(sub, subAlias, col), nil
			},
		}
	}

	entries := make([]domain.OrderColumn, len(sub.OrderBy))
	for i, o := range sub.OrderBy {
		entries[i] = domain.OrderColumn{Column: exposeSubColumn(sub, subAlias, o.Column), Direction: o.Direction}
	}
	b.order = append(b.order, entries...)
	b.mergePage(sub.Limit, sub.Offset)
	sub.OrderBy, sub.Limit, sub.Offset = nil, nil, nil

	for _, f := range sub.ToMany {
		f.Path = concatPath(relPath, f.Path)
		b.plan.ToMany = append(b.plan.ToMany, f)
	}
	sub.ToMany = nil
	return nil
}

// exposeSubColumn returns the outer reference to an inner column of sub,
// projecting it from the subquery when it is not already.
func exposeSubColumn(sub *domain.FindPlan, subAlias string, col domain.Column) domain.Column {
	for _, sc := range sub.Columns {
		if sc.Column == col {
			return domain.Column{Table: subAlias, Name: sc.Alias}
		}
	}
	alias := domain.PathAlias([]string{"__order", fmt.Sprint(len(sub.Columns))})
	sub.Columns = append(sub.Columns, domain.SelectColumn{
		Column: col,
		Alias:  alias,
		Path:   []string{alias},
		Hidden: true,
	})
	return domain.Column{Table: subAlias, Name: alias}
}

// orderBy resolves order entries declared at path. Dotted fields walk
// through included many-to-one relations.
func (b *findBuilder) orderBy(path []string, entries []domain.OrderBy) ([]domain.OrderColumn, error) {
	out := make([]domain.OrderColumn, 0, len(entries))
	for _, o := range entries {
		parts := strings.Split(o.Field, ".")
		field, rels := parts[len(parts)-1], parts[:len(parts)-1]

		s, ok := b.scopes[pathKey(concatPath(path, rels))]
		if !ok {
			return nil, b.notIncluded(path, rels, o.Field)
		}
		col, err := s.resolve(field)
		if err != nil {
			return nil, err
		}

		dir := o.Direction
		switch dir {
		case "":
			dir = domain.Asc
		case domain.Asc, domain.Desc:
		default:
			return nil, fmt.Errorf("%w: order direction %q", domain.ErrInvalidArgument, dir)
		}
		out = append(out, domain.OrderColumn{Column: col, Direction: dir})
	}
	return out, nil
}

func (b *findBuilder) notIncluded(path, rels []string, field string) error {
	s := b.scopes[pathKey(path)]
	m := s.model
	for i, name := range rels {
		rel, err := b.p.catalog.Relation(m.Name, name)
		if err != nil {
			return err
		}
		if rel.IsToMany() {
			return fmt.Errorf("%w: orderBy %q: %s is a to-many relation", domain.ErrInvalidArgument, field, name)
		}
		if _, ok := b.scopes[pathKey(concatPath(path, rels[:i+1]))]; !ok {
			return fmt.Errorf("%w: orderBy %q: relation %q is not included", domain.ErrInvalidArgument, field, name)
		}
		if m, err = b.p.catalog.Model(rel.Model); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: orderBy %q", domain.ErrInvalidArgument, field)
}

// hasJoins reports whether includes on model add joins to the statement.
// To-many includes alone do not.
func (p *Planner) hasJoins(m *schemadomain.Model, includes []domain.Include) (bool, error) {
	for _, inc := range includes {
		rel, err := p.catalog.Relation(m.Name, inc.Relation)
		if err != nil {
			return false, err
		}
		if rel.Kind == schemadomain.ManyToOne {
			return true, nil
		}
	}
	return false, nil
}

func insertOrder(order []domain.OrderColumn, pos int, entries []domain.OrderColumn) []domain.OrderColumn {
	if len(entries) == 0 {
		return order
	}
	out := make([]domain.OrderColumn, 0, len(order)+len(entries))
	out = append(out, order[:pos]...)
	out = append(out, entries...)
	return append(out, order[pos:]...)
}

func pathKey(path []string) string {
	return strings.Join(path, ".")
}

func appendPath(path []string, name string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = name
	return out
}

func concatPath(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
