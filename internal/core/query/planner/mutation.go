package planner

import (
	"fmt"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// Insert builds an INSERT plan.
func (p *Planner) Insert(model string, args domain.CreateArgs) (*domain.InsertPlan, error) {
	m, err := p.catalog.Model(model)
	if err != nil {
		return nil, err
	}

	plan := &domain.InsertPlan{
		Table: domain.Table{Schema: m.Schema, Name: m.Table, Model: m.Name},
		Lock:  args.Lock,
	}

	plan.Columns = make([]string, 0, len(args.Columns))
	for _, name := range args.Columns {
		f, ok := m.Field(name)
		if !ok {
			return nil, domain.UnknownFieldError(m.Name, name)
		}
		plan.Columns = append(plan.Columns, f.Column)
	}

	if len(args.Columns) == 0 {
		if len(args.Values) > 1 {
			return nil, fmt.Errorf("%w: insert into %s without columns takes at most one row", domain.ErrInvalidArgument, m.Name)
		}
		if len(args.Values) == 1 && len(args.Values[0]) > 0 {
			return nil, fmt.Errorf("%w: insert into %s has values but no columns", domain.ErrInvalidArgument, m.Name)
		}
	} else {
		if len(args.Values) == 0 {
			return nil, fmt.Errorf("%w: insert into %s has columns but no values", domain.ErrInvalidArgument, m.Name)
		}
		for i, row := range args.Values {
			if len(row) != len(args.Columns) {
				return nil, fmt.Errorf("%w: row %d has %d values, expected %d", domain.ErrInvalidArgument, i, len(row), len(args.Columns))
			}
		}
		plan.Values = args.Values
	}

	if oc := args.OnConflict; oc != nil {
		if oc.DoNothing && len(oc.Update) > 0 {
			return nil, fmt.Errorf("%w: on conflict cannot both do nothing and update", domain.ErrInvalidArgument)
		}
		cp := &domain.ConflictPlan{}
		for _, name := range oc.Columns {
			f, ok := m.Field(name)
			if !ok {
				return nil, domain.UnknownFieldError(m.Name, name)
			}
			cp.Columns = append(cp.Columns, f.Column)
		}
		for _, name := range oc.Update {
			f, ok := m.Field(name)
			if !ok {
				return nil, domain.UnknownFieldError(m.Name, name)
			}
			cp.Update = append(cp.Update, f.Column)
		}
		if len(cp.Update) > 0 && len(cp.Columns) == 0 {
			return nil, fmt.Errorf("%w: on conflict update needs conflict columns", domain.ErrInvalidArgument)
		}
		plan.OnConflict = cp
	}

	if plan.Returning, err = p.returning(m, args.Returning); err != nil {
		return nil, err
	}
	return plan, nil
}

// Update builds an UPDATE plan. The filter must not be empty.
func (p *Planner) Update(model string, args domain.UpdateArgs) (*domain.UpdatePlan, error) {
	if args.Where.IsEmpty() {
		return nil, fmt.Errorf("update %s: %w", model, domain.ErrMissingWhere)
	}
	m, err := p.catalog.Model(model)
	if err != nil {
		return nil, err
	}
	if len(args.Set) == 0 {
		return nil, fmt.Errorf("%w: update %s has nothing to set", domain.ErrInvalidArgument, model)
	}

	t := p.table(m, 0)
	plan := &domain.UpdatePlan{Table: t, Lock: args.Lock, TableIndex: 1}
	for _, a := range args.Set {
		f, ok := m.Field(a.Field)
		if !ok {
			return nil, domain.UnknownFieldError(m.Name, a.Field)
		}
		plan.Set = append(plan.Set, domain.SetColumn{Column: f.Column, Value: a.Value})
	}

	if plan.Where, err = p.where.Compile(m, t.Alias, args.Where); err != nil {
		return nil, err
	}
	if plan.Where == nil {
		return nil, fmt.Errorf("update %s: %w", model, domain.ErrMissingWhere)
	}
	if plan.Returning, err = p.returning(m, args.Returning); err != nil {
		return nil, err
	}
	return plan, nil
}

// Delete builds a DELETE plan. The filter must not be empty.
func (p *Planner) Delete(model string, args domain.DeleteArgs) (*domain.DeletePlan, error) {
	if args.Where.IsEmpty() {
		return nil, fmt.Errorf("delete %s: %w", model, domain.ErrMissingWhere)
	}
	m, err := p.catalog.Model(model)
	if err != nil {
		return nil, err
	}

	t := p.table(m, 0)
	plan := &domain.DeletePlan{Table: t, Lock: args.Lock, TableIndex: 1}
	if plan.Where, err = p.where.Compile(m, t.Alias, args.Where); err != nil {
		return nil, err
	}
	if plan.Where == nil {
		return nil, fmt.Errorf("delete %s: %w", model, domain.ErrMissingWhere)
	}
	if plan.Returning, err = p.returning(m, args.Returning); err != nil {
		return nil, err
	}
	return plan, nil
}
