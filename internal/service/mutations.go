package service

import (
	"context"
	"fmt"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/render"
	schemadomain "github.com/satishbabariya/relquery/internal/core/schema/domain"
)

// Dialects without RETURNING (MySQL, MariaDB) read returned rows back by
// primary key inside the same transaction: inserts from the inserted keys
// or the last insert id, updates from the keys matched before the update,
// deletes before the delete. An update that changes primary key values
// cannot be read back this way and returns the rows still matching the
// old keys.

func (s *QueryService) insert(ctx context.Context, q database.Querier, model string, args domain.CreateArgs) (MutationResult, error) {
	plan, err := s.planner.Insert(model, args)
	if err != nil {
		return MutationResult{}, err
	}
	r, err := render.ForDialect(q.Dialect())
	if err != nil {
		return MutationResult{}, err
	}
	stmt := r.Insert(plan)
	if len(plan.Returning) == 0 || r.Dialect().SupportsReturning() {
		return run(ctx, q, stmt, len(plan.Returning) > 0)
	}

	m, err := s.planner.Catalog().Model(model)
	if err != nil {
		return MutationResult{}, err
	}
	var out MutationResult
	err = s.atomic(ctx, q, func(tx database.Querier) error {
		res, err := tx.Exec(ctx, stmt)
		if err != nil {
			return err
		}
		where, err := insertedKeys(m, args, res)
		if err != nil {
			return err
		}
		records, err := s.orchestrator.Resolve(ctx, tx, model, domain.Query{Select: args.Returning, Where: where})
		if err != nil {
			return err
		}
		out = MutationResult{Count: res.RowsAffected, Records: records}
		return nil
	})
	return out, err
}

func (s *QueryService) update(ctx context.Context, q database.Querier, model string, args domain.UpdateArgs, one string) (MutationResult, error) {
	plan, err := s.planner.Update(model, args)
	if err != nil {
		return MutationResult{}, err
	}
	r, err := render.ForDialect(q.Dialect())
	if err != nil {
		return MutationResult{}, err
	}
	stmt := r.Update(plan)
	returning := len(plan.Returning) > 0
	reread := returning && !r.Dialect().SupportsReturning()
	if one == "" && !reread {
		return run(ctx, q, stmt, returning)
	}

	var out MutationResult
	err = s.atomic(ctx, q, func(tx database.Querier) error {
		if one != "" {
			if err := s.expectOne(ctx, tx, model, one, args.Where); err != nil {
				return err
			}
		}
		if !reread {
			out, err = run(ctx, tx, stmt, returning)
			return err
		}

		m, err := s.planner.Catalog().Model(model)
		if err != nil {
			return err
		}
		keys, err := s.orchestrator.Resolve(ctx, tx, model, domain.Query{
			Select: m.PrimaryKey,
			Where:  args.Where,
			Lock:   domain.LockForUpdate,
		})
		if err != nil {
			return err
		}
		res, err := tx.Exec(ctx, stmt)
		if err != nil {
			return err
		}
		out = MutationResult{Count: res.RowsAffected, Records: []domain.Record{}}
		if len(keys) == 0 {
			return nil
		}
		out.Records, err = s.orchestrator.Resolve(ctx, tx, model, domain.Query{
			Select: args.Returning,
			Where:  keyFilter(m, keys),
		})
		return err
	})
	return out, err
}

func (s *QueryService) delete(ctx context.Context, q database.Querier, model string, args domain.DeleteArgs, one string) (MutationResult, error) {
	plan, err := s.planner.Delete(model, args)
	if err != nil {
		return MutationResult{}, err
	}
	r, err := render.ForDialect(q.Dialect())
	if err != nil {
		return MutationResult{}, err
	}
	stmt := r.Delete(plan)
	returning := len(plan.Returning) > 0
	reread := returning && !r.Dialect().SupportsReturning()
	if one == "" && !reread {
		return run(ctx, q, stmt, returning)
	}

	var out MutationResult
	err = s.atomic(ctx, q, func(tx database.Querier) error {
		if one != "" {
			if err := s.expectOne(ctx, tx, model, one, args.Where); err != nil {
				return err
			}
		}
		if !reread {
			out, err = run(ctx, tx, stmt, returning)
			return err
		}

		records, err := s.orchestrator.Resolve(ctx, tx, model, domain.Query{
			Select: args.Returning,
			Where:  args.Where,
			Lock:   domain.LockForUpdate,
		})
		if err != nil {
			return err
		}
		res, err := tx.Exec(ctx, stmt)
		if err != nil {
			return err
		}
		out = MutationResult{Count: res.RowsAffected, Records: records}
		return nil
	})
	return out, err
}

// expectOne locks the rows matching where and fails unless there is
// exactly one.
func (s *QueryService) expectOne(ctx context.Context, tx database.Querier, model, op string, where domain.Filter) error {
	n, err := s.count(ctx, tx, model, domain.Query{Where: where, Lock: domain.LockForUpdate})
	if err != nil {
		return err
	}
	if n != 1 {
		return &domain.CardinalityError{Model: model, Operation: op, Count: n}
	}
	return nil
}

// run executes a mutation, reading the RETURNING rows when there are any.
func run(ctx context.Context, q database.Querier, stmt domain.SQL, returning bool) (MutationResult, error) {
	if !returning {
		res, err := q.Exec(ctx, stmt)
		if err != nil {
			return MutationResult{}, err
		}
		return MutationResult{Count: res.RowsAffected}, nil
	}
	rs, err := q.Query(ctx, stmt)
	if err != nil {
		return MutationResult{}, err
	}
	records := rs.Records()
	return MutationResult{Count: int64(len(records)), Records: records}, nil
}

// insertedKeys builds a filter matching the rows an insert wrote: from
// primary key values when the insert supplied them, otherwise from the
// auto-increment range starting at the last insert id.
func insertedKeys(m *schemadomain.Model, args domain.CreateArgs, res database.Result) (domain.Filter, error) {
	index := make(map[string]int, len(args.Columns))
	for i, c := range args.Columns {
		index[c] = i
	}
	supplied := len(m.PrimaryKey) > 0
	for _, pk := range m.PrimaryKey {
		if _, ok := index[pk]; !ok {
			supplied = false
		}
	}

	if supplied {
		keys := make([]domain.Record, len(args.Values))
		for i, row := range args.Values {
			rec := make(domain.Record, len(m.PrimaryKey))
			for _, pk := range m.PrimaryKey {
				rec[pk] = row[index[pk]]
			}
			keys[i] = rec
		}
		return keyFilter(m, keys), nil
	}

	if len(m.PrimaryKey) == 1 && res.LastInsertID > 0 && args.OnConflict == nil {
		ids := make([]any, res.RowsAffected)
		for i := range ids {
			ids[i] = res.LastInsertID + int64(i)
		}
		return domain.Where(m.PrimaryKey[0], domain.Ops(domain.Op(domain.OpIn, ids))), nil
	}
	return domain.Filter{}, fmt.Errorf("%w: cannot read back inserted %s rows: supply the primary key or drop returning", domain.ErrInvalidArgument, m.Name)
}

// keyFilter matches records by primary key. keys must not be empty.
func keyFilter(m *schemadomain.Model, keys []domain.Record) domain.Filter {
	if len(m.PrimaryKey) == 1 {
		pk := m.PrimaryKey[0]
		vals := make([]any, len(keys))
		for i, k := range keys {
			vals[i] = k[pk]
		}
		return domain.Where(pk, domain.Ops(domain.Op(domain.OpIn, vals)))
	}

	f := domain.Filter{Or: make([]domain.Filter, len(keys))}
	for i, k := range keys {
		for _, pk := range m.PrimaryKey {
			f.Or[i].Fields = append(f.Or[i].Fields, domain.FieldFilter{Field: pk, Value: k[pk]})
		}
	}
	return f
}
