// Package service implements the query service: finders, count and
// mutations on top of the planner, renderer and orchestrator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/telemetry"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/executor"
	"github.com/satishbabariya/relquery/internal/core/query/planner"
	"github.com/satishbabariya/relquery/internal/core/query/render"
	"github.com/satishbabariya/relquery/internal/logging"
)

// MutationResult is the outcome of a create, update or delete. Records is
// set only when returning fields were requested.
type MutationResult struct {
	Count   int64           `json:"count" yaml:"count"`
	Records []domain.Record `json:"records,omitempty" yaml:"records,omitempty"`
}

// QueryService runs operations against any Querier: an adapter or a
// transaction.
type QueryService struct {
	orchestrator *executor.Orchestrator
	planner      *planner.Planner
	telemetry    telemetry.Telemetry
	logger       *slog.Logger
}

// Option configures a QueryService.
type Option func(*QueryService)

// WithTelemetry sets the recorder operations are reported to.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(s *QueryService) {
		if t != nil {
			s.telemetry = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *QueryService) {
		s.logger = logging.OrDiscard(l)
	}
}

// NewQueryService creates a query service.
func NewQueryService(o *executor.Orchestrator, opts ...Option) *QueryService {
	s := &QueryService{
		orchestrator: o,
		planner:      o.Planner(),
		telemetry:    telemetry.NewNoopTelemetry(),
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindMany returns every record matching query.
func (s *QueryService) FindMany(ctx context.Context, q database.Querier, model string, query domain.Query) (out []domain.Record, err error) {
	defer s.observe(ctx, model, "findMany", time.Now(), &err, func() int64 { return int64(len(out)) })
	return s.orchestrator.Resolve(ctx, q, model, query)
}

// FindFirst returns the first matching record, or nil.
func (s *QueryService) FindFirst(ctx context.Context, q database.Querier, model string, query domain.Query) (out domain.Record, err error) {
	defer s.observe(ctx, model, "findFirst", time.Now(), &err, func() int64 { return rowsOf(out) })
	return s.first(ctx, q, model, query)
}

// FindFirstOrThrow is FindFirst with ErrNotFound for no match.
func (s *QueryService) FindFirstOrThrow(ctx context.Context, q database.Querier, model string, query domain.Query) (out domain.Record, err error) {
	defer s.observe(ctx, model, "findFirstOrThrow", time.Now(), &err, func() int64 { return rowsOf(out) })
	rec, err := s.first(ctx, q, model, query)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &domain.CardinalityError{Model: model, Operation: "findFirstOrThrow"}
	}
	return rec, nil
}

func (s *QueryService) first(ctx context.Context, q database.Querier, model string, query domain.Query) (domain.Record, error) {
	query.Limit = domain.Int(1)
	records, err := s.orchestrator.Resolve(ctx, q, model, query)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// FindUnique returns the single record matching query. No match gives
// ErrNotFound and more than one ErrAmbiguous, both as a CardinalityError.
// It reads inside a transaction, or a savepoint when q is one, so the
// count it reports matches the rows it saw.
func (s *QueryService) FindUnique(ctx context.Context, q database.Querier, model string, query domain.Query) (out domain.Record, err error) {
	defer s.observe(ctx, model, "findUnique", time.Now(), &err, func() int64 { return rowsOf(out) })

	err = s.atomic(ctx, q, func(tx database.Querier) error {
		query.Limit = domain.Int(2)
		records, err := s.orchestrator.Resolve(ctx, tx, model, query)
		if err != nil {
			return err
		}
		switch len(records) {
		case 0:
			return &domain.CardinalityError{Model: model, Operation: "findUnique"}
		case 1:
			out = records[0]
			return nil
		}
		n, err := s.count(ctx, tx, model, domain.Query{Where: query.Where, Include: query.Include})
		if err != nil {
			return err
		}
		return &domain.CardinalityError{Model: model, Operation: "findUnique", Count: n}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of records matching query's filter.
func (s *QueryService) Count(ctx context.Context, q database.Querier, model string, query domain.Query) (n int64, err error) {
	defer s.observe(ctx, model, "count", time.Now(), &err, func() int64 { return n })
	return s.count(ctx, q, model, query)
}

func (s *QueryService) count(ctx context.Context, q database.Querier, model string, query domain.Query) (int64, error) {
	plan, err := s.planner.Count(model, query)
	if err != nil {
		return 0, err
	}
	r, err := render.ForDialect(q.Dialect())
	if err != nil {
		return 0, err
	}
	rs, err := q.Query(ctx, r.Count(plan))
	if err != nil {
		return 0, err
	}
	if len(rs.Rows) != 1 || len(rs.Rows[0]) != 1 {
		return 0, fmt.Errorf("count %s: unexpected result shape", model)
	}
	return toInt64(rs.Rows[0][0])
}

// Create inserts a single row, or a row of defaults when args has no
// columns.
func (s *QueryService) Create(ctx context.Context, q database.Querier, model string, args domain.CreateArgs) (res MutationResult, err error) {
	defer s.observe(ctx, model, "create", time.Now(), &err, func() int64 { return res.Count })
	if len(args.Values) > 1 {
		return res, fmt.Errorf("%w: create takes one row, use createMany", domain.ErrInvalidArgument)
	}
	return s.insert(ctx, q, model, args)
}

// CreateMany inserts several rows in one statement.
func (s *QueryService) CreateMany(ctx context.Context, q database.Querier, model string, args domain.CreateArgs) (res MutationResult, err error) {
	defer s.observe(ctx, model, "createMany", time.Now(), &err, func() int64 { return res.Count })
	if len(args.Values) == 0 {
		return res, nil
	}
	return s.insert(ctx, q, model, args)
}

// Update updates every record matching args.Where. The filter must not be
// empty.
func (s *QueryService) Update(ctx context.Context, q database.Querier, model string, args domain.UpdateArgs) (res MutationResult, err error) {
	defer s.observe(ctx, model, "update", time.Now(), &err, func() int64 { return res.Count })
	return s.update(ctx, q, model, args, "")
}

// UpdateOne updates exactly one record. If the filter matches zero or
// several records nothing is changed and a CardinalityError is returned.
func (s *QueryService) UpdateOne(ctx context.Context, q database.Querier, model string, args domain.UpdateArgs) (res MutationResult, err error) {
	defer s.observe(ctx, model, "updateOne", time.Now(), &err, func() int64 { return res.Count })
	return s.update(ctx, q, model, args, "updateOne")
}

// Delete deletes every record matching args.Where. The filter must not be
// empty.
func (s *QueryService) Delete(ctx context.Context, q database.Querier, model string, args domain.DeleteArgs) (res MutationResult, err error) {
	defer s.observe(ctx, model, "delete", time.Now(), &err, func() int64 { return res.Count })
	return s.delete(ctx, q, model, args, "")
}

// DeleteOne deletes exactly one record, with the same cardinality rule as
// UpdateOne.
func (s *QueryService) DeleteOne(ctx context.Context, q database.Querier, model string, args domain.DeleteArgs) (res MutationResult, err error) {
	defer s.observe(ctx, model, "deleteOne", time.Now(), &err, func() int64 { return res.Count })
	return s.delete(ctx, q, model, args, "deleteOne")
}

// atomic runs fn in a transaction scope on q. The scope commits when fn
// succeeds and rolls back otherwise.
func (s *QueryService) atomic(ctx context.Context, q database.Querier, fn func(tx database.Querier) error) error {
	tx, err := database.BeginScope(ctx, q)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, database.ErrConnectionClosed) {
			s.logger.WarnContext(ctx, "rollback failed", "error", rbErr, "trace_id", logging.TraceID(ctx))
		}
		return err
	}
	return tx.Commit()
}

// observe reports an operation to telemetry once it returns.
func (s *QueryService) observe(ctx context.Context, model, op string, start time.Time, errp *error, rows func() int64) {
	err := *errp
	info := telemetry.QueryInfo{
		Model:     model,
		Operation: op,
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err == nil {
		info.Rows = rows()
	}
	s.telemetry.RecordQuery(ctx, info)

	if err == nil {
		return
	}
	ei := telemetry.ErrorInfo{Error: err, Model: model, Operation: op}
	var qe *domain.QueryError
	if errors.As(err, &qe) {
		ei.Query = qe.SQL
	}
	s.telemetry.RecordError(ctx, ei)
	s.logger.DebugContext(ctx, "operation failed", "model", model, "operation", op, "error", err)
}

func rowsOf(rec domain.Record) int64 {
	if rec == nil {
		return 0
	}
	return 1
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("unexpected count value %T", v)
}
