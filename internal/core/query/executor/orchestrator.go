// Package executor runs find plans and stitches the results of to-many
// fetches back into their parents.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/planner"
	"github.com/satishbabariya/relquery/internal/core/query/render"
	"github.com/satishbabariya/relquery/internal/logging"
)

const tracerName = "github.com/satishbabariya/relquery/internal/core/query/executor"

// Orchestrator resolves find queries with their relations. It is safe for
// concurrent use.
type Orchestrator struct {
	planner *planner.Planner
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.OrDiscard(l)
	}
}

// WithTracerProvider sets the tracer provider spans are started on. The
// default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates an orchestrator that plans with p.
func New(p *planner.Planner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner: p,
		logger:  logging.Discard(),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Planner returns the planner the orchestrator builds plans with.
func (o *Orchestrator) Planner() *planner.Planner {
	return o.planner
}

// Resolve runs query against q and returns nested records: many-to-one
// relations as Record or nil, to-many relations as []Record. Each to-many
// relation costs one extra statement per level however many parents there
// are. Sibling relations are fetched concurrently; the first failure
// cancels the others.
func (o *Orchestrator) Resolve(ctx context.Context, q database.Querier, model string, query domain.Query) ([]domain.Record, error) {
	if logging.TraceID(ctx) == "" {
		ctx = logging.WithTraceID(ctx, uuid.NewString())
	}
	start := time.Now()

	r, err := render.ForDialect(q.Dialect())
	if err != nil {
		return nil, err
	}
	records, plan, err := o.resolve(ctx, q, r, model, query, nil, 0)
	if err != nil {
		o.logger.DebugContext(ctx, "resolve failed",
			"model", model, "trace_id", logging.TraceID(ctx), "error", err)
		return nil, err
	}
	strip(plan, records)

	o.logger.DebugContext(ctx, "resolved",
		"model", model,
		"records", len(records),
		"duration", time.Since(start),
		"trace_id", logging.TraceID(ctx))
	return records, nil
}

// resolve runs one level. The returned records still carry the plan's
// hidden columns so the caller can group them.
func (o *Orchestrator) resolve(ctx context.Context, q database.Querier, r *render.Renderer, model string, query domain.Query, lateral *domain.KeyFilter, depth int) (_ []domain.Record, _ *domain.FindPlan, err error) {
	ctx, span := o.tracer.Start(ctx, "relquery.resolve", trace.WithAttributes(
		attribute.String("relquery.model", model),
		attribute.Int("relquery.depth", depth),
		attribute.String("db.system", q.Dialect()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	plan, err := o.planner.Find(model, query, lateral, 0)
	if err != nil {
		return nil, nil, err
	}
	stmt := r.Find(plan)
	span.SetAttributes(attribute.String("db.statement", stmt.Query))

	rs, err := q.Query(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	records := reshape(plan, rs)
	span.SetAttributes(attribute.Int("relquery.rows", len(records)))

	if len(plan.ToMany) == 0 || len(records) == 0 {
		for _, f := range plan.ToMany {
			spliceEmpty(records, f)
		}
		return records, plan, nil
	}

	results := make([]splice, len(plan.ToMany))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range plan.ToMany {
		g.Go(func() error {
			s, err := o.fetch(gctx, q, r, records, f, depth+1)
			if err != nil {
				return fmt.Errorf("include %s: %w", pathString(f.Path), err)
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Parents are shared between fetches, so splicing waits for all of them.
	for _, s := range results {
		s.apply()
	}
	return records, plan, nil
}

// splice is the outcome of one to-many fetch, applied once every sibling
// fetch has finished.
type splice struct {
	fetch   domain.ToManyFetch
	owners  []domain.Record
	groups  map[string][]domain.Record
	ownerID []string
}

func (s splice) apply() {
	for i, owner := range s.owners {
		children := s.groups[s.ownerID[i]]
		if children == nil {
			children = []domain.Record{}
		}
		owner[s.fetch.Relation] = children
	}
}

// fetch loads the children of every parent record for one relation with a
// single lateral query.
func (o *Orchestrator) fetch(ctx context.Context, q database.Querier, r *render.Renderer, parents []domain.Record, f domain.ToManyFetch, depth int) (splice, error) {
	s := splice{fetch: f}

	var tuples [][]any
	seen := make(map[string]bool)
	for _, owner := range owners(parents, f.Path[:len(f.Path)-1]) {
		tuple := make([]any, len(f.From))
		complete := true
		for i, field := range f.From {
			tuple[i] = owner[field]
			if tuple[i] == nil {
				complete = false
			}
		}
		id := ""
		if complete {
			id = keyHash(tuple)
			if !seen[id] {
				seen[id] = true
				tuples = append(tuples, tuple)
			}
		}
		s.owners = append(s.owners, owner)
		s.ownerID = append(s.ownerID, id)
	}
	if len(tuples) == 0 {
		return s, nil
	}

	lateral := &domain.KeyFilter{Fields: f.To, Tuples: tuples}
	children, plan, err := o.resolve(ctx, q, r, f.Model, f.Query, lateral, depth)
	if err != nil {
		return s, err
	}

	s.groups = make(map[string][]domain.Record, len(tuples))
	for _, child := range children {
		tuple := make([]any, len(f.To))
		for i, field := range f.To {
			tuple[i] = child[field]
		}
		id := keyHash(tuple)
		s.groups[id] = append(s.groups[id], child)
	}
	strip(plan, children)

	if f.Unwrap != "" {
		for id, group := range s.groups {
			s.groups[id] = unwrap(group, f.Unwrap)
		}
	}
	return s, nil
}

// unwrap replaces each through record by its target relation, dropping
// rows without one.
func unwrap(group []domain.Record, field string) []domain.Record {
	out := make([]domain.Record, 0, len(group))
	for _, rec := range group {
		if target, ok := rec[field].(domain.Record); ok && target != nil {
			out = append(out, target)
		}
	}
	return out
}

// spliceEmpty sets the relation to an empty list on every present owner.
func spliceEmpty(records []domain.Record, f domain.ToManyFetch) {
	for _, owner := range owners(records, f.Path[:len(f.Path)-1]) {
		owner[f.Relation] = []domain.Record{}
	}
}
