// Package client is the public API: it runs find, count and mutation
// operations described by query descriptors against one database.
package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/database/provider"
	"github.com/satishbabariya/relquery/internal/adapters/telemetry"
	"github.com/satishbabariya/relquery/internal/core/query/executor"
	"github.com/satishbabariya/relquery/internal/core/query/planner"
	"github.com/satishbabariya/relquery/internal/core/query/render"
	"github.com/satishbabariya/relquery/internal/core/query/where"
	"github.com/satishbabariya/relquery/internal/logging"
	"github.com/satishbabariya/relquery/internal/service"
)

// Client runs operations on an adapter, or inside a transaction when it was
// handed to a Transaction callback. It is safe for concurrent use outside
// transactions.
type Client struct {
	adapter    *database.Adapter
	querier    database.Querier
	tx         *database.Transaction
	catalog    *Catalog
	planner    *planner.Planner
	service    *service.QueryService
	telemetry  Telemetry
	logger     *slog.Logger
	middleware []Middleware
}

// New creates a client over an adapter. Call Connect before running
// operations unless the adapter is already connected.
func New(catalog *Catalog, adapter *database.Adapter, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrDiscard(o.logger)
	tel := o.telemetry
	if tel == nil {
		tel = telemetry.NewNoopTelemetry()
	}

	compiler := where.NewCompiler()
	for tag, fn := range o.operators {
		compiler.Register(tag, fn)
	}
	compiler.Use(o.whereMiddleware...)

	p := planner.New(catalog, compiler)
	execOpts := []executor.Option{executor.WithLogger(logger)}
	if o.tracerProvider != nil {
		execOpts = append(execOpts, executor.WithTracerProvider(o.tracerProvider))
	}
	orchestrator := executor.New(p, execOpts...)

	return &Client{
		adapter:    adapter,
		querier:    adapter,
		catalog:    catalog,
		planner:    p,
		service:    service.NewQueryService(orchestrator, service.WithTelemetry(tel), service.WithLogger(logger)),
		telemetry:  tel,
		logger:     logger,
		middleware: o.middleware,
	}
}

// Open creates the adapter for cfg, connects it and returns a client.
func Open(ctx context.Context, catalog *Catalog, cfg DatabaseConfig, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	adapter, err := provider.New(cfg, o.logger)
	if err != nil {
		return nil, err
	}
	c := New(catalog, adapter, opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect connects the adapter.
func (c *Client) Connect(ctx context.Context) error {
	start := time.Now()
	err := c.adapter.Connect(ctx)
	c.telemetry.RecordConnection(ctx, telemetry.ConnectionInfo{
		Event:           "connect",
		Duration:        time.Since(start),
		Success:         err == nil,
		OpenConnections: c.adapter.Stats().OpenConnections,
	})
	return err
}

// Disconnect closes the adapter and flushes telemetry.
func (c *Client) Disconnect(ctx context.Context) error {
	start := time.Now()
	err := c.adapter.Disconnect(ctx)
	c.telemetry.RecordConnection(ctx, telemetry.ConnectionInfo{
		Event:    "disconnect",
		Duration: time.Since(start),
		Success:  err == nil,
	})
	if ferr := c.telemetry.Flush(ctx); err == nil {
		err = ferr
	}
	return err
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.adapter.Ping(ctx)
}

// Catalog returns the schema catalog.
func (c *Client) Catalog() *Catalog {
	return c.catalog
}

// Dialect returns the SQL dialect of the database.
func (c *Client) Dialect() string {
	return c.querier.Dialect()
}

// FindMany returns every record matching q with its included relations.
func (c *Client) FindMany(ctx context.Context, model string, q Query) ([]Record, error) {
	out, err := c.run(ctx, model, "findMany", q, func(ctx context.Context) (any, error) {
		return c.service.FindMany(ctx, c.querier, model, q)
	})
	records, _ := out.([]Record)
	return records, err
}

// FindFirst returns the first record matching q, or nil.
func (c *Client) FindFirst(ctx context.Context, model string, q Query) (Record, error) {
	return c.record(c.run(ctx, model, "findFirst", q, func(ctx context.Context) (any, error) {
		return c.service.FindFirst(ctx, c.querier, model, q)
	}))
}

// FindFirstOrThrow is FindFirst, failing with ErrNotFound for no match.
func (c *Client) FindFirstOrThrow(ctx context.Context, model string, q Query) (Record, error) {
	return c.record(c.run(ctx, model, "findFirstOrThrow", q, func(ctx context.Context) (any, error) {
		return c.service.FindFirstOrThrow(ctx, c.querier, model, q)
	}))
}

// FindUnique returns the one record matching q. It fails with ErrNotFound
// or ErrAmbiguous otherwise.
func (c *Client) FindUnique(ctx context.Context, model string, q Query) (Record, error) {
	return c.record(c.run(ctx, model, "findUnique", q, func(ctx context.Context) (any, error) {
		return c.service.FindUnique(ctx, c.querier, model, q)
	}))
}

// Count counts the records matching q's filter.
func (c *Client) Count(ctx context.Context, model string, q Query) (int64, error) {
	out, err := c.run(ctx, model, "count", q, func(ctx context.Context) (any, error) {
		return c.service.Count(ctx, c.querier, model, q)
	})
	n, _ := out.(int64)
	return n, err
}

// Create inserts one row.
func (c *Client) Create(ctx context.Context, model string, args CreateArgs) (MutationResult, error) {
	return c.mutation(c.run(ctx, model, "create", args, func(ctx context.Context) (any, error) {
		return c.service.Create(ctx, c.querier, model, args)
	}))
}

// CreateMany inserts several rows in one statement.
func (c *Client) CreateMany(ctx context.Context, model string, args CreateArgs) (MutationResult, error) {
	return c.mutation(c.run(ctx, model, "createMany", args, func(ctx context.Context) (any, error) {
		return c.service.CreateMany(ctx, c.querier, model, args)
	}))
}

// Update updates every record matching args.Where.
func (c *Client) Update(ctx context.Context, model string, args UpdateArgs) (MutationResult, error) {
	return c.mutation(c.run(ctx, model, "update", args, func(ctx context.Context) (any, error) {
		return c.service.Update(ctx, c.querier, model, args)
	}))
}

// UpdateOne updates exactly one record or nothing.
func (c *Client) UpdateOne(ctx context.Context, model string, args UpdateArgs) (MutationResult, error) {
	return c.mutation(c.run(ctx, model, "updateOne", args, func(ctx context.Context) (any, error) {
		return c.service.UpdateOne(ctx, c.querier, model, args)
	}))
}

// Delete deletes every record matching args.Where.
func (c *Client) Delete(ctx context.Context, model string, args DeleteArgs) (MutationResult, error) {
	return c.mutation(c.run(ctx, model, "delete", args, func(ctx context.Context) (any, error) {
		return c.service.Delete(ctx, c.querier, model, args)
	}))
}

// DeleteOne deletes exactly one record or nothing.
func (c *Client) DeleteOne(ctx context.Context, model string, args DeleteArgs) (MutationResult, error) {
	return c.mutation(c.run(ctx, model, "deleteOne", args, func(ctx context.Context) (any, error) {
		return c.service.DeleteOne(ctx, c.querier, model, args)
	}))
}

// SQL renders the root statement of a find without running it. To-many
// includes are fetched by later statements and are not part of it.
func (c *Client) SQL(model string, q Query) (SQL, error) {
	plan, err := c.planner.Find(model, q, nil, 0)
	if err != nil {
		return SQL{}, err
	}
	r, err := render.ForDialect(c.Dialect())
	if err != nil {
		return SQL{}, err
	}
	return r.Find(plan), nil
}

func (c *Client) run(ctx context.Context, model, op string, args any, final Next) (any, error) {
	if logging.TraceID(ctx) == "" {
		ctx = logging.WithTraceID(ctx, newTraceID())
	}
	info := QueryInfo{Model: model, Operation: op, Args: args, StartTime: time.Now()}
	return chain(c.middleware, info, final)(ctx)
}

func (c *Client) record(out any, err error) (Record, error) {
	rec, _ := out.(Record)
	return rec, err
}

func (c *Client) mutation(out any, err error) (MutationResult, error) {
	res, _ := out.(MutationResult)
	return res, err
}
