// Package container wires the CLI's dependencies from configuration.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/database/provider"
	"github.com/satishbabariya/relquery/internal/adapters/telemetry"
	"github.com/satishbabariya/relquery/internal/config"
	"github.com/satishbabariya/relquery/internal/core/schema"
	"github.com/satishbabariya/relquery/internal/logging"
	"github.com/satishbabariya/relquery/internal/repository"
	"github.com/satishbabariya/relquery/pkg/client"
)

// Container holds all application dependencies.
type Container struct {
	config    *config.Config
	logger    *slog.Logger
	logCloser io.Closer

	schemaRepo *repository.SchemaRepository
	catalog    *schema.Catalog
	telemetry  telemetry.Telemetry
	adapter    *database.Adapter
	client     *client.Client
}

// Option configures a Container.
type Option func(*options)

type options struct {
	fs     afero.Fs
	logger *slog.Logger
}

// WithFs reads the schema from fs.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithLogger uses l instead of a logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New builds the logger, loads the schema catalog and creates an
// unconnected client. Call Connect before running statements.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{config: cfg, logger: o.logger, logCloser: io.NopCloser(nil)}
	if c.logger == nil {
		logger, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		c.logger, c.logCloser = logger, closer
	}

	c.schemaRepo = repository.NewSchemaRepository(o.fs)
	catalog, err := c.schemaRepo.LoadCatalog(ctx, cfg.Schema.Path)
	if err != nil {
		c.logCloser.Close()
		return nil, err
	}
	c.catalog = catalog

	tel, err := telemetry.NewTelemetry(&telemetry.Config{Type: cfg.Telemetry.Type, ServiceName: cfg.Telemetry.ServiceName})
	if err != nil {
		c.logCloser.Close()
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}
	c.telemetry = tel

	adapter, err := provider.New(cfg.Database.Adapter(), c.logger)
	if err != nil {
		c.logCloser.Close()
		return nil, err
	}
	c.adapter = adapter
	c.client = client.New(catalog, adapter,
		client.WithLogger(c.logger),
		client.WithTelemetry(tel),
		client.WithMiddleware(client.LoggingMiddleware(c.logger)),
	)

	c.logger.Debug("container ready",
		"provider", cfg.Database.Provider,
		"schema", cfg.Schema.Path,
		"models", len(catalog.Models()),
	)
	return c, nil
}

// Connect connects the client's database.
func (c *Container) Connect(ctx context.Context) error {
	return c.client.Connect(ctx)
}

// Config returns the configuration.
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// Catalog returns the schema catalog.
func (c *Container) Catalog() *schema.Catalog { return c.catalog }

// Client returns the query client.
func (c *Container) Client() *client.Client { return c.client }

// Adapter returns the database adapter.
func (c *Container) Adapter() *database.Adapter { return c.adapter }

// Telemetry returns the telemetry recorder.
func (c *Container) Telemetry() telemetry.Telemetry { return c.telemetry }

// Close disconnects the database and releases telemetry and log output.
func (c *Container) Close(ctx context.Context) error {
	return errors.Join(
		c.client.Disconnect(ctx),
		c.telemetry.Close(ctx),
		c.logCloser.Close(),
	)
}
