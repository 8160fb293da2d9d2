// Package postgres creates PostgreSQL adapters.
package postgres

import (
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // PostgreSQL driver

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/render"
)

// Driver names accepted in database.Config.Driver.
const (
	DriverPQ  = "pq"
	DriverPGX = "pgx"
)

// New creates a PostgreSQL adapter. lib/pq is used unless config.Driver
// is "pgx".
func New(config database.Config, logger *slog.Logger) (*database.Adapter, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("postgres: missing connection url")
	}

	driver := "postgres"
	switch config.Driver {
	case "", DriverPQ, "postgres":
	case DriverPGX:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("postgres: unsupported driver %q", config.Driver)
	}
	return database.NewAdapter(render.Postgres, driver, config.URL, config, logger), nil
}
