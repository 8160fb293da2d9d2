// Package sqlite creates SQLite adapters.
package sqlite

import (
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver
	_ "modernc.org/sqlite"          // pure Go SQLite driver

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/render"
)

// Driver names accepted in database.Config.Driver.
const (
	DriverMattn   = "mattn"
	DriverModernc = "modernc"
)

// New creates a SQLite adapter. mattn/go-sqlite3 is used unless
// config.Driver is "modernc". The pool is limited to one connection, which
// also keeps a ":memory:" database alive for the adapter's lifetime.
func New(config database.Config, logger *slog.Logger) (*database.Adapter, error) {
	driver := "sqlite3"
	switch config.Driver {
	case "", DriverMattn, "sqlite3":
	case DriverModernc, "sqlite":
		driver = "sqlite"
	default:
		return nil, fmt.Errorf("sqlite: unsupported driver %q", config.Driver)
	}

	dsn := strings.TrimPrefix(config.URL, "sqlite://")
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: missing database path")
	}

	config.MaxConnections = 1
	config.MaxIdleConnections = 1
	config.MaxIdleTime = 0
	config.ConnMaxLifetime = 0
	return database.NewAdapter(render.SQLite, driver, dsn, config, logger), nil
}
