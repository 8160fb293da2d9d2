// Package provider picks the database adapter for a configured provider.
package provider

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/database/mysql"
	"github.com/satishbabariya/relquery/internal/adapters/database/postgres"
	"github.com/satishbabariya/relquery/internal/adapters/database/sqlite"
)

// New creates an unconnected adapter for cfg.Provider. An empty provider
// is inferred from the URL scheme.
func New(cfg database.Config, logger *slog.Logger) (*database.Adapter, error) {
	name := cfg.Provider
	if name == "" {
		name = Infer(cfg.URL)
	}

	var (
		adapter *database.Adapter
		err     error
	)
	switch strings.ToLower(name) {
	case "postgresql", "postgres":
		adapter, err = postgres.New(cfg, logger)
	case "mysql", "mariadb":
		adapter, err = mysql.New(cfg, logger)
	case "sqlite", "sqlite3":
		adapter, err = sqlite.New(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database provider: %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	return adapter, nil
}

// Infer guesses the provider from a connection URL.
func Infer(url string) string {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		if strings.HasSuffix(url, ".db") || strings.HasSuffix(url, ".sqlite") || url == ":memory:" || strings.HasPrefix(url, "file:") {
			return "sqlite"
		}
		return ""
	}
	switch scheme {
	case "postgres", "postgresql":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "file":
		return "sqlite"
	}
	return scheme
}
