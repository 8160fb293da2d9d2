// Package mysql creates MySQL and MariaDB adapters.
package mysql

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/render"
)

// New creates a MySQL adapter. The URL may be a driver DSN
// (user:pass@tcp(host:3306)/db) or a mysql:// URL. parseTime is always
// enabled so DATETIME columns scan as time.Time.
func New(config database.Config, logger *slog.Logger) (*database.Adapter, error) {
	if config.Driver != "" && config.Driver != "mysql" {
		return nil, fmt.Errorf("mysql: unsupported driver %q", config.Driver)
	}
	dsn, err := DSN(config.URL)
	if err != nil {
		return nil, err
	}
	return database.NewAdapter(render.MySQL, "mysql", dsn, config, logger), nil
}

// DSN normalizes a connection string into a driver DSN.
func DSN(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("mysql: missing connection url")
	}
	if strings.HasPrefix(raw, "mysql://") || strings.HasPrefix(raw, "mariadb://") {
		var err error
		if raw, err = fromURL(raw); err != nil {
			return "", err
		}
	}

	cfg, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("mysql: invalid dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func fromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("mysql: invalid url: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Hostname() + ":3306"
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")

	params := map[string]string{}
	for k, v := range u.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if len(params) > 0 {
		cfg.Params = params
	}
	return cfg.FormatDSN(), nil
}
