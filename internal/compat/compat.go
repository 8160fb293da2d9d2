// Package compat checks that a database server supports the SQL the
// renderer emits.
package compat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/render"
)

// Server identifies a database server.
type Server struct {
	Dialect string
	// Product is PostgreSQL, MySQL, MariaDB or SQLite.
	Product string
	Version *version.Version
	Raw     string
}

// Requirement is a minimum server version for a feature.
type Requirement struct {
	Product string
	Feature string
	Minimum string
}

// Requirements lists the minimum versions per product.
var Requirements = []Requirement{
	{Product: "PostgreSQL", Feature: "INSERT ... ON CONFLICT", Minimum: "9.5"},
	{Product: "MySQL", Feature: "SELECT ... FOR SHARE", Minimum: "8.0.1"},
	{Product: "MySQL", Feature: "row value IN lists", Minimum: "5.7"},
	{Product: "MariaDB", Feature: "row value IN lists", Minimum: "10.2"},
	{Product: "MariaDB", Feature: "INSERT/DELETE ... RETURNING", Minimum: "10.5"},
	{Product: "SQLite", Feature: "RETURNING", Minimum: "3.35.0"},
	{Product: "SQLite", Feature: "row value IN lists", Minimum: "3.15.0"},
}

// Finding is one checked requirement.
type Finding struct {
	Requirement
	OK bool
}

var leadingVersion = regexp.MustCompile(`\d+(\.\d+){0,2}`)

// Parse identifies the server from its dialect and version string.
func Parse(dialect, raw string) (Server, error) {
	s := Server{Dialect: dialect, Raw: raw}
	switch dialect {
	case render.Postgres:
		s.Product = "PostgreSQL"
	case render.MySQL:
		s.Product = "MySQL"
		if strings.Contains(strings.ToLower(raw), "mariadb") {
			s.Product = "MariaDB"
		}
	case render.SQLite:
		s.Product = "SQLite"
	default:
		return s, fmt.Errorf("unknown dialect %q", dialect)
	}

	num := leadingVersion.FindString(raw)
	if num == "" {
		return s, fmt.Errorf("cannot read %s version from %q", s.Product, raw)
	}
	v, err := version.NewVersion(num)
	if err != nil {
		return s, fmt.Errorf("invalid %s version %q: %w", s.Product, raw, err)
	}
	s.Version = v
	return s, nil
}

// Check returns a finding for every requirement of the server's product.
func Check(s Server) []Finding {
	var out []Finding
	for _, r := range Requirements {
		if r.Product != s.Product {
			continue
		}
		min := version.Must(version.NewVersion(r.Minimum))
		out = append(out, Finding{Requirement: r, OK: s.Version.GreaterThanOrEqual(min)})
	}
	return out
}

// ServerVersion asks the server for its version string.
func ServerVersion(ctx context.Context, q database.Querier) (string, error) {
	var stmt string
	switch q.Dialect() {
	case render.Postgres:
		stmt = "SHOW server_version"
	case render.MySQL:
		stmt = "SELECT VERSION()"
	case render.SQLite:
		stmt = "SELECT sqlite_version()"
	default:
		return "", fmt.Errorf("unknown dialect %q", q.Dialect())
	}
	rs, err := q.Query(ctx, domain.SQL{Query: stmt})
	if err != nil {
		return "", err
	}
	if len(rs.Rows) != 1 || len(rs.Rows[0]) != 1 {
		return "", fmt.Errorf("unexpected result for %s", stmt)
	}
	return fmt.Sprint(rs.Rows[0][0]), nil
}

// Inspect reads and parses the server version of q.
func Inspect(ctx context.Context, q database.Querier) (Server, error) {
	raw, err := ServerVersion(ctx, q)
	if err != nil {
		return Server{Dialect: q.Dialect()}, err
	}
	return Parse(q.Dialect(), raw)
}
