package executor

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// reshape turns flat rows into nested records following each column's
// path. A many-to-one relation whose presence column is NULL becomes nil.
func reshape(plan *domain.FindPlan, rs *database.ResultSet) []domain.Record {
	records := make([]domain.Record, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		rec := make(domain.Record, len(plan.Columns))
		for i, col := range plan.Columns {
			if i < len(row) {
				setPath(rec, col.Path, row[i])
			}
		}
		for i, col := range plan.Columns {
			n := len(col.Path)
			if n < 2 || col.Path[n-1] != domain.PresenceField || i >= len(row) || row[i] != nil {
				continue
			}
			if owner := lookup(rec, col.Path[:n-2]); owner != nil {
				owner[col.Path[n-2]] = nil
			}
		}
		records = append(records, rec)
	}
	return records
}

func setPath(rec domain.Record, path []string, v any) {
	cur := rec
	for _, name := range path[:len(path)-1] {
		next, ok := cur[name].(domain.Record)
		if !ok {
			next = make(domain.Record)
			cur[name] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}

// lookup returns the record at path, or nil when a step is missing or nil.
func lookup(rec domain.Record, path []string) domain.Record {
	cur := rec
	for _, name := range path {
		next, ok := cur[name].(domain.Record)
		if !ok || next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// owners returns the records at path below each parent, skipping parents
// where an ancestor relation is nil.
func owners(parents []domain.Record, path []string) []domain.Record {
	out := make([]domain.Record, 0, len(parents))
	for _, p := range parents {
		if o := lookup(p, path); o != nil {
			out = append(out, o)
		}
	}
	return out
}

// strip removes the plan's hidden columns from records.
func strip(plan *domain.FindPlan, records []domain.Record) {
	for _, col := range plan.Columns {
		if !col.Hidden {
			continue
		}
		n := len(col.Path)
		for _, rec := range records {
			if owner := lookup(rec, col.Path[:n-1]); owner != nil {
				delete(owner, col.Path[n-1])
			}
		}
	}
}

// keyHash identifies a key tuple. Drivers disagree on the Go type of the
// same value (int64 against a numeric string from MySQL's text protocol),
// so values are compared by their printed form.
func keyHash(tuple []any) string {
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "\x00")
}

func pathString(path []string) string {
	return strings.Join(path, ".")
}
