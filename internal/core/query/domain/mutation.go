package domain

import (
	"fmt"
	"sort"
)

// CreateArgs describes an insert of one or more rows. Columns are field
// names; each Values row holds one value per column. Both empty inserts a
// single row of defaults.
type CreateArgs struct {
	Columns    []string
	Values     [][]any
	Returning  []string
	OnConflict *OnConflict
	Lock       LockMode
}

// OnConflict is the policy for rows that violate a unique key on Columns.
// With DoNothing the row is skipped; otherwise the Update fields are
// overwritten with the proposed values.
type OnConflict struct {
	Columns   []string
	DoNothing bool
	Update    []string
}

// Assignment sets a field in an update.
type Assignment struct {
	Field string
	Value any
}

// UpdateArgs describes an update. Set is applied in order.
type UpdateArgs struct {
	Set       []Assignment
	Where     Filter
	Returning []string
	Lock      LockMode
}

// DeleteArgs describes a delete.
type DeleteArgs struct {
	Where     Filter
	Returning []string
	Lock      LockMode
}

// RowsFromMaps turns map rows into sorted columns and value tuples. All rows
// must have the same keys.
func RowsFromMaps(rows []map[string]any) ([]string, [][]any, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}

	columns := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	values := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidArgument, i, len(row), len(columns))
		}
		tuple := make([]any, len(columns))
		for j, col := range columns {
			v, ok := row[col]
			if !ok {
				return nil, nil, fmt.Errorf("%w: row %d missing column %s", ErrInvalidArgument, i, col)
			}
			tuple[j] = v
		}
		values[i] = tuple
	}
	return columns, values, nil
}

// SetFromMap builds sorted assignments from a map.
func SetFromMap(m map[string]any) []Assignment {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := make([]Assignment, len(keys))
	for i, k := range keys {
		set[i] = Assignment{Field: k, Value: m[k]}
	}
	return set
}
