// Package domain contains the request, plan and error types shared by the
// query compiler, renderer and orchestrator.
package domain

import (
	"fmt"
	"strings"
)

// Query is a find request: what to select, filter, include, order and page.
type Query struct {
	Select  []string
	Where   Filter
	Include []Include
	OrderBy []OrderBy
	Limit   *int
	Offset  *int
	Lock    LockMode
}

// Include requests a relation, shaped by its own nested query.
type Include struct {
	Relation string
	Query    Query
}

// OrderBy orders by a field. Field may be dotted to reach a field of an
// included many-to-one relation, e.g. "author.name".
type OrderBy struct {
	Field     string
	Direction Direction
}

// Direction is a sort direction.
type Direction string

const (
	// Asc sorts ascending.
	Asc Direction = "ASC"
	// Desc sorts descending.
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case. An empty string is Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return "", fmt.Errorf("%w: order direction %q", ErrInvalidArgument, s)
	}
}

// LockMode is a row-lock clause appended to reads.
type LockMode string

const (
	// LockNone takes no row locks.
	LockNone LockMode = ""
	// LockForUpdate is SELECT ... FOR UPDATE.
	LockForUpdate LockMode = "update"
	// LockForShare is SELECT ... FOR SHARE.
	LockForShare LockMode = "share"
)

// ParseLockMode parses the descriptor "for" value.
func ParseLockMode(s string) (LockMode, error) {
	switch LockMode(strings.ToLower(s)) {
	case LockNone:
		return LockNone, nil
	case LockForUpdate:
		return LockForUpdate, nil
	case LockForShare:
		return LockForShare, nil
	default:
		return "", fmt.Errorf("%w: lock mode %q", ErrInvalidArgument, s)
	}
}

// Int returns a pointer to n, for Limit and Offset.
func Int(n int) *int {
	return &n
}

// Validate checks pagination values of the query and all its includes.
func (q Query) Validate() error {
	if q.Limit != nil && *q.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidArgument, *q.Limit)
	}
	if q.Offset != nil && *q.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidArgument, *q.Offset)
	}
	for _, inc := range q.Include {
		if err := inc.Query.Validate(); err != nil {
			return fmt.Errorf("include %s: %w", inc.Relation, err)
		}
	}
	return nil
}
