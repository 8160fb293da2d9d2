package domain

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"
)

// Table is one table instance in a statement.
type Table struct {
	Schema string
	Name   string
	Alias  string
	Model  string
}

// Column is a physical column scoped to a table alias.
type Column struct {
	Table string
	Name  string
}

// SelectColumn is a projected column and the place its value takes in the
// nested result. Hidden columns carry keys the orchestrator needs and are
// removed from returned records.
type SelectColumn struct {
	Column Column
	Alias  string
	Path   []string
	Hidden bool
}

// MaxAliasLength is the longest column alias PathAlias returns, PostgreSQL's
// identifier limit in bytes.
const MaxAliasLength = 63

// PathAlias is the result column alias for a path. Aliases longer than
// MaxAliasLength are cut and suffixed with a hash of the full path, so
// distinct deep paths keep distinct aliases.
func PathAlias(path []string) string {
	alias := strings.Join(path, "__")
	if len(alias) <= MaxAliasLength {
		return alias
	}
	h := fnv.New32a()
	h.Write([]byte(alias))
	suffix := fmt.Sprintf("_%08x", h.Sum32())

	n := MaxAliasLength - len(suffix)
	for n > 0 && !utf8.RuneStart(alias[n]) {
		n--
	}
	return alias[:n] + suffix
}

// PresenceField is the hidden field whose NULL value marks an unmatched
// optional relation.
const PresenceField = "__present"

// JoinType is INNER or LEFT.
type JoinType string

const (
	// InnerJoin is used for required many-to-one relations.
	InnerJoin JoinType = "INNER"
	// LeftJoin is used for optional many-to-one relations.
	LeftJoin JoinType = "LEFT"
)

// JoinColumn pairs a parent column with the joined table's column.
type JoinColumn struct {
	From Column
	To   Column
}

// Join is a many-to-one relation joined into the statement. When Subquery
// is set the join targets that derived table, aliased Table.Alias.
type Join struct {
	Type     JoinType
	Relation string
	Path     []string
	Table    Table
	Columns  []JoinColumn
	Where    *Expr
	Subquery *FindPlan
}

// OrderColumn is a resolved ORDER BY entry.
type OrderColumn struct {
	Column    Column
	Direction Direction
}

// FindPlan is a single SELECT statement plus the to-many fetches deferred
// to follow it.
type FindPlan struct {
	Table      Table
	Columns    []SelectColumn
	Joins      []Join
	Where      *Expr
	OrderBy    []OrderColumn
	Limit      *int
	Offset     *int
	Lock       LockMode
	TableIndex int
	ToMany     []ToManyFetch
}

// ToManyFetch is a deferred fetch of a one-to-many or many-to-many relation.
//
// From are parent fields and To the matching fields of the fetched model.
// Path locates the relation in parent records. For many-to-many relations
// Model is the through model and Unwrap names its relation to the target;
// each fetched row is replaced by that nested record.
type ToManyFetch struct {
	Relation string
	Model    string
	Query    Query
	From     []string
	To       []string
	Path     []string
	Unwrap   string
}

// KeyFilter restricts a fetch to rows whose Fields match one of the tuples.
type KeyFilter struct {
	Fields []string
	Tuples [][]any
}

// CountPlan is a SELECT count(1) statement.
type CountPlan struct {
	Table      Table
	Joins      []Join
	Where      *Expr
	Lock       LockMode
	TableIndex int
}

// InsertPlan is an INSERT statement.
type InsertPlan struct {
	Table      Table
	Columns    []string
	Values     [][]any
	OnConflict *ConflictPlan
	Returning  []SelectColumn
	// Lock is carried from the arguments but never rendered. The statement
	// already locks the rows it writes, and no dialect accepts a locking
	// clause on INSERT, UPDATE or DELETE.
	Lock       LockMode
}

// ConflictPlan is a resolved conflict policy. An empty Update means do
// nothing.
type ConflictPlan struct {
	Columns []string
	Update  []string
}

// SetColumn is one resolved SET assignment.
type SetColumn struct {
	Column string
	Value  any
}

// UpdatePlan is an UPDATE statement.
type UpdatePlan struct {
	Table      Table
	Set        []SetColumn
	Where      *Expr
	Returning  []SelectColumn
	// Lock is carried from the arguments but never rendered. The statement
	// already locks the rows it writes, and no dialect accepts a locking
	// clause on INSERT, UPDATE or DELETE.
	Lock       LockMode
	TableIndex int
}

// DeletePlan is a DELETE statement.
type DeletePlan struct {
	Table      Table
	Where      *Expr
	Returning  []SelectColumn
	// Lock is carried from the arguments but never rendered. The statement
	// already locks the rows it writes, and no dialect accepts a locking
	// clause on INSERT, UPDATE or DELETE.
	Lock       LockMode
	TableIndex int
}
