package domain

import (
	"errors"
	"fmt"

	schemadomain "github.com/satishbabariya/relquery/internal/core/schema/domain"
)

// Schema errors, from the catalog.
var (
	ErrUnknownModel    = schemadomain.ErrUnknownModel
	ErrUnknownField    = schemadomain.ErrUnknownField
	ErrUnknownRelation = schemadomain.ErrUnknownRelation
)

// SchemaError is a failed catalog lookup.
type SchemaError = schemadomain.SchemaError

// UnknownFieldError builds an ErrUnknownField error for model.
func UnknownFieldError(model, name string) error {
	return schemadomain.UnknownField(model, name)
}

var (
	// ErrMissingWhere is returned for an update or delete without a filter.
	ErrMissingWhere = errors.New("must have a where clause")
	// ErrEmptyBranch is returned for an $and/$or with an empty branch.
	ErrEmptyBranch = errors.New("empty filter branch")
	// ErrInvalidOperand is returned when an operator gets a value it cannot use.
	ErrInvalidOperand = errors.New("invalid operand")
	// ErrUnknownOperator is returned for an unregistered operator tag.
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrInvalidArgument is returned for malformed descriptors.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a single-row operation matches no rows.
	ErrNotFound = errors.New("record not found")
	// ErrAmbiguous is returned when a single-row operation matches several rows.
	ErrAmbiguous = errors.New("more than one record matched")
)

// FilterError reports an invalid filter clause.
type FilterError struct {
	Op    string
	Value any
	Err   error
}

func (e *FilterError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %#v", e.Op, e.Err, e.Value)
}

// Unwrap returns the underlying error.
func (e *FilterError) Unwrap() error {
	return e.Err
}

// CardinalityError reports a single-row operation that matched zero or
// several rows.
type CardinalityError struct {
	Model     string
	Operation string
	Count     int64
}

func (e *CardinalityError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("%s %s: %v", e.Operation, e.Model, ErrNotFound)
	}
	return fmt.Sprintf("%s %s: %v (%d)", e.Operation, e.Model, ErrAmbiguous, e.Count)
}

// Is matches ErrNotFound or ErrAmbiguous.
func (e *CardinalityError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Count == 0
	case ErrAmbiguous:
		return e.Count > 1
	}
	return false
}

// QueryError wraps a backend error with the statement that caused it.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

// Unwrap returns the backend error.
func (e *QueryError) Unwrap() error {
	return e.Err
}
