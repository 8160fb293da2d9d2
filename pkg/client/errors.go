package client

import (
	"errors"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrUnknownModel    = domain.ErrUnknownModel
	ErrUnknownField    = domain.ErrUnknownField
	ErrUnknownRelation = domain.ErrUnknownRelation

	ErrMissingWhere    = domain.ErrMissingWhere
	ErrEmptyBranch     = domain.ErrEmptyBranch
	ErrInvalidOperand  = domain.ErrInvalidOperand
	ErrUnknownOperator = domain.ErrUnknownOperator
	ErrInvalidArgument = domain.ErrInvalidArgument

	ErrNotFound  = domain.ErrNotFound
	ErrAmbiguous = domain.ErrAmbiguous

	ErrConnectionClosed = database.ErrConnectionClosed
)

// Typed errors, matched with errors.As.
type (
	SchemaError      = domain.SchemaError
	FilterError      = domain.FilterError
	CardinalityError = domain.CardinalityError
	QueryError       = domain.QueryError
)

// IsNotFound reports whether err is a not-found cardinality error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAmbiguous reports whether a single-row operation matched several rows.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguous)
}

// IsQueryError reports whether err came from the database.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
