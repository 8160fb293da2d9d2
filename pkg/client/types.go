package client

import (
	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/telemetry"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
	"github.com/satishbabariya/relquery/internal/core/query/where"
	"github.com/satishbabariya/relquery/internal/core/schema"
	schemadomain "github.com/satishbabariya/relquery/internal/core/schema/domain"
	"github.com/satishbabariya/relquery/internal/service"
)

// Request and result types.
type (
	Query      = domain.Query
	Include    = domain.Include
	OrderBy    = domain.OrderBy
	Direction  = domain.Direction
	LockMode   = domain.LockMode
	Filter     = domain.Filter
	Operator   = domain.Operator
	Operators  = domain.Operators
	Record     = domain.Record
	CreateArgs = domain.CreateArgs
	OnConflict = domain.OnConflict
	UpdateArgs = domain.UpdateArgs
	Assignment = domain.Assignment
	DeleteArgs = domain.DeleteArgs
	SQL        = domain.SQL

	MutationResult = service.MutationResult
)

// Extension types.
type (
	Model           = schemadomain.Model
	Catalog         = schema.Catalog
	Expr            = domain.Expr
	Target          = where.Target
	OperatorFunc    = where.OperatorFunc
	WhereMiddleware = where.Middleware
	OperatorTag     = domain.OperatorTag
)

// Connection and telemetry types.
type (
	DatabaseConfig  = database.Config
	Telemetry       = telemetry.Telemetry
	TelemetryConfig = telemetry.Config
)

// Sort directions and lock modes.
const (
	Asc  = domain.Asc
	Desc = domain.Desc

	LockNone      = domain.LockNone
	LockForUpdate = domain.LockForUpdate
	LockForShare  = domain.LockForShare
)

// Filter builders.
var (
	Where = domain.Where
	And   = domain.And
	Or    = domain.Or
	Not   = domain.Not
	Op    = domain.Op
	Ops   = domain.Ops
	Int   = domain.Int
)

// Descriptor parsers.
var (
	ParseQuery  = domain.ParseQuery
	ParseFilter = domain.ParseFilter
	ParseCreate = domain.ParseCreate
	ParseUpdate = domain.ParseUpdate
	ParseDelete = domain.ParseDelete
)

// NewTelemetry creates a noop, prometheus or opentelemetry recorder.
func NewTelemetry(cfg TelemetryConfig) (Telemetry, error) {
	return telemetry.NewTelemetry(&cfg)
}
