// Package where compiles filter trees into boolean SQL expressions.
package where

import (
	"fmt"
	"sync"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/relquery/internal/core/schema/domain"
)

// Target is the column an operator applies to.
type Target struct {
	Table  string
	Column string
}

// Ref returns the target as a plan column.
func (t Target) Ref() domain.Column {
	return domain.Column{Table: t.Table, Name: t.Column}
}

// OperatorFunc compiles one operator applied to a target column. It must
// return a boolean expression.
type OperatorFunc func(t Target, value any) (*domain.Expr, error)

// Middleware rewrites a filter before it is compiled, e.g. to add tenant
// scoping. Stages run in registration order, each receiving the output of
// the previous one.
type Middleware func(model *schemadomain.Model, f domain.Filter) (domain.Filter, error)

// Compiler turns filters into expressions. The zero value is not usable;
// use NewCompiler.
type Compiler struct {
	mu         sync.RWMutex
	operators  map[domain.OperatorTag]OperatorFunc
	registered map[domain.OperatorTag]bool
	middleware []Middleware
}

// NewCompiler creates a compiler with the built-in operators registered.
func NewCompiler() *Compiler {
	c := &Compiler{
		operators:  make(map[domain.OperatorTag]OperatorFunc),
		registered: make(map[domain.OperatorTag]bool),
	}
	for tag, fn := range builtinOperators() {
		c.operators[tag] = fn
	}
	return c
}

// Register adds or replaces an operator. Its expressions are parenthesized
// whenever they are combined with other clauses.
func (c *Compiler) Register(tag domain.OperatorTag, fn OperatorFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operators[tag] = fn
	c.registered[tag] = true
}

// Use appends middleware stages to the pipeline.
func (c *Compiler) Use(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw...)
}

// Compile runs the middleware pipeline over f and compiles the result
// against model, with columns qualified by alias. An empty filter compiles
// to nil.
func (c *Compiler) Compile(model *schemadomain.Model, alias string, f domain.Filter) (*domain.Expr, error) {
	c.mu.RLock()
	pipeline := c.middleware
	c.mu.RUnlock()

	for _, mw := range pipeline {
		var err error
		if f, err = mw(model, f); err != nil {
			return nil, fmt.Errorf("where middleware: %w", err)
		}
	}
	return c.compile(model, alias, f)
}

func (c *Compiler) compile(model *schemadomain.Model, alias string, f domain.Filter) (*domain.Expr, error) {
	if f.IsEmpty() {
		return nil, nil
	}

	clauses := make([]*domain.Expr, 0, len(f.Fields)+3)
	for _, ff := range f.Fields {
		e, err := c.compileField(model, alias, ff)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, e)
	}

	if f.And != nil {
		e, err := c.compileBranches(model, alias, "$and", f.And, domain.AllOf)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, e)
	}
	if f.Or != nil {
		e, err := c.compileBranches(model, alias, "$or", f.Or, domain.AnyOf)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, e)
	}
	if f.Not != nil {
		e, err := c.compile(model, alias, *f.Not)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, &domain.FilterError{Op: "$not", Err: domain.ErrEmptyBranch}
		}
		clauses = append(clauses, domain.Negate(e))
	}

	return domain.AllOf(clauses...), nil
}

func (c *Compiler) compileBranches(model *schemadomain.Model, alias, op string, branches []domain.Filter, combine func(...*domain.Expr) *domain.Expr) (*domain.Expr, error) {
	if len(branches) == 0 {
		return nil, &domain.FilterError{Op: op, Err: domain.ErrEmptyBranch}
	}
	exprs := make([]*domain.Expr, 0, len(branches))
	for i, b := range branches {
		e, err := c.compile(model, alias, b)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, &domain.FilterError{Op: fmt.Sprintf("%s[%d]", op, i), Err: domain.ErrEmptyBranch}
		}
		exprs = append(exprs, e)
	}
	return combine(exprs...), nil
}

func (c *Compiler) compileField(model *schemadomain.Model, alias string, ff domain.FieldFilter) (*domain.Expr, error) {
	field, ok := model.Field(ff.Field)
	if !ok {
		return nil, schemadomain.UnknownField(model.Name, ff.Field)
	}
	target := Target{Table: alias, Column: field.Column}
	col := target.Ref()

	switch v := ff.Value.(type) {
	case nil:
		return domain.NewExpr().Col(col).Text(" IS NULL"), nil
	case bool:
		return isBool(col, "IS", v), nil
	case domain.Operators:
		return c.compileOperators(ff.Field, target, v)
	case []domain.Operator:
		return c.compileOperators(ff.Field, target, v)
	case domain.Operator:
		return c.compileOperators(ff.Field, target, []domain.Operator{v})
	default:
		return domain.Compare(col, "=", v), nil
	}
}

func (c *Compiler) compileOperators(field string, target Target, ops []domain.Operator) (*domain.Expr, error) {
	if len(ops) == 0 {
		return nil, &domain.FilterError{Op: field, Err: fmt.Errorf("%w: empty operator object", domain.ErrInvalidOperand)}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	exprs := make([]*domain.Expr, 0, len(ops))
	for _, op := range ops {
		fn, ok := c.operators[op.Tag]
		if !ok {
			return nil, &domain.FilterError{Op: field, Value: string(op.Tag), Err: domain.ErrUnknownOperator}
		}
		e, err := fn(target, op.Value)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", field, op.Tag, err)
		}
		if c.registered[op.Tag] {
			e = domain.Group(e)
		}
		exprs = append(exprs, e)
	}
	return domain.AllOf(exprs...), nil
}
