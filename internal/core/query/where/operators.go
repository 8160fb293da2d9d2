package where

import (
	"fmt"
	"reflect"

	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

func builtinOperators() map[domain.OperatorTag]OperatorFunc {
	return map[domain.OperatorTag]OperatorFunc{
		domain.OpEq:    eqOperator,
		domain.OpNe:    neOperator,
		domain.OpGt:    compareOperator(">"),
		domain.OpGte:   compareOperator(">="),
		domain.OpLt:    compareOperator("<"),
		domain.OpLte:   compareOperator("<="),
		domain.OpLike:  compareOperator("LIKE"),
		domain.OpILike: ilikeOperator,
		domain.OpIn:    inOperator,
		domain.OpIs:    isOperator("IS"),
		domain.OpIsNot: isOperator("IS NOT"),
	}
}

func compareOperator(op string) OperatorFunc {
	return func(t Target, value any) (*domain.Expr, error) {
		return domain.Compare(t.Ref(), op, value), nil
	}
}

func eqOperator(t Target, value any) (*domain.Expr, error) {
	if value == nil {
		return domain.NewExpr().Col(t.Ref()).Text(" IS NULL"), nil
	}
	return domain.Compare(t.Ref(), "=", value), nil
}

func neOperator(t Target, value any) (*domain.Expr, error) {
	if value == nil {
		return domain.NewExpr().Col(t.Ref()).Text(" IS NOT NULL"), nil
	}
	return domain.Compare(t.Ref(), "<>", value), nil
}

func ilikeOperator(t Target, value any) (*domain.Expr, error) {
	return domain.ILike(t.Ref(), value), nil
}

// inOperator requires a slice or array. An empty set compiles to IN (NULL),
// which matches nothing.
func inOperator(t Target, value any) (*domain.Expr, error) {
	rv := reflect.ValueOf(value)
	if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, &domain.FilterError{Op: string(domain.OpIn), Value: value, Err: fmt.Errorf("%w: expected a list", domain.ErrInvalidOperand)}
	}

	e := domain.NewExpr().Col(t.Ref()).Text(" IN (")
	if rv.Len() == 0 {
		return e.Text("NULL)"), nil
	}
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			e.Text(", ")
		}
		e.Param(rv.Index(i).Interface())
	}
	return e.Text(")"), nil
}

// isOperator only accepts nil, true and false, emitted as literals.
func isOperator(op string) OperatorFunc {
	return func(t Target, value any) (*domain.Expr, error) {
		switch v := value.(type) {
		case nil:
			return domain.NewExpr().Col(t.Ref()).Text(" " + op + " NULL"), nil
		case bool:
			return isBool(t.Ref(), op, v), nil
		default:
			tag := domain.OpIs
			if op != "IS" {
				tag = domain.OpIsNot
			}
			return nil, &domain.FilterError{Op: string(tag), Value: value, Err: fmt.Errorf("%w: expected null, true or false", domain.ErrInvalidOperand)}
		}
	}
}

func isBool(col domain.Column, op string, v bool) *domain.Expr {
	lit := " FALSE"
	if v {
		lit = " TRUE"
	}
	return domain.NewExpr().Col(col).Text(" " + op + lit)
}
