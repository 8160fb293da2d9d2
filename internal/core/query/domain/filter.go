package domain

// Filter is a where tree. Field clauses are ANDed in declaration order,
// followed by the And, Or and Not groups.
//
// Logical groups are separate fields rather than entries in Fields, so a
// column that happens to be called "$and" is still just a column.
type Filter struct {
	Fields []FieldFilter
	And    []Filter
	Or     []Filter
	Not    *Filter
}

// FieldFilter restricts one field. Value is one of:
//
//   - nil: the field IS NULL
//   - bool: the field IS TRUE / IS FALSE
//   - Operators: one clause per operator, ANDed
//   - anything else: equality with a bound parameter
type FieldFilter struct {
	Field string
	Value any
}

// OperatorTag names a filter operator.
type OperatorTag string

// Built-in operator tags.
const (
	OpEq    OperatorTag = "$eq"
	OpNe    OperatorTag = "$ne"
	OpGt    OperatorTag = "$gt"
	OpGte   OperatorTag = "$gte"
	OpLt    OperatorTag = "$lt"
	OpLte   OperatorTag = "$lte"
	OpLike  OperatorTag = "$like"
	OpILike OperatorTag = "$ilike"
	OpIn    OperatorTag = "$in"
	OpIs    OperatorTag = "$is"
	OpIsNot OperatorTag = "$isNot"
)

// Operator applies a tagged operator to a value.
type Operator struct {
	Tag   OperatorTag
	Value any
}

// Operators is an ordered operator object.
type Operators []Operator

// Where builds a filter from alternating field/value pairs, keeping their
// order:
//
//	domain.Where("status", "active", "age", domain.Ops(domain.Op(domain.OpGt, 18)))
func Where(pairs ...any) Filter {
	var f Filter
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		f.Fields = append(f.Fields, FieldFilter{Field: name, Value: pairs[i+1]})
	}
	return f
}

// Op builds an Operator.
func Op(tag OperatorTag, value any) Operator {
	return Operator{Tag: tag, Value: value}
}

// Ops builds an operator object.
func Ops(ops ...Operator) Operators {
	return Operators(ops)
}

// IsEmpty reports whether the filter has no clauses. An And or Or group set
// to an empty, non-nil slice is not empty: compiling it is an error.
func (f Filter) IsEmpty() bool {
	return len(f.Fields) == 0 && f.And == nil && f.Or == nil && f.Not == nil
}

// And combines filters into one.
func And(filters ...Filter) Filter {
	return Filter{And: filters}
}

// Or combines filters into one.
func Or(filters ...Filter) Filter {
	return Filter{Or: filters}
}

// Not negates a filter.
func Not(f Filter) Filter {
	return Filter{Not: &f}
}
