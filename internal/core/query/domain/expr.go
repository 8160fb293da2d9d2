package domain

// PartKind tells the renderer how to emit an expression part.
type PartKind int

const (
	// PartText is raw SQL emitted verbatim.
	PartText PartKind = iota
	// PartColumn is a column reference, quoted by the dialect.
	PartColumn
	// PartParam is a bound parameter.
	PartParam
	// PartKeySet restricts columns to a set of key tuples.
	PartKeySet
	// PartILike is a case-insensitive pattern match, spelled per dialect.
	PartILike
)

// Part is one piece of an expression.
type Part struct {
	Kind   PartKind
	Text   string
	Column Column
	Value  any
	Keys   *KeySet
}

// KeySet is a set of key tuples over Columns. Tuples[i] has one value per
// column.
type KeySet struct {
	Columns []Column
	Tuples  [][]any
}

// Expr is a compiled boolean SQL expression. Parameters are stored in the
// parts that use them, so their order in the rendered text is the order in
// which they were added.
type Expr struct {
	Parts    []Part
	compound bool
}

// NewExpr starts an empty expression.
func NewExpr() *Expr {
	return &Expr{}
}

// Text appends raw SQL.
func (e *Expr) Text(s string) *Expr {
	e.Parts = append(e.Parts, Part{Kind: PartText, Text: s})
	return e
}

// Col appends a column reference.
func (e *Expr) Col(c Column) *Expr {
	e.Parts = append(e.Parts, Part{Kind: PartColumn, Column: c})
	return e
}

// Param appends a bound parameter.
func (e *Expr) Param(v any) *Expr {
	e.Parts = append(e.Parts, Part{Kind: PartParam, Value: v})
	return e
}

// Compare builds "col op param".
func Compare(c Column, op string, v any) *Expr {
	return NewExpr().Col(c).Text(" " + op + " ").Param(v)
}

// ILike builds a case-insensitive match of c against pattern.
func ILike(c Column, pattern any) *Expr {
	return &Expr{Parts: []Part{{Kind: PartILike, Column: c, Value: pattern}}}
}

// InKeys builds a key-set restriction.
func InKeys(keys KeySet) *Expr {
	return &Expr{Parts: []Part{{Kind: PartKeySet, Keys: &keys}}}
}

// Params returns the bound values in order. Key sets contribute their
// flattened tuples.
func (e *Expr) Params() []any {
	if e == nil {
		return nil
	}
	var out []any
	for _, p := range e.Parts {
		switch p.Kind {
		case PartParam, PartILike:
			out = append(out, p.Value)
		case PartKeySet:
			for _, t := range p.Keys.Tuples {
				out = append(out, t...)
			}
		}
	}
	return out
}

// AllOf joins expressions with AND. Nil expressions are skipped; nil is
// returned when nothing remains.
func AllOf(exprs ...*Expr) *Expr {
	return join(" AND ", exprs)
}

// AnyOf joins expressions with OR. Nil expressions are skipped.
func AnyOf(exprs ...*Expr) *Expr {
	return join(" OR ", exprs)
}

// Group marks e as opaque: combining it with other expressions wraps it in
// parentheses. Expressions from caller-registered operators are grouped,
// since their text may contain AND or OR.
func Group(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	return &Expr{Parts: e.Parts, compound: true}
}

// Negate wraps e in NOT (...).
func Negate(e *Expr) *Expr {
	out := NewExpr().Text("NOT (")
	out.Parts = append(out.Parts, e.Parts...)
	return out.Text(")")
}

func join(sep string, exprs []*Expr) *Expr {
	var kept []*Expr
	for _, e := range exprs {
		if e != nil && len(e.Parts) > 0 {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}

	out := &Expr{compound: true}
	for i, e := range kept {
		if i > 0 {
			out.Text(sep)
		}
		if e.compound {
			out.Text("(")
			out.Parts = append(out.Parts, e.Parts...)
			out.Text(")")
		} else {
			out.Parts = append(out.Parts, e.Parts...)
		}
	}
	return out
}
