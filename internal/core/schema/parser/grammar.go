package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// rawSchema is the parse tree produced by the grammar. It is converted to
// domain.Schema after parsing.
type rawSchema struct {
	Pos    lexer.Position
	Models []*rawModel `parser:"@@*"`
}

type rawModel struct {
	Pos     lexer.Position
	Name    string       `parser:"\"model\" @Ident \"{\""`
	Members []*rawMember `parser:"@@* \"}\""`
}

type rawMember struct {
	Block *rawAttribute `parser:"  \"@@\" @@"`
	Field *rawField     `parser:"| @@"`
}

type rawField struct {
	Pos        lexer.Position
	Name       string          `parser:"@Ident"`
	Type       string          `parser:"@Ident"`
	List       bool            `parser:"@(\"[\" \"]\")?"`
	Optional   bool            `parser:"@\"?\"?"`
	Attributes []*rawAttribute `parser:"(\"@\" @@)*"`
}

type rawAttribute struct {
	Pos  lexer.Position
	Name string    `parser:"@Ident"`
	Args []*rawArg `parser:"(\"(\" (@@ (\",\" @@)*)? \")\")?"`
}

type rawArg struct {
	Name  string    `parser:"(@Ident \":\")?"`
	Value *rawValue `parser:"@@"`
}

type rawValue struct {
	String *string  `parser:"  @String"`
	Number *string  `parser:"| @Number"`
	List   []string `parser:"| \"[\" (@Ident (\",\" @Ident)*)? \"]\""`
	Func   *string  `parser:"| @Ident \"(\" \")\""`
	Ident  *string  `parser:"| @Ident"`
}

// text returns the scalar form of a value.
func (v *rawValue) text() (string, bool) {
	switch {
	case v.String != nil:
		return *v.String, true
	case v.Ident != nil:
		return *v.Ident, true
	case v.Number != nil:
		return *v.Number, true
	default:
		return "", false
	}
}

// list returns the list form of a value; a bare identifier is a list of one.
func (v *rawValue) list() ([]string, bool) {
	switch {
	case v.List != nil:
		return v.List, true
	case v.Ident != nil:
		return []string{*v.Ident}, true
	default:
		return nil, false
	}
}

// arg finds an argument by name, or the positional argument at index pos
// when name is not given.
func (a *rawAttribute) arg(name string, pos int) *rawValue {
	i := 0
	for _, arg := range a.Args {
		if arg.Name == name && name != "" {
			return arg.Value
		}
		if arg.Name == "" {
			if i == pos {
				return arg.Value
			}
			i++
		}
	}
	return nil
}
