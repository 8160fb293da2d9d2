package domain

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseQuery parses a find descriptor written in JSON or YAML:
//
//	{select: [id, title],
//	 where: {status: active, year: {$gte: 2000}, $or: [{a: 1}, {b: 2}]},
//	 include: {author: {select: [name]}, tags: {}},
//	 orderBy: [title, [year, desc]],
//	 limit: 10, offset: 20, for: update}
//
// Key order is kept for where clauses, operators and includes.
func ParseQuery(data []byte) (Query, error) {
	root, err := parseDocument(data)
	if err != nil {
		return Query{}, err
	}
	if root == nil {
		return Query{}, nil
	}
	q, err := queryFromNode(root)
	if err != nil {
		return Query{}, err
	}
	return q, q.Validate()
}

// ParseFilter parses a where tree on its own.
func ParseFilter(data []byte) (Filter, error) {
	root, err := parseDocument(data)
	if err != nil || root == nil {
		return Filter{}, err
	}
	return filterFromNode(root)
}

// ParseCreate parses {values: row | [rows], returning?: [..], onConflict?: {columns, doNothing | update}}.
func ParseCreate(data []byte) (CreateArgs, error) {
	var args CreateArgs
	root, err := parseDocument(data)
	if err != nil || root == nil {
		return args, err
	}
	if err := expectKind(root, yaml.MappingNode, "create descriptor"); err != nil {
		return args, err
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "values":
			var rows []map[string]any
			if val.Kind == yaml.MappingNode {
				var row map[string]any
				if err := val.Decode(&row); err != nil {
					return args, invalid("values", err)
				}
				rows = append(rows, row)
			} else if err := val.Decode(&rows); err != nil {
				return args, invalid("values", err)
			}
			args.Columns, args.Values, err = RowsFromMaps(rows)
			if err != nil {
				return args, err
			}
		case "returning":
			if err := val.Decode(&args.Returning); err != nil {
				return args, invalid("returning", err)
			}
		case "onConflict":
			var oc struct {
				Columns   []string `yaml:"columns"`
				DoNothing bool     `yaml:"doNothing"`
				Update    []string `yaml:"update"`
			}
			if err := val.Decode(&oc); err != nil {
				return args, invalid("onConflict", err)
			}
			args.OnConflict = &OnConflict{Columns: oc.Columns, DoNothing: oc.DoNothing, Update: oc.Update}
		default:
			return args, fmt.Errorf("%w: unknown create key %q", ErrInvalidArgument, key)
		}
	}
	return args, nil
}

// ParseUpdate parses {set: {field: value, ...}, where: {...}, returning?: [..]}.
// Assignments keep their declared order.
func ParseUpdate(data []byte) (UpdateArgs, error) {
	var args UpdateArgs
	root, err := parseDocument(data)
	if err != nil || root == nil {
		return args, err
	}
	if err := expectKind(root, yaml.MappingNode, "update descriptor"); err != nil {
		return args, err
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "set":
			if err := expectKind(val, yaml.MappingNode, "set"); err != nil {
				return args, err
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				v, err := decodeValue(val.Content[j+1])
				if err != nil {
					return args, err
				}
				args.Set = append(args.Set, Assignment{Field: val.Content[j].Value, Value: v})
			}
		case "where":
			if args.Where, err = filterFromNode(val); err != nil {
				return args, err
			}
		case "returning":
			if err := val.Decode(&args.Returning); err != nil {
				return args, invalid("returning", err)
			}
		default:
			return args, fmt.Errorf("%w: unknown update key %q", ErrInvalidArgument, key)
		}
	}
	return args, nil
}

// ParseDelete parses {where: {...}, returning?: [..]}.
func ParseDelete(data []byte) (DeleteArgs, error) {
	var args DeleteArgs
	root, err := parseDocument(data)
	if err != nil || root == nil {
		return args, err
	}
	if err := expectKind(root, yaml.MappingNode, "delete descriptor"); err != nil {
		return args, err
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "where":
			if args.Where, err = filterFromNode(val); err != nil {
				return args, err
			}
		case "returning":
			if err := val.Decode(&args.Returning); err != nil {
				return args, invalid("returning", err)
			}
		default:
			return args, fmt.Errorf("%w: unknown delete key %q", ErrInvalidArgument, key)
		}
	}
	return args, nil
}

func parseDocument(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	return doc.Content[0], nil
}

func queryFromNode(n *yaml.Node) (Query, error) {
	var q Query
	if isNull(n) {
		return q, nil
	}
	if err := expectKind(n, yaml.MappingNode, "query descriptor"); err != nil {
		return q, err
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		var err error
		switch key {
		case "select":
			err = val.Decode(&q.Select)
			if err != nil {
				err = invalid("select", err)
			}
		case "where":
			q.Where, err = filterFromNode(val)
		case "include":
			q.Include, err = includesFromNode(val)
		case "orderBy":
			q.OrderBy, err = orderByFromNode(val)
		case "limit":
			q.Limit, err = intFromNode(val, "limit")
		case "offset":
			q.Offset, err = intFromNode(val, "offset")
		case "for":
			q.Lock, err = ParseLockMode(val.Value)
		default:
			err = fmt.Errorf("%w: unknown query key %q", ErrInvalidArgument, key)
		}
		if err != nil {
			return q, err
		}
	}
	return q, nil
}

func includesFromNode(n *yaml.Node) ([]Include, error) {
	if err := expectKind(n, yaml.MappingNode, "include"); err != nil {
		return nil, err
	}
	includes := make([]Include, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, val := n.Content[i].Value, n.Content[i+1]
		// `rel: true` is shorthand for `rel: {}`.
		if val.Kind == yaml.ScalarNode && val.Tag == "!!bool" {
			if val.Value != "true" {
				continue
			}
			includes = append(includes, Include{Relation: name})
			continue
		}
		nested, err := queryFromNode(val)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", name, err)
		}
		includes = append(includes, Include{Relation: name, Query: nested})
	}
	return includes, nil
}

func orderByFromNode(n *yaml.Node) ([]OrderBy, error) {
	if n.Kind == yaml.ScalarNode {
		return []OrderBy{{Field: n.Value, Direction: Asc}}, nil
	}
	if err := expectKind(n, yaml.SequenceNode, "orderBy"); err != nil {
		return nil, err
	}

	out := make([]OrderBy, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, OrderBy{Field: item.Value, Direction: Asc})
		case yaml.SequenceNode:
			if len(item.Content) == 0 || len(item.Content) > 2 {
				return nil, fmt.Errorf("%w: orderBy entry must be [field] or [field, direction]", ErrInvalidArgument)
			}
			dir := Asc
			if len(item.Content) == 2 {
				d, err := ParseDirection(item.Content[1].Value)
				if err != nil {
					return nil, err
				}
				dir = d
			}
			out = append(out, OrderBy{Field: item.Content[0].Value, Direction: dir})
		default:
			return nil, fmt.Errorf("%w: orderBy entry must be a field or [field, direction]", ErrInvalidArgument)
		}
	}
	return out, nil
}

func filterFromNode(n *yaml.Node) (Filter, error) {
	var f Filter
	if isNull(n) {
		return f, nil
	}
	if err := expectKind(n, yaml.MappingNode, "where"); err != nil {
		return f, err
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		switch key {
		case "$and", "$or":
			if err := expectKind(val, yaml.SequenceNode, key); err != nil {
				return f, err
			}
			branches := make([]Filter, 0, len(val.Content))
			for _, item := range val.Content {
				b, err := filterFromNode(item)
				if err != nil {
					return f, err
				}
				branches = append(branches, b)
			}
			if key == "$and" {
				f.And = append(f.And, branches...)
				if f.And == nil {
					f.And = []Filter{}
				}
			} else {
				f.Or = append(f.Or, branches...)
				if f.Or == nil {
					f.Or = []Filter{}
				}
			}
		case "$not":
			b, err := filterFromNode(val)
			if err != nil {
				return f, err
			}
			f.Not = &b
		default:
			if strings.HasPrefix(key, "$") {
				return f, &FilterError{Op: "where", Value: key, Err: ErrUnknownOperator}
			}
			v, err := fieldValueFromNode(val)
			if err != nil {
				return f, fmt.Errorf("where %s: %w", key, err)
			}
			f.Fields = append(f.Fields, FieldFilter{Field: key, Value: v})
		}
	}
	return f, nil
}

// fieldValueFromNode decodes a field's value. A mapping whose keys all start
// with "$" is an operator object; a mapping with no such keys is a plain
// value compared for equality.
func fieldValueFromNode(n *yaml.Node) (any, error) {
	if n.Kind != yaml.MappingNode {
		return decodeValue(n)
	}

	operators := 0
	for i := 0; i < len(n.Content); i += 2 {
		if strings.HasPrefix(n.Content[i].Value, "$") {
			operators++
		}
	}
	switch operators {
	case 0:
		return decodeValue(n)
	case len(n.Content) / 2:
	default:
		return nil, fmt.Errorf("%w: operator object mixes operators and fields", ErrInvalidArgument)
	}

	ops := make(Operators, 0, operators)
	for i := 0; i+1 < len(n.Content); i += 2 {
		v, err := decodeValue(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		ops = append(ops, Operator{Tag: OperatorTag(n.Content[i].Value), Value: v})
	}
	return ops, nil
}

func decodeValue(n *yaml.Node) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, invalid("value", err)
	}
	return v, nil
}

func intFromNode(n *yaml.Node, name string) (*int, error) {
	if isNull(n) {
		return nil, nil
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return nil, invalid(name, err)
	}
	return &v, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func expectKind(n *yaml.Node, kind yaml.Kind, what string) error {
	if n.Kind != kind {
		return fmt.Errorf("%w: %s has the wrong shape at line %d", ErrInvalidArgument, what, n.Line)
	}
	return nil
}

func invalid(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidArgument, what, err)
}
