package domain

// SQL is a rendered statement.
type SQL struct {
	Query   string
	Args    []interface{}
	Dialect string
}

// Record is one result object. Many-to-one relations nest as Record or nil,
// to-many relations as []Record.
type Record map[string]any
