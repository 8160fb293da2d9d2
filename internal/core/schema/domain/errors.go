package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel is returned when a model name is not in the catalog.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownField is returned when a field name is not on the model.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownRelation is returned when a relation name is not on the model.
	ErrUnknownRelation = errors.New("unknown relation")
	// ErrInvalidSchema is returned when the catalog cannot be resolved.
	ErrInvalidSchema = errors.New("invalid schema")
)

// SchemaError reports a failed catalog lookup.
type SchemaError struct {
	Kind  error
	Model string
	Name  string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Kind == ErrUnknownModel:
		return fmt.Sprintf("%v %q", e.Kind, e.Name)
	case e.Model != "":
		return fmt.Sprintf("%v %q on model %q", e.Kind, e.Name, e.Model)
	default:
		return fmt.Sprintf("%v %q", e.Kind, e.Name)
	}
}

// Unwrap returns the sentinel kind.
func (e *SchemaError) Unwrap() error {
	return e.Kind
}

// UnknownModel builds an ErrUnknownModel error.
func UnknownModel(name string) error {
	return &SchemaError{Kind: ErrUnknownModel, Name: name}
}

// UnknownField builds an ErrUnknownField error.
func UnknownField(model, name string) error {
	return &SchemaError{Kind: ErrUnknownField, Model: model, Name: name}
}

// UnknownRelation builds an ErrUnknownRelation error.
func UnknownRelation(model, name string) error {
	return &SchemaError{Kind: ErrUnknownRelation, Model: model, Name: name}
}
