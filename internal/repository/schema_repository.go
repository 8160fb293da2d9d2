// Package repository loads schema files.
package repository

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/satishbabariya/relquery/internal/core/schema"
	"github.com/satishbabariya/relquery/internal/core/schema/domain"
	"github.com/satishbabariya/relquery/internal/core/schema/parser"
)

// SchemaRepository reads schema files from a filesystem.
type SchemaRepository struct {
	fs     afero.Fs
	parser *parser.Parser
}

// NewSchemaRepository creates a repository reading from fs. A nil fs reads
// from the OS filesystem.
func NewSchemaRepository(fs afero.Fs) *SchemaRepository {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SchemaRepository{fs: fs, parser: parser.NewParser()}
}

// Load parses the schema file at path.
func (r *SchemaRepository) Load(ctx context.Context, path string) (*domain.Schema, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("schema file not found: %s", path)
		}
		return nil, err
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := r.parser.ParseReader(path, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return s, nil
}

// LoadCatalog parses the schema file at path and resolves its relations.
func (r *SchemaRepository) LoadCatalog(ctx context.Context, path string) (*schema.Catalog, error) {
	s, err := r.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	c, err := schema.NewCatalog(s)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", path, err)
	}
	return c, nil
}

// Exists reports whether the schema file exists.
func (r *SchemaRepository) Exists(path string) (bool, error) {
	return afero.Exists(r.fs, path)
}
