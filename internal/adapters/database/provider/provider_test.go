package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/internal/adapters/database"
)

func TestInfer(t *testing.T) {
	tests := map[string]string{
		"postgres://localhost/app":   "postgres",
		"postgresql://localhost/app": "postgres",
		"mysql://root@localhost/app": "mysql",
		"mariadb://localhost/app":    "mysql",
		"sqlite://app.db":            "sqlite",
		"app.db":                     "sqlite",
		":memory:":                   "sqlite",
		"file:test.db?cache=shared":  "sqlite",
		"mongodb://localhost":        "mongodb",
		"nonsense":                   "",
	}
	for url, want := range tests {
		assert.Equal(t, want, Infer(url), url)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		cfg     database.Config
		dialect string
	}{
		{database.Config{Provider: "postgresql", URL: "postgres://localhost/app"}, "postgres"},
		{database.Config{URL: "mysql://root@localhost:3306/app"}, "mysql"},
		{database.Config{Provider: "sqlite", URL: ":memory:", Driver: "modernc"}, "sqlite"},
	}
	for _, tt := range tests {
		a, err := New(tt.cfg, nil)
		require.NoError(t, err, tt.cfg.URL)
		assert.Equal(t, tt.dialect, a.Dialect())
		assert.False(t, a.IsOpen())
	}

	_, err := New(database.Config{URL: "mongodb://localhost"}, nil)
	assert.EqualError(t, err, `unsupported database provider: "mongodb"`)

	_, err = New(database.Config{Provider: "postgres"}, nil)
	assert.Error(t, err)
}
