package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/database/sqlite"
	"github.com/satishbabariya/relquery/internal/core/query/domain"
)

// OpenLibrary returns a connected in-memory SQLite adapter (modernc driver)
// with the library tables created and seeded.
func OpenLibrary(t testing.TB) *database.Adapter {
	t.Helper()
	ctx := context.Background()

	a, err := sqlite.New(database.Config{URL: ":memory:", Driver: sqlite.DriverModernc}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx))
	t.Cleanup(func() { a.Disconnect(ctx) })

	for _, stmt := range append(append([]string(nil), LibraryDDL...), LibrarySeed...) {
		_, err := a.Exec(ctx, domain.SQL{Query: stmt})
		require.NoError(t, err, stmt)
	}
	return a
}

// Recorder is a Querier that records every statement it forwards.
type Recorder struct {
	database.Querier

	mu         sync.Mutex
	statements []domain.SQL
}

// Record wraps q.
func Record(q database.Querier) *Recorder {
	return &Recorder{Querier: q}
}

func (r *Recorder) Query(ctx context.Context, q domain.SQL) (*database.ResultSet, error) {
	r.add(q)
	return r.Querier.Query(ctx, q)
}

func (r *Recorder) Exec(ctx context.Context, q domain.SQL) (database.Result, error) {
	r.add(q)
	return r.Querier.Exec(ctx, q)
}

func (r *Recorder) add(q domain.SQL) {
	r.mu.Lock()
	r.statements = append(r.statements, q)
	r.mu.Unlock()
}

// Statements returns the recorded statements in execution order.
func (r *Recorder) Statements() []domain.SQL {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SQL(nil), r.statements...)
}

// Count returns the number of recorded statements.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statements)
}

// Reset forgets recorded statements.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.statements = nil
	r.mu.Unlock()
}

// Unwrap returns the wrapped Querier.
func (r *Recorder) Unwrap() database.Querier {
	return r.Querier
}
