package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, config.ConnMaxLifetime)
}

func TestPoolStats(t *testing.T) {
	p, err := New("sqlite", ":memory:", Config{MaxOpenConns: 1, MaxIdleConns: 1}, nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.DB().Exec("SELECT 1")
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 1, stats.MaxOpenConnections)
	assert.Equal(t, 1, stats.OpenConnections)
	assert.True(t, stats.LastHealthCheck.IsZero())
}

func TestHealthCheck(t *testing.T) {
	p, err := New("sqlite", ":memory:", Config{MaxOpenConns: 1}, nil)
	require.NoError(t, err)

	require.NoError(t, p.HealthCheck(context.Background()))
	assert.False(t, p.Stats().LastHealthCheck.IsZero())
	assert.Zero(t, p.Stats().FailedHealthChecks)

	require.NoError(t, p.Close())
	assert.Error(t, p.HealthCheck(context.Background()))
	assert.Equal(t, int64(1), p.Stats().FailedHealthChecks)
}

func TestHealthCheckLoopStops(t *testing.T) {
	p, err := New("sqlite", ":memory:", Config{HealthCheckInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !p.Stats().LastHealthCheck.IsZero()
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, p.Close())
}
