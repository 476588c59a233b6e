package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
)

type failingCounter struct {
	err   error
	calls int
}

func (c *failingCounter) IncrementAndGet(context.Context, string, time.Duration) (int64, error) {
	c.calls++
	return 0, c.err
}

func TestFallbackCounter_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := NewMemoryCounter()
	secondary := NewMemoryCounter()
	fb := NewFallbackCounter(primary, secondary, logging.NewNopLogger(), nil)

	count, err := fb.IncrementAndGet(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 0, secondary.Len())
}

func TestFallbackCounter_FallsBackOnPrimaryError(t *testing.T) {
	primary := &failingCounter{err: errors.New("connection refused")}
	secondary := NewMemoryCounter()
	fb := NewFallbackCounter(primary, secondary, logging.NewNopLogger(), nil)

	count, err := fb.IncrementAndGet(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, primary.calls)
}

func TestFallbackCounter_NoSecondaryReturnsError(t *testing.T) {
	primary := &failingCounter{err: errors.New("connection refused")}
	fb := NewFallbackCounter(primary, nil, logging.NewNopLogger(), nil)

	_, err := fb.IncrementAndGet(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
