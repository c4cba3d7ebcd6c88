package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Limit exceeded
	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.True(t, IsOverload(err))
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_Concurrency(t *testing.T) {
	c := NewController(Config{MaxConcurrentSearches: 2})
	ctx := context.Background()

	require.NoError(t, c.Admit(ctx))
	require.NoError(t, c.Admit(ctx))
	assert.Equal(t, int64(2), c.InFlight())

	err := c.Admit(ctx)
	assert.ErrorIs(t, err, ErrConcurrencyLimit)
	assert.True(t, IsOverload(err))

	c.Release()
	require.NoError(t, c.Admit(ctx))
	c.Release()
	c.Release()
	assert.Equal(t, int64(0), c.InFlight())
}

func TestController_QueueTimeout(t *testing.T) {
	c := NewController(Config{MaxConcurrentSearches: 1, QueueTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, c.Admit(ctx))

	t.Run("TimesOut", func(t *testing.T) {
		start := time.Now()
		err := c.Admit(ctx)
		assert.ErrorIs(t, err, ErrConcurrencyLimit)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("CallerCancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, c.Admit(cctx), context.Canceled)
	})

	t.Run("SlotFreed", func(t *testing.T) {
		c := NewController(Config{MaxConcurrentSearches: 1, QueueTimeout: time.Second})
		require.NoError(t, c.Admit(ctx))

		go func() {
			time.Sleep(10 * time.Millisecond)
			c.Release()
		}()
		require.NoError(t, c.Admit(ctx))
		c.Release()
	})
}

func TestController_Rate(t *testing.T) {
	c := NewController(Config{RequestsPerSecond: 1, Burst: 2})
	ctx := context.Background()

	require.NoError(t, c.Admit(ctx))
	c.Release()
	require.NoError(t, c.Admit(ctx))
	c.Release()

	err := c.Admit(ctx)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int64(0), c.InFlight())
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.Admit(context.Background()))
	c.Release()
	require.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.InFlight())
	assert.Equal(t, Config{}, c.Limits())
}
