package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	configs := map[string]Config{
		"default":    DefaultConfig(),
		"sequential": {Enabled: false},
		"many":       {Enabled: true, NumWorkers: 7, MinChunkSize: 1},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			var counter int64
			n := 1000
			seen := make([]int32, n)

			err := For(context.Background(), n, func(_ context.Context, i int) error {
				atomic.AddInt64(&counter, 1)
				atomic.AddInt32(&seen[i], 1)
				return nil
			}, cfg)

			require.NoError(t, err)
			assert.Equal(t, int64(n), counter)
			for i, s := range seen {
				assert.Equal(t, int32(1), s, "index %d", i)
			}
		})
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	err := For(context.Background(), 0, func(context.Context, int) error {
		called = true
		return nil
	}, DefaultConfig())

	require.NoError(t, err)
	assert.False(t, called)
}

func TestFor_Error(t *testing.T) {
	boom := errors.New("boom")
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	err := For(context.Background(), 100, func(_ context.Context, i int) error {
		if i == 42 {
			return boom
		}
		return nil
	}, cfg)

	assert.ErrorIs(t, err, boom)
}

func TestFor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var counter int64
	err := For(ctx, 10, func(context.Context, int) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, Config{Enabled: false})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, counter)
}
