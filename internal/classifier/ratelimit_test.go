package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rl := newRateLimiter(0)
		assert.Nil(t, rl)
		assert.NoError(t, rl.wait(context.Background()))
	})

	t.Run("bucket drains and refills", func(t *testing.T) {
		rl := newRateLimiter(60)
		now := time.Unix(1000, 0)
		rl.now = func() time.Time { return now }
		rl.lastRefill = now

		for range 60 {
			require.Zero(t, rl.reserve())
		}
		assert.InDelta(t, time.Second, rl.reserve(), float64(time.Millisecond))

		now = now.Add(500 * time.Millisecond)
		assert.InDelta(t, 500*time.Millisecond, rl.reserve(), float64(time.Millisecond))

		now = now.Add(500 * time.Millisecond)
		assert.Zero(t, rl.reserve())

		// Idle time never overfills the bucket.
		now = now.Add(time.Hour)
		for range 60 {
			require.Zero(t, rl.reserve())
		}
		assert.NotZero(t, rl.reserve())
	})

	t.Run("wait honors cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := rl.wait(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRemoteRateLimited(t *testing.T) {
	ctx := context.Background()
	server := &fakeModelServer{t: t, scores: []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}
	r := newTestRemote(t, server, "digits")
	require.NoError(t, r.Load(ctx, ""))
	r.limiter = newRateLimiter(1)

	input := make([]float32, 784)
	shape := []int64{1, 1, 28, 28}
	_, err := r.Run(ctx, input, shape)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = r.Run(short, input, shape)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), server.inferCalls.Load())
}
