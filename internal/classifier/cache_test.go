package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreCache(t *testing.T) {
	cache := newScoreCache(time.Minute)
	defer cache.close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, ok := cache.get("a")
	assert.False(t, ok)

	scores := []float32{1, 2, 3}
	cache.set("a", scores)
	scores[0] = 99

	got, ok := cache.get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got, "the cache keeps its own copy")
	assert.Equal(t, 1, cache.size())

	now = now.Add(2 * time.Minute)
	_, ok = cache.get("a")
	assert.False(t, ok, "expired entries are misses")

	cache.clear()
	assert.Zero(t, cache.size())
}

func TestInputKey(t *testing.T) {
	a := inputKey([]float32{0, 0.5, 1}, []int64{1, 3})
	assert.Equal(t, a, inputKey([]float32{0, 0.5, 1}, []int64{1, 3}))
	assert.NotEqual(t, a, inputKey([]float32{0, 0.5, 0.9}, []int64{1, 3}))
	assert.NotEqual(t, a, inputKey([]float32{0, 0.5, 1}, []int64{3, 1}))
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := inference.NewMockClassifier(1, 2, 3)
	c := NewCached(inner, time.Minute)

	require.NoError(t, c.Load(ctx, "model"))
	assert.Equal(t, []string{"model"}, inner.Loads())

	input := []float32{0.1, 0.2}
	first, err := c.Run(ctx, input, []int64{1, 2})
	require.NoError(t, err)
	second, err := c.Run(ctx, input, []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.RunCount())
	assert.Equal(t, 1, c.Hits())

	_, err = c.Run(ctx, []float32{0.3, 0.2}, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.RunCount())

	inner.SetRunErr(errors.New("down"))
	_, err = c.Run(ctx, []float32{0.9, 0.9}, []int64{1, 2})
	assert.Error(t, err)
	inner.SetRunErr(nil)
	_, err = c.Run(ctx, []float32{0.9, 0.9}, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 4, inner.RunCount(), "errors are not cached")

	require.NoError(t, c.Close())
}
