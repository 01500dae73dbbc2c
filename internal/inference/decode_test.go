package inference

import (
	"math"
	"testing"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func TestSoftmax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
	}{
		{"small logits", []float32{2, 1, 0, 0, 0, 0, 0, 0, 0, -1}},
		{"adversarial magnitudes", []float32{1000, -1000, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"all huge", []float32{3e38, 3e38, 3e38, 1e38, 0, 0, 0, 0, 0, 0}},
		{"all very negative", []float32{-1e30, -1e30, -5e29, -1e30, -1e30, -1e30, -1e30, -1e30, -1e30, -1e30}},
		{"single class", []float32{42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := Softmax(tt.scores)
			require.Len(t, probs, len(tt.scores))
			assert.InDelta(t, 1.0, sum(probs), 1e-6)
			for _, p := range probs {
				assert.False(t, math.IsNaN(p))
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
			}
		})
	}

	assert.Nil(t, Softmax(nil))

	uniform := Softmax([]float32{5, 5, 5, 5})
	for _, p := range uniform {
		assert.InDelta(t, 0.25, p, 1e-12)
	}
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, -1, Argmax(nil))
	assert.Equal(t, 0, Argmax([]float64{0.5}))
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 1, Argmax([]float64{0.1, 0.45, 0.45}), "lowest index wins a tie")
	assert.Equal(t, 0, Argmax([]float64{0.25, 0.25, 0.25, 0.25}))
}

func TestDecode(t *testing.T) {
	t.Run("fixed logits", func(t *testing.T) {
		p, err := Decode([]float32{2, 1, 0, 0, 0, 0, 0, 0, 0, -1})
		require.NoError(t, err)

		// e^2 / (e^2 + e^1 + 7 + e^-1)
		want := math.Exp(2) / (math.Exp(2) + math.Exp(1) + 7 + math.Exp(-1))
		assert.Equal(t, 0, p.Label)
		assert.InDelta(t, want, p.Confidence, 1e-9)
		assert.InDelta(t, 0.4229, p.Confidence, 1e-3)
		assert.Len(t, p.Probabilities, 10)
		assert.True(t, p.Known())
	})

	t.Run("adversarial logits", func(t *testing.T) {
		p, err := Decode([]float32{1000, -1000, 0, 0, 0, 0, 0, 0, 0, 0})
		require.NoError(t, err)
		assert.Equal(t, 0, p.Label)
		assert.InDelta(t, 1.0, p.Confidence, 1e-9)
		assert.InDelta(t, 1.0, sum(p.Probabilities), 1e-6)
	})

	t.Run("tie picks lowest index", func(t *testing.T) {
		p, err := Decode([]float32{0, 3, 0, 3, 0, 0, 0, 0, 0, 0})
		require.NoError(t, err)
		assert.Equal(t, 1, p.Label)
	})

	t.Run("empty scores", func(t *testing.T) {
		_, err := Decode(nil)
		assert.ErrorIs(t, err, common.ErrEmptyScores)
	})

	t.Run("non-finite scores", func(t *testing.T) {
		_, err := Decode([]float32{1, float32(math.NaN()), 0, 0, 0, 0, 0, 0, 0, 0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not finite")
		_, err = Decode([]float32{float32(math.Inf(1)), 0, 0, 0, 0, 0, 0, 0, 0, 0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not finite")
	})

	t.Run("wrong score count", func(t *testing.T) {
		scores := make([]float32, 12)
		scores[11] = 5
		_, err := Decode(scores)
		assert.ErrorIs(t, err, common.ErrShapeMismatch)

		_, err = Decode([]float32{1, 2, 3})
		assert.ErrorIs(t, err, common.ErrShapeMismatch)
	})
}
