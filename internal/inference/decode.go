package inference

import (
	"fmt"
	"math"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
)

// Softmax turns logits into probabilities. The maximum logit is subtracted
// before exponentiation so large scores do not overflow.
func Softmax(scores []float32) []float64 {
	if len(scores) == 0 {
		return nil
	}

	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, float64(s))
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(float64(s) - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the largest value, the lowest index on ties,
// or -1 for an empty slice.
func Argmax(values []float64) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// Decode converts raw classifier scores into a prediction. Exactly one
// score per class is required.
func Decode(scores model.ClassScores) (model.Prediction, error) {
	if len(scores) == 0 {
		return model.Prediction{}, common.ErrEmptyScores
	}
	if len(scores) != model.NumClasses {
		return model.Prediction{}, fmt.Errorf("got %d scores, want %d: %w", len(scores), model.NumClasses, common.ErrShapeMismatch)
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return model.Prediction{}, fmt.Errorf("score %d is not finite: %v", i, s)
		}
	}

	probs := Softmax(scores)
	label := Argmax(probs)
	return model.Prediction{
		Label:         label,
		Confidence:    probs[label],
		Probabilities: probs,
	}, nil
}
