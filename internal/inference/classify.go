package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
)

// Classify samples s at width x height, runs c once and decodes the scores.
// The prediction is stamped as a manual run. A panicking classifier comes
// back as an error.
func Classify(ctx context.Context, s service.Sampler, c service.Classifier, width, height int) (model.Prediction, error) {
	input, shape, err := sample(s, width, height)
	if err != nil {
		return model.Prediction{}, err
	}
	return classifyInput(ctx, c, input, shape)
}

// sample copies the surface into a flat model input and its NCHW shape.
func sample(s service.Sampler, width, height int) ([]float32, []int64, error) {
	raster, err := s.SampleDownscaled(width, height)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sample surface: %w", err)
	}
	return raster.Flatten(), []int64{1, 1, int64(height), int64(width)}, nil
}

func classifyInput(ctx context.Context, c service.Classifier, input []float32, shape []int64) (model.Prediction, error) {
	scores, err := invoke(ctx, c, input, shape)
	if err != nil {
		return model.Prediction{}, err
	}

	prediction, err := Decode(scores)
	if err != nil {
		return model.Prediction{}, err
	}
	prediction.Trigger = model.TriggerManual
	prediction.At = time.Now()
	return prediction, nil
}

func invoke(ctx context.Context, c service.Classifier, input []float32, shape []int64) (scores []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()
	return c.Run(ctx, input, shape)
}
