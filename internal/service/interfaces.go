// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/digitpad/internal/model"
)

// Classifier is the black-box digit model. Both calls may block; callers
// run them off the input path.
type Classifier interface {
	// Load prepares the model at modelPath. Backends that talk to a server
	// treat modelPath as the model name.
	Load(ctx context.Context, modelPath string) error
	// Run scores one input tensor laid out row-major with the given shape.
	Run(ctx context.Context, input []float32, shape []int64) ([]float32, error)
	Close() error
}

// PredictionSink receives pipeline output.
type PredictionSink interface {
	Publish(prediction model.Prediction)
	Report(err error)
}

// Sampler is the read side of a drawing surface.
type Sampler interface {
	SampleDownscaled(width, height int) (model.Raster, error)
}

// PredictionRecord is a stored prediction.
type PredictionRecord struct {
	CreatedAt     time.Time
	ID            string
	SessionID     string
	Trigger       model.Trigger
	Probabilities []float64
	Confidence    float64
	Label         int
}

// SessionRecord describes one run of the pad, replay or batch classify.
type SessionRecord struct {
	StartedAt time.Time
	ID        string
	Source    string
	Backend   string
	Model     string
}

// LabelCount aggregates history by predicted digit.
type LabelCount struct {
	Label         int
	Count         int
	AvgConfidence float64
}

// HistoryStorage persists prediction history.
type HistoryStorage interface {
	StartSession(ctx context.Context, session *SessionRecord) error
	RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error)
	SavePrediction(ctx context.Context, record *PredictionRecord) error
	RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error)
	PredictionsBySession(ctx context.Context, sessionID string) ([]PredictionRecord, error)
	LabelCounts(ctx context.Context) ([]LabelCount, error)
	Migrate(ctx context.Context) error
	Close() error
}

// HistoryExporter publishes stored history to an external report. It
// returns an identifier for the written report.
type HistoryExporter interface {
	Export(ctx context.Context, records []PredictionRecord, counts []LabelCount) (string, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
