package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
)

// Recorder is a prediction sink that writes known predictions to history.
// Write failures are logged and never reach the pipeline.
type Recorder struct {
	store     service.HistoryStorage
	logger    *slog.Logger
	sessionID string
	timeout   time.Duration
}

// NewRecorder creates a Recorder for one session.
func NewRecorder(store service.HistoryStorage, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

// SessionID returns the session predictions are filed under.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Publish stores p unless it is the unknown placeholder.
func (r *Recorder) Publish(p model.Prediction) {
	if !p.Known() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	record := &service.PredictionRecord{
		SessionID:     r.sessionID,
		Label:         p.Label,
		Confidence:    p.Confidence,
		Probabilities: p.Probabilities,
		Trigger:       p.Trigger,
		CreatedAt:     p.At,
	}
	if err := r.store.SavePrediction(ctx, record); err != nil {
		r.logger.Warn("failed to record prediction", "session", r.sessionID, "error", err)
	}
}

// Report ignores errors; they are not history.
func (r *Recorder) Report(error) {}
