package inference

import (
	"log/slog"
	"sync"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
)

// LogSink writes predictions and errors to a logger.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger means slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{Logger: logger}
}

// Publish logs the prediction at info level.
func (s *LogSink) Publish(p model.Prediction) {
	s.Logger.Info("prediction",
		"label", p.String(),
		"confidence", p.Confidence,
		"trigger", p.Trigger)
}

// Report logs the error at warn level.
func (s *LogSink) Report(err error) {
	s.Logger.Warn("inference error", "error", err)
}

// MultiSink fans out to several sinks in order.
type MultiSink []service.PredictionSink

// Publish forwards to every sink.
func (m MultiSink) Publish(p model.Prediction) {
	for _, s := range m {
		s.Publish(p)
	}
}

// Report forwards to every sink.
func (m MultiSink) Report(err error) {
	for _, s := range m {
		s.Report(err)
	}
}

// FuncSink adapts plain functions to a PredictionSink. Nil funcs are skipped.
type FuncSink struct {
	OnPrediction func(model.Prediction)
	OnError      func(error)
}

func (f FuncSink) Publish(p model.Prediction) {
	if f.OnPrediction != nil {
		f.OnPrediction(p)
	}
}

func (f FuncSink) Report(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// ChanSink buffers pipeline output on channels for event loops that pull
// messages, such as a bubbletea command. Neither method blocks: a full
// prediction buffer gives up its oldest entry and a full error buffer drops
// the new error.
type ChanSink struct {
	Predictions chan model.Prediction
	Errors      chan error
	closeOnce   sync.Once
	mu          sync.Mutex
}

// NewChanSink creates a ChanSink with the given buffer size, at least one.
func NewChanSink(buffer int) *ChanSink {
	buffer = max(buffer, 1)
	return &ChanSink{
		Predictions: make(chan model.Prediction, buffer),
		Errors:      make(chan error, buffer),
	}
}

// Publish queues p, evicting the oldest queued prediction if the buffer is
// full. The newest prediction is always kept.
func (c *ChanSink) Publish(p model.Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		select {
		case c.Predictions <- p:
			return
		default:
		}
		select {
		case <-c.Predictions:
		default:
		}
	}
}

// Report drops the error when the buffer is full; errors are also logged by
// the pipeline.
func (c *ChanSink) Report(err error) {
	select {
	case c.Errors <- err:
	default:
	}
}

// Close closes both channels. Publish must not be called afterwards.
func (c *ChanSink) Close() {
	c.closeOnce.Do(func() {
		close(c.Predictions)
		close(c.Errors)
	})
}
