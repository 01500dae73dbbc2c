package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/Veraticus/digitpad/internal/service"
	"github.com/Veraticus/digitpad/internal/storage"
	"github.com/Veraticus/digitpad/internal/surface"
	"github.com/google/uuid"
)

// loadConfig reads and validates the application configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("invalid configuration: %v", err), err)
	}
	return cfg, nil
}

// newSurface creates a blank surface sized and tuned by cfg.
func newSurface(cfg *config.Config, logger *slog.Logger) (*surface.Surface, error) {
	resampler, err := surface.ParseResampler(cfg.Surface.Resampler)
	if err != nil {
		return nil, err
	}
	return surface.New(cfg.Surface.Width, cfg.Surface.Height,
		surface.WithStrokeWidth(cfg.Brush.Width),
		surface.WithResampler(resampler),
		surface.WithLogger(logger))
}

func pipelineOptions(cfg *config.Config, logger *slog.Logger) []inference.Option {
	return []inference.Option{
		inference.WithDebounce(cfg.Pipeline.Debounce),
		inference.WithRunTimeout(cfg.Pipeline.RunTimeout),
		inference.WithLogger(logger),
	}
}

// openHistory opens and migrates the prediction history database.
func openHistory(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.History.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// startSession files a new session and returns a sink recording into it.
func startSession(ctx context.Context, store service.HistoryStorage, source string, cfg *config.Config, logger *slog.Logger) (*storage.Recorder, error) {
	session := &service.SessionRecord{
		ID:      uuid.NewString(),
		Source:  source,
		Backend: cfg.Classifier.Backend,
		Model:   modelName(cfg),
	}
	if err := store.StartSession(ctx, session); err != nil {
		return nil, err
	}
	logger.Debug("history session started", "session", session.ID, "source", source)
	return storage.NewRecorder(store, session.ID, logger), nil
}

// history bundles the optional recording side of a command.
type history struct {
	store    *storage.SQLiteStorage
	recorder *storage.Recorder
}

// openSession opens history and starts a session when history is enabled.
// The returned history is nil otherwise.
func openSession(ctx context.Context, cfg *config.Config, source string, logger *slog.Logger) (*history, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	recorder, err := startSession(ctx, store, source, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &history{store: store, recorder: recorder}, nil
}

// sinks appends the recorder, if any, to base.
func (h *history) sinks(base ...service.PredictionSink) inference.MultiSink {
	out := inference.MultiSink(base)
	if h != nil {
		out = append(out, h.recorder)
	}
	return out
}

func (h *history) Close() {
	if h == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		slog.Error("Failed to close history database", "error", err)
	}
}

// modelName is what Load receives: a file path, or a model name for the
// remote backend.
func modelName(cfg *config.Config) string {
	if cfg.Classifier.Backend == config.BackendRemote && cfg.Classifier.RemoteModel != "" {
		return cfg.Classifier.RemoteModel
	}
	return cfg.Classifier.ModelPath
}
