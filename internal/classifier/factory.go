package classifier

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/service"
)

// New creates the backend named in cfg, wrapped in a score cache when
// cfg.CacheTTL is positive.
func New(cfg config.ClassifierConfig, logger *slog.Logger) (service.Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var c service.Classifier
	switch strings.ToLower(cfg.Backend) {
	case config.BackendONNX, "":
		c = NewONNX(cfg.LibraryPath, logger)
	case config.BackendDense:
		c = NewDense()
	case config.BackendRemote:
		remote, err := NewRemote(RemoteConfig{
			BaseURL:           cfg.RemoteURL,
			Model:             cfg.RemoteModel,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RemoteRPM,
		}, logger)
		if err != nil {
			return nil, err
		}
		c = remote
	default:
		return nil, fmt.Errorf("unsupported classifier backend: %s", cfg.Backend)
	}

	if cfg.CacheTTL > 0 {
		c = NewCached(c, cfg.CacheTTL)
	}
	return c, nil
}
