package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/spf13/viper"
)

// Supported classifier backends.
const (
	BackendONNX   = "onnx"
	BackendDense  = "dense"
	BackendRemote = "remote"
)

// ClassifierConfig selects and configures the digit model.
type ClassifierConfig struct {
	Backend     string
	ModelPath   string
	LibraryPath string
	RemoteURL   string
	RemoteModel string
	CacheTTL    time.Duration
	Timeout     time.Duration
	RemoteRPM   int
}

// PipelineConfig tunes inference scheduling.
type PipelineConfig struct {
	Debounce   time.Duration
	RunTimeout time.Duration
}

// SurfaceConfig sizes the drawing surface.
type SurfaceConfig struct {
	Resampler string
	Width     int
	Height    int
}

// BrushConfig is the stroke width slider range.
type BrushConfig struct {
	Width float64
	Min   float64
	Max   float64
}

// HistoryConfig controls prediction recording.
type HistoryConfig struct {
	Path    string
	Enabled bool
}

// Config is the complete application configuration.
type Config struct {
	Classifier ClassifierConfig
	History    HistoryConfig
	Surface    SurfaceConfig
	Pipeline   PipelineConfig
	Brush      BrushConfig
}

// Default returns the configuration used when nothing is set.
// The numbers mirror the browser pad: a 280px canvas, a 20px brush and a
// 300ms quiet period before re-classifying.
func Default() Config {
	return Config{
		Classifier: ClassifierConfig{
			Backend:   BackendONNX,
			ModelPath: "model.onnx",
			CacheTTL:  0,
			Timeout:   30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Debounce:   300 * time.Millisecond,
			RunTimeout: 5 * time.Second,
		},
		Surface: SurfaceConfig{
			Width:     280,
			Height:    280,
			Resampler: "bilinear",
		},
		Brush: BrushConfig{
			Width: 20,
			Min:   1,
			Max:   50,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "~/.local/share/digitpad/history.db",
		},
	}
}

// SetDefaults registers Default() with v so unset keys resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("model.backend", d.Classifier.Backend)
	v.SetDefault("model.path", d.Classifier.ModelPath)
	v.SetDefault("model.cache_ttl", d.Classifier.CacheTTL)
	v.SetDefault("model.timeout", d.Classifier.Timeout)
	v.SetDefault("pipeline.debounce", d.Pipeline.Debounce)
	v.SetDefault("pipeline.run_timeout", d.Pipeline.RunTimeout)
	v.SetDefault("surface.width", d.Surface.Width)
	v.SetDefault("surface.height", d.Surface.Height)
	v.SetDefault("surface.resampler", d.Surface.Resampler)
	v.SetDefault("brush.width", d.Brush.Width)
	v.SetDefault("brush.min", d.Brush.Min)
	v.SetDefault("brush.max", d.Brush.Max)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := Config{
		Classifier: ClassifierConfig{
			Backend:     strings.ToLower(v.GetString("model.backend")),
			ModelPath:   ExpandPath(v.GetString("model.path")),
			LibraryPath: ExpandPath(v.GetString("model.onnx_library")),
			RemoteURL:   strings.TrimRight(v.GetString("model.remote_url"), "/"),
			RemoteModel: v.GetString("model.remote_name"),
			RemoteRPM:   v.GetInt("model.remote_rpm"),
			CacheTTL:    v.GetDuration("model.cache_ttl"),
			Timeout:     v.GetDuration("model.timeout"),
		},
		Pipeline: PipelineConfig{
			Debounce:   v.GetDuration("pipeline.debounce"),
			RunTimeout: v.GetDuration("pipeline.run_timeout"),
		},
		Surface: SurfaceConfig{
			Width:     v.GetInt("surface.width"),
			Height:    v.GetInt("surface.height"),
			Resampler: strings.ToLower(v.GetString("surface.resampler")),
		},
		Brush: BrushConfig{
			Width: v.GetFloat64("brush.width"),
			Min:   v.GetFloat64("brush.min"),
			Max:   v.GetFloat64("brush.max"),
		},
		History: HistoryConfig{
			Enabled: v.GetBool("history.enabled"),
			Path:    ExpandPath(v.GetString("history.path")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Classifier.Backend {
	case BackendONNX, BackendDense:
		if c.Classifier.ModelPath == "" {
			return fmt.Errorf("%w: model.path is required for the %s backend", common.ErrMissingConfig, c.Classifier.Backend)
		}
	case BackendRemote:
		if c.Classifier.RemoteURL == "" {
			return fmt.Errorf("%w: model.remote_url is required for the remote backend", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported model backend %q", common.ErrInvalidConfig, c.Classifier.Backend)
	}

	if c.Classifier.RemoteRPM < 0 {
		return fmt.Errorf("%w: model.remote_rpm cannot be negative", common.ErrInvalidConfig)
	}
	if c.Classifier.CacheTTL < 0 {
		return fmt.Errorf("%w: model.cache_ttl cannot be negative", common.ErrInvalidConfig)
	}
	if c.Pipeline.Debounce <= 0 {
		return fmt.Errorf("%w: pipeline.debounce must be positive", common.ErrInvalidConfig)
	}
	if c.Pipeline.RunTimeout <= 0 {
		return fmt.Errorf("%w: pipeline.run_timeout must be positive", common.ErrInvalidConfig)
	}
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return fmt.Errorf("%w: surface size must be positive, got %dx%d", common.ErrInvalidConfig, c.Surface.Width, c.Surface.Height)
	}
	if c.Brush.Min <= 0 || c.Brush.Max < c.Brush.Min {
		return fmt.Errorf("%w: brush range [%v, %v] is not a positive interval", common.ErrInvalidConfig, c.Brush.Min, c.Brush.Max)
	}
	if c.Brush.Width < c.Brush.Min || c.Brush.Width > c.Brush.Max {
		return fmt.Errorf("%w: brush.width %v outside [%v, %v]", common.ErrInvalidConfig, c.Brush.Width, c.Brush.Min, c.Brush.Max)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("%w: history.path is required when history is enabled", common.ErrMissingConfig)
	}
	return nil
}

// ClampBrush limits a requested stroke width to the configured slider range.
func (b BrushConfig) ClampBrush(width float64) float64 {
	if math.IsNaN(width) {
		return b.Width
	}
	return math.Max(b.Min, math.Min(b.Max, width))
}
