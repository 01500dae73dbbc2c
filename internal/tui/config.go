package tui

import (
	"context"

	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/pad"
	"github.com/Veraticus/digitpad/internal/tui/themes"
)

// Default canvas size in terminal cells. Cells are roughly twice as tall as
// they are wide, so twice as many columns as rows gives a square pad.
const (
	DefaultCanvasCols = 56
	DefaultCanvasRows = 28
)

// Config holds TUI configuration.
type Config struct {
	Theme      themes.Theme
	Surface    Surface
	Pipeline   Pipeline
	Sink       *inference.ChanSink
	ModelPath  string
	Brush      config.BrushConfig
	CanvasCols int
	CanvasRows int
	Width      int
	Height     int
	ShowInput  bool
	ShowHelp   bool
}

// Surface is the drawing surface as seen by the pad.
type Surface interface {
	pad.Surface
	SampleDownscaled(width, height int) (model.Raster, error)
}

// Pipeline is the inference pipeline as seen by the pad.
type Pipeline interface {
	pad.Pipeline
	Load(ctx context.Context, modelPath string) error
	State() inference.State
	Busy() bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:      themes.Default,
		Brush:      config.Default().Brush,
		CanvasCols: DefaultCanvasCols,
		CanvasRows: DefaultCanvasRows,
		Width:      100,
		Height:     34,
		ShowInput:  true,
		ShowHelp:   true,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithCanvasSize sets the canvas size in cells.
func WithCanvasSize(cols, rows int) Option {
	return func(c *Config) {
		if cols > 0 && rows > 0 {
			c.CanvasCols = cols
			c.CanvasRows = rows
		}
	}
}

// WithBrush sets the stroke width range the +/- keys move within.
func WithBrush(brush config.BrushConfig) Option {
	return func(c *Config) {
		c.Brush = brush
	}
}

// WithModelPath makes the pad load the classifier on start.
func WithModelPath(path string) Option {
	return func(c *Config) {
		c.ModelPath = path
	}
}

// WithInputPreview toggles the 28x28 model input panel.
func WithInputPreview(enabled bool) Option {
	return func(c *Config) {
		c.ShowInput = enabled
	}
}

// WithSurface sets the drawing surface.
func WithSurface(s Surface) Option {
	return func(c *Config) {
		c.Surface = s
	}
}

// WithPipeline sets the inference pipeline and the sink it publishes to.
func WithPipeline(p Pipeline, sink *inference.ChanSink) Option {
	return func(c *Config) {
		c.Pipeline = p
		c.Sink = sink
	}
}
