// Package pad turns pointer and key input into surface and pipeline calls.
// The terminal and desktop front ends both drive a Controller.
package pad

import (
	"log/slog"

	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/model"
)

// Surface is the part of the drawing surface a pad drives.
type Surface interface {
	Bounds() (width, height int)
	BeginStroke(p model.Point) error
	ExtendStroke(p model.Point) error
	EndStroke()
	SetTool(tool model.Tool) error
	Tool() model.Tool
	SetStrokeWidth(width float64) error
	StrokeWidth() float64
	Clear()
}

// Pipeline is the part of the inference pipeline a pad drives.
type Pipeline interface {
	StrokeExtended()
	StrokeEnded()
	RunInference()
	Reset()
}

// DefaultWidthStep is how far one +/- key press moves the stroke width.
const DefaultWidthStep = 2.0

// Controller owns the pointer stroke session of one pad. It is not safe for
// concurrent use; each front end calls it from its own event loop.
type Controller struct {
	surface  Surface
	pipeline Pipeline
	logger   *slog.Logger
	brush    config.BrushConfig
	last     model.Point
	step     float64
	drawing  bool
}

// NewController creates a controller. The stroke width is moved within brush.
func NewController(surface Surface, pipeline Pipeline, brush config.BrushConfig, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		surface:  surface,
		pipeline: pipeline,
		brush:    brush,
		step:     DefaultWidthStep,
		logger:   logger,
	}
}

// Drawing reports whether the pointer is down on the surface.
func (c *Controller) Drawing() bool {
	return c.drawing
}

// Press starts a stroke at p.
func (c *Controller) Press(p model.Point) error {
	if err := c.surface.BeginStroke(p); err != nil {
		return err
	}
	c.drawing = true
	return nil
}

// Move extends the stroke to p and re-arms the debounce. Without a pressed
// pointer it does nothing.
func (c *Controller) Move(p model.Point) error {
	if !c.drawing {
		return nil
	}
	if err := c.surface.ExtendStroke(p); err != nil {
		return err
	}
	c.pipeline.StrokeExtended()
	return nil
}

// Release ends the stroke and triggers inference. It reports whether a stroke
// was in progress.
func (c *Controller) Release() bool {
	if !c.drawing {
		return false
	}
	c.drawing = false
	c.surface.EndStroke()
	c.pipeline.StrokeEnded()
	return true
}

// SetTool switches between ink and eraser.
func (c *Controller) SetTool(tool model.Tool) error {
	return c.surface.SetTool(tool)
}

// AdjustWidth moves the stroke width by delta, clamped to the brush range,
// and returns the new width.
func (c *Controller) AdjustWidth(delta float64) (float64, error) {
	width := c.brush.ClampBrush(c.surface.StrokeWidth() + delta)
	if err := c.surface.SetStrokeWidth(width); err != nil {
		return c.surface.StrokeWidth(), err
	}
	c.logger.Debug("stroke width changed", "width", width)
	return width, nil
}

// SetWidth sets the stroke width, clamped to the brush range.
func (c *Controller) SetWidth(width float64) (float64, error) {
	return c.AdjustWidth(width - c.surface.StrokeWidth())
}

// Wider steps the stroke width up.
func (c *Controller) Wider() (float64, error) {
	return c.AdjustWidth(c.step)
}

// Narrower steps the stroke width down.
func (c *Controller) Narrower() (float64, error) {
	return c.AdjustWidth(-c.step)
}

// Clear wipes the surface and resets the prediction.
func (c *Controller) Clear() {
	c.surface.Clear()
	c.pipeline.Reset()
}

// Classify runs inference now.
func (c *Controller) Classify() {
	c.pipeline.RunInference()
}
