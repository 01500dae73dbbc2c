package surface

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
)

// DefaultStrokeWidth matches the browser pad's initial brush size.
const DefaultStrokeWidth = 20.0

// session is the in-progress stroke.
type session struct {
	last   model.Point
	active bool
}

// Surface is a drawing area that accumulates strokes.
// All methods are safe for concurrent use.
type Surface struct {
	dc        *gg.Context
	logger    *slog.Logger
	resampler Resampler
	stroke    session
	width     float64
	tool      model.Tool
	w, h      int
	mu        sync.Mutex
}

// Option configures a Surface.
type Option func(*Surface) error

// WithStrokeWidth sets the initial stroke width.
func WithStrokeWidth(width float64) Option {
	return func(s *Surface) error {
		if err := validateWidth(width); err != nil {
			return err
		}
		s.width = width
		return nil
	}
}

// WithTool sets the initial tool.
func WithTool(tool model.Tool) Option {
	return func(s *Surface) error {
		if !tool.Valid() {
			return common.InvalidArgumentf("unknown tool %v", tool)
		}
		s.tool = tool
		return nil
	}
}

// WithResampler selects the kernel used by SampleDownscaled.
func WithResampler(r Resampler) Option {
	return func(s *Surface) error {
		parsed, err := ParseResampler(string(r))
		if err != nil {
			return common.InvalidArgumentf("%v", err)
		}
		s.resampler = parsed
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// New creates a cleared surface of the given pixel size.
func New(width, height int, opts ...Option) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, common.InvalidArgumentf("surface size must be positive, got %dx%d", width, height)
	}

	s := &Surface{
		w:         width,
		h:         height,
		width:     DefaultStrokeWidth,
		tool:      model.ToolInk,
		resampler: ResampleBilinear,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.dc = gg.NewContext(width, height)
	s.dc.ClearWithColor(gg.Black)
	s.applyPen()

	return s, nil
}

// Bounds returns the surface size in pixels.
func (s *Surface) Bounds() (width, height int) {
	return s.w, s.h
}

// BeginStroke starts a stroke at p. Nothing is drawn until the stroke is extended.
func (s *Surface) BeginStroke(p model.Point) error {
	if !p.Valid() {
		return common.InvalidArgumentf("malformed point %+v", p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stroke = session{active: true, last: p}
	return nil
}

// ExtendStroke draws a segment from the previous point to p with the current
// tool and width. Without an active stroke it does nothing.
func (s *Surface) ExtendStroke(p model.Point) error {
	if !p.Valid() {
		return common.InvalidArgumentf("malformed point %+v", p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stroke.active {
		return nil
	}

	from := s.stroke.last
	s.stroke.last = p
	if from == p {
		return nil
	}

	s.dc.MoveTo(from.X, from.Y)
	s.dc.LineTo(p.X, p.Y)
	if err := s.dc.Stroke(); err != nil {
		return fmt.Errorf("failed to stroke segment: %w", err)
	}
	return nil
}

// EndStroke finishes the current stroke, if any.
func (s *Surface) EndStroke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stroke = session{}
}

// Active reports whether a stroke is in progress.
func (s *Surface) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stroke.active
}

// SetTool changes the tool for subsequent segments.
func (s *Surface) SetTool(tool model.Tool) error {
	if !tool.Valid() {
		return common.InvalidArgumentf("unknown tool %v", tool)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tool = tool
	s.applyPen()
	return nil
}

// Tool returns the current tool.
func (s *Surface) Tool() model.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetStrokeWidth changes the width for subsequent segments. Widths that are not
// finite and positive are rejected; range clamping is the caller's concern.
func (s *Surface) SetStrokeWidth(width float64) error {
	if err := validateWidth(width); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.width = width
	s.applyPen()
	return nil
}

// StrokeWidth returns the current stroke width.
func (s *Surface) StrokeWidth() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

// Clear resets every pixel to background. An active stroke stays active.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dc.ClearWithColor(gg.Black)
	s.logger.Debug("surface cleared")
}

// SampleDownscaled returns a width x height intensity raster of the current drawing.
func (s *Surface) SampleDownscaled(width, height int) (model.Raster, error) {
	if width <= 0 || height <= 0 {
		return model.Raster{}, common.InvalidArgumentf("sample size must be positive, got %dx%d", width, height)
	}

	s.mu.Lock()
	src := s.dc.Image()
	resampler := s.resampler
	s.mu.Unlock()

	var scaled image.Image = src
	if b := src.Bounds(); b.Dx() != width || b.Dy() != height {
		scaled = resampler.Scale(src, width, height)
	}
	return intensities(scaled), nil
}

// Snapshot returns a copy of the full resolution drawing.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	img := s.dc.Image()
	s.mu.Unlock()

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// LoadImage replaces the drawing with img scaled to the surface. Luminance
// becomes ink; set invert for dark-on-light sources such as scanned paper.
func (s *Surface) LoadImage(img image.Image, invert bool) {
	scaled := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			lum := color.GrayModel.Convert(scaled.At(x, y)).(color.Gray).Y
			if invert {
				lum = 255 - lum
			}
			scaled.SetRGBA(x, y, color.RGBA{R: lum, G: lum, B: lum, A: 0xff})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dc = gg.NewContextForImage(scaled)
	s.stroke = session{}
	s.applyPen()
}

// applyPen pushes tool and width into the gg context. Callers hold mu
// or own s exclusively.
func (s *Surface) applyPen() {
	v := s.tool.Intensity()
	s.dc.SetRGB(v, v, v)
	s.dc.SetLineWidth(s.width)
	s.dc.SetLineCap(gg.LineCapRound)
	s.dc.SetLineJoin(gg.LineJoinRound)
}

func validateWidth(width float64) error {
	if math.IsNaN(width) || math.IsInf(width, 0) || width <= 0 {
		return common.InvalidArgumentf("stroke width must be positive, got %v", width)
	}
	return nil
}

// intensities extracts the red channel as ink intensity. Ink is white, so all
// channels agree.
func intensities(img image.Image) model.Raster {
	b := img.Bounds()
	r := model.NewRaster(b.Dx(), b.Dy())

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				r.Set(x, y, float32(rgba.Pix[rgba.PixOffset(b.Min.X+x, b.Min.Y+y)])/255)
			}
		}
		return r
	}

	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			red, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			r.Set(x, y, float32(red)/0xffff)
		}
	}
	return r
}
