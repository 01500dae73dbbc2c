// Package window runs the digit pad in a desktop window. The left mouse
// button and the first touch both draw.
package window

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/pad"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Surface is the drawing surface as seen by the window.
type Surface interface {
	pad.Surface
	Snapshot() *image.RGBA
}

// Pipeline is the inference pipeline as seen by the window.
type Pipeline interface {
	pad.Pipeline
	Load(ctx context.Context, modelPath string) error
	State() inference.State
	Busy() bool
}

// Config holds window configuration.
type Config struct {
	Surface   Surface
	Pipeline  Pipeline
	Sink      *inference.ChanSink
	Logger    *slog.Logger
	ModelPath string
	Brush     config.BrushConfig
	Scale     int
}

type game struct {
	ctx        context.Context
	surface    Surface
	pipeline   Pipeline
	sink       *inference.ChanSink
	pad        *pad.Controller
	canvas     *ebiten.Image
	lastError  error
	logger     *slog.Logger
	prediction model.Prediction
	selector   pad.PointerSelector
	touches    []ebiten.TouchID
	showHelp   bool
}

// Run opens the window and blocks until it is closed or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Surface == nil || cfg.Pipeline == nil || cfg.Sink == nil {
		return fmt.Errorf("surface, pipeline and sink are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}

	g := &game{
		ctx:        ctx,
		surface:    cfg.Surface,
		pipeline:   cfg.Pipeline,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		pad:        pad.NewController(cfg.Surface, cfg.Pipeline, cfg.Brush, cfg.Logger),
		prediction: model.UnknownPrediction(model.TriggerReset),
	}

	if cfg.ModelPath != "" && cfg.Pipeline.State() == inference.StateIdle {
		go func() {
			// Failures reach the sink as a LoadError.
			_ = cfg.Pipeline.Load(ctx, cfg.ModelPath)
		}()
	}

	w, h := cfg.Surface.Bounds()
	ebiten.SetWindowTitle("digitpad")
	ebiten.SetWindowSize(w*cfg.Scale, h*cfg.Scale)
	ebiten.SetTPS(60)

	err := ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

func (g *game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	g.drain()

	if done := g.handleKeys(); done {
		return ebiten.Termination
	}

	if err := g.pad.Poll(g.pointer()); err != nil {
		g.lastError = err
	}
	return nil
}

// drain takes whatever the pipeline has published without blocking the frame.
func (g *game) drain() {
	for {
		select {
		case p, ok := <-g.sink.Predictions:
			if !ok {
				return
			}
			g.prediction = p
		case err, ok := <-g.sink.Errors:
			if !ok {
				return
			}
			g.lastError = err
		default:
			return
		}
	}
}

// pointer merges the mouse and touch input of this frame.
func (g *game) pointer() pad.PointerState {
	x, y := ebiten.CursorPosition()
	mouse := pad.PointerState{
		X:    float64(x),
		Y:    float64(y),
		Down: ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
	}

	g.touches = ebiten.AppendTouchIDs(g.touches[:0])
	touches := make([]pad.Touch, 0, len(g.touches))
	for _, id := range g.touches {
		tx, ty := ebiten.TouchPosition(id)
		touches = append(touches, pad.Touch{ID: int(id), X: float64(tx), Y: float64(ty)})
	}
	return g.selector.Select(mouse, touches)
}

// handleKeys applies this frame's key presses and reports whether to quit.
func (g *game) handleKeys() bool {
	pressed := func(keys ...ebiten.Key) bool {
		for _, k := range keys {
			if inpututil.IsKeyJustPressed(k) {
				return true
			}
		}
		return false
	}

	switch {
	case pressed(ebiten.KeyQ, ebiten.KeyEscape):
		return true
	case pressed(ebiten.KeyB):
		g.report(g.pad.SetTool(model.ToolInk))
	case pressed(ebiten.KeyE):
		g.report(g.pad.SetTool(model.ToolErase))
	case pressed(ebiten.KeyEqual, ebiten.KeyNumpadAdd):
		_, err := g.pad.Wider()
		g.report(err)
	case pressed(ebiten.KeyMinus, ebiten.KeyNumpadSubtract):
		_, err := g.pad.Narrower()
		g.report(err)
	case pressed(ebiten.KeyC):
		g.pad.Clear()
		g.prediction = model.UnknownPrediction(model.TriggerReset)
		g.lastError = nil
	case pressed(ebiten.KeyEnter, ebiten.KeyNumpadEnter):
		g.pad.Classify()
	case pressed(ebiten.KeySlash):
		g.showHelp = !g.showHelp
	}
	return false
}

func (g *game) report(err error) {
	if err != nil {
		g.logger.Warn("pad action failed", "error", err)
		g.lastError = err
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	snap := g.surface.Snapshot()
	b := snap.Bounds()
	if g.canvas == nil || g.canvas.Bounds().Dx() != b.Dx() || g.canvas.Bounds().Dy() != b.Dy() {
		if g.canvas != nil {
			g.canvas.Deallocate()
		}
		g.canvas = ebiten.NewImage(b.Dx(), b.Dy())
	}
	g.canvas.WritePixels(snap.Pix)
	screen.DrawImage(g.canvas, nil)

	for i, line := range g.overlay() {
		ebitenutil.DebugPrintAt(screen, line, 4, 4+i*16)
	}
}

func (g *game) overlay() []string {
	lines := []string{fmt.Sprintf("digit: %s", g.prediction)}
	if g.prediction.Known() {
		lines[0] += fmt.Sprintf("  (%.0f%%)", g.prediction.Confidence*100)
	}

	switch g.pipeline.State() {
	case inference.StateIdle:
		lines = append(lines, "loading model...")
	case inference.StateUnavailable:
		lines = append(lines, "model unavailable")
	}
	if g.lastError != nil {
		lines = append(lines, "error: "+g.lastError.Error())
	}
	if g.showHelp {
		lines = append(lines,
			fmt.Sprintf("tool %s, width %.0f", g.surface.Tool(), g.surface.StrokeWidth()),
			"b brush  e eraser  +/- width",
			"c clear  enter classify  q quit")
	}
	return lines
}

func (g *game) Layout(_, _ int) (int, int) {
	return g.surface.Bounds()
}
