package tui

import (
	"fmt"

	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/pad"
	"github.com/Veraticus/digitpad/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Canvas content starts below the title line and inside the border.
const (
	canvasOriginX = 1
	canvasOriginY = 2
)

// Model holds the main TUI state.
type Model struct {
	theme        themes.Theme
	surface      Surface
	pipeline     Pipeline
	pad          *pad.Controller
	lastError    error
	sink         *inference.ChanSink
	prediction   model.Prediction
	errorContext string
	config       Config
	keymap       KeyMap
	spinner      spinner.Model
	help         help.Model
	progress     progress.Model
	width        int
	height       int
	quitting     bool
}

// newModel creates a new model with the given configuration.
func newModel(cfg Config) Model {
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(24),
		progress.WithoutPercentage(),
	)

	spin := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(cfg.Theme.Primary)),
	)

	h := help.New()
	h.ShowAll = false

	return Model{
		config:     cfg,
		theme:      cfg.Theme,
		surface:    cfg.Surface,
		pipeline:   cfg.Pipeline,
		pad:        pad.NewController(cfg.Surface, cfg.Pipeline, cfg.Brush, nil),
		sink:       cfg.Sink,
		keymap:     DefaultKeyMap(),
		prediction: model.UnknownPrediction(model.TriggerReset),
		spinner:    spin,
		help:       h,
		progress:   bar,
		width:      cfg.Width,
		height:     cfg.Height,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		waitForPrediction(m.sink),
		waitForError(m.sink),
	}

	if m.config.ModelPath != "" && m.pipeline.State() == inference.StateIdle {
		cmds = append(cmds, m.loadModel())
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg), nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case predictionMsg:
		m.prediction = msg.prediction
		return m, waitForPrediction(m.sink)

	case inferenceErrorMsg:
		m.lastError = msg.err
		m.errorContext = "inference"
		return m, waitForError(m.sink)

	case modelLoadedMsg:
		if msg.err != nil {
			m.lastError = msg.err
			m.errorContext = "model"
		}
		return m, nil

	case errorMsg:
		m.lastError = msg.err
		m.errorContext = msg.context
		return m, nil

	case sinkClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey maps key presses onto surface and pipeline calls.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit), key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keymap.Ink):
		if err := m.pad.SetTool(model.ToolInk); err != nil {
			return m, showError(err, "tool")
		}

	case key.Matches(msg, m.keymap.Erase):
		if err := m.pad.SetTool(model.ToolErase); err != nil {
			return m, showError(err, "tool")
		}

	case key.Matches(msg, m.keymap.Wider):
		if _, err := m.pad.Wider(); err != nil {
			return m, showError(err, "brush")
		}

	case key.Matches(msg, m.keymap.Narrower):
		if _, err := m.pad.Narrower(); err != nil {
			return m, showError(err, "brush")
		}

	case key.Matches(msg, m.keymap.Clear):
		m.pad.Clear()
		m.prediction = model.UnknownPrediction(model.TriggerReset)
		m.lastError = nil
		m.errorContext = ""

	case key.Matches(msg, m.keymap.Classify):
		m.pad.Classify()
	}

	return m, nil
}

// handleMouse turns left-button drags inside the canvas into a stroke.
func (m Model) handleMouse(msg tea.MouseMsg) Model {
	p, inside := m.cellToSurface(msg.X, msg.Y)

	var err error
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && inside {
			err = m.pad.Press(p)
		}
	case tea.MouseActionMotion:
		if inside {
			err = m.pad.Move(p)
		}
	case tea.MouseActionRelease:
		m.pad.Release()
	}

	if err != nil {
		m.lastError = err
		m.errorContext = "stroke"
	}
	return m
}

// cellToSurface maps a terminal cell to the surface pixel under its center.
func (m Model) cellToSurface(x, y int) (model.Point, bool) {
	cx, cy := x-canvasOriginX, y-canvasOriginY
	cols, rows := m.config.CanvasCols, m.config.CanvasRows
	if cx < 0 || cy < 0 || cx >= cols || cy >= rows {
		return model.Point{}, false
	}

	w, h := m.surface.Bounds()
	return model.Point{
		X: (float64(cx) + 0.5) * float64(w) / float64(cols),
		Y: (float64(cy) + 0.5) * float64(h) / float64(rows),
	}, true
}

// statusText describes what the pipeline is doing.
func (m Model) statusText() string {
	switch m.pipeline.State() {
	case inference.StateIdle:
		return m.spinner.View() + " loading model"
	case inference.StateUnavailable:
		return m.theme.StatusError.Render("model unavailable")
	}
	if m.pipeline.Busy() {
		return m.spinner.View() + " classifying"
	}
	return m.theme.StatusSuccess.Render("ready")
}

func (m Model) errorText() string {
	if m.lastError == nil {
		return ""
	}
	return m.theme.StatusError.Render(fmt.Sprintf("%s: %v", m.errorContext, m.lastError))
}
