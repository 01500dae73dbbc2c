package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// shades maps intensity to a glyph, darkest first.
var shades = []rune(" ░▒▓█")

const probabilityBarWidth = 16

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.Title.Render("digitpad"),
		"  ",
		m.theme.Subtitle.Render("draw a digit with the mouse"),
	)

	panel := m.renderPanel()
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderCanvas(), " ", panel)

	lines := []string{title, body, m.renderStatusBar()}
	if m.config.ShowHelp {
		lines = append(lines, m.help.View(m.keymap))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderCanvas draws the surface at cell resolution.
func (m Model) renderCanvas() string {
	raster, err := m.surface.SampleDownscaled(m.config.CanvasCols, m.config.CanvasRows)
	if err != nil {
		return m.theme.StatusError.Render(err.Error())
	}
	return m.theme.Canvas.Render(shadeRaster(raster, 1))
}

// renderPanel shows the prediction, per-digit probabilities and the model
// input.
func (m Model) renderPanel() string {
	sections := []string{
		m.theme.Bold.Render("Prediction"),
		m.theme.Label.Render(m.prediction.String()),
		m.renderConfidence(),
		"",
		m.renderProbabilities(),
	}

	if m.config.ShowInput {
		raster, err := m.surface.SampleDownscaled(model.InputWidth, model.InputHeight)
		if err == nil {
			sections = append(sections,
				"",
				m.theme.Bold.Render("Model input"),
				shadeRaster(raster, 2))
		}
	}

	return m.theme.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderConfidence() string {
	if !m.prediction.Known() {
		return m.progress.ViewAs(0) + lipgloss.NewStyle().Foreground(m.theme.Muted).Render("   --")
	}
	return m.progress.ViewAs(m.prediction.Confidence) + fmt.Sprintf(" %5.1f%%", m.prediction.Confidence*100)
}

// renderProbabilities draws one bar per digit, highlighting the winner.
func (m Model) renderProbabilities() string {
	rows := make([]string, 0, model.NumClasses)
	for d := 0; d < model.NumClasses; d++ {
		var p float64
		if d < len(m.prediction.Probabilities) {
			p = m.prediction.Probabilities[d]
		}
		filled := int(p*probabilityBarWidth + 0.5)
		bar := strings.Repeat("█", filled) + strings.Repeat("·", probabilityBarWidth-filled)
		row := fmt.Sprintf("%d %s %.2f", d, bar, p)
		if d == m.prediction.Label {
			row = m.theme.Highlighted.Render(row)
		} else {
			row = lipgloss.NewStyle().Foreground(m.theme.Muted).Render(row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

// renderStatusBar shows the tool, width, pipeline state and the last error.
func (m Model) renderStatusBar() string {
	left := fmt.Sprintf("tool: %s  width: %.0f  ", m.surface.Tool(), m.surface.StrokeWidth())
	parts := []string{m.theme.Normal.Render(left), m.statusText()}
	if e := m.errorText(); e != "" {
		parts = append(parts, "  ", e)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// shadeRaster renders intensities as block glyphs. rowsPerLine > 1 folds
// rows together by taking their maximum.
func shadeRaster(r model.Raster, rowsPerLine int) string {
	if rowsPerLine < 1 {
		rowsPerLine = 1
	}
	var b strings.Builder
	for y := 0; y < r.Height; y += rowsPerLine {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < r.Width; x++ {
			var v float32
			for dy := 0; dy < rowsPerLine && y+dy < r.Height; dy++ {
				v = max(v, r.At(x, y+dy))
			}
			b.WriteRune(shade(v))
		}
	}
	return b.String()
}

func shade(v float32) rune {
	if v <= 0 {
		return shades[0]
	}
	i := int(v*float32(len(shades)-1) + 0.5)
	if i < 1 {
		i = 1
	}
	if i >= len(shades) {
		i = len(shades) - 1
	}
	return shades[i]
}
