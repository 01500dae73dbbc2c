package tui

import (
	"context"
	"time"

	"github.com/Veraticus/digitpad/internal/inference"
	tea "github.com/charmbracelet/bubbletea"
)

const loadTimeout = 2 * time.Minute

// loadModel loads the classifier off the event loop.
func (m Model) loadModel() tea.Cmd {
	pipeline, path := m.pipeline, m.config.ModelPath
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		return modelLoadedMsg{err: pipeline.Load(ctx, path)}
	}
}

// waitForPrediction pulls the next prediction from the sink.
func waitForPrediction(sink *inference.ChanSink) tea.Cmd {
	if sink == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-sink.Predictions
		if !ok {
			return sinkClosedMsg{}
		}
		return predictionMsg{prediction: p}
	}
}

// waitForError pulls the next pipeline error from the sink.
func waitForError(sink *inference.ChanSink) tea.Cmd {
	if sink == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-sink.Errors
		if !ok {
			return sinkClosedMsg{}
		}
		return inferenceErrorMsg{err: err}
	}
}

// showError reports a local failure, such as a rejected stroke width.
func showError(err error, context string) tea.Cmd {
	return func() tea.Msg {
		return errorMsg{err: err, context: context}
	}
}
