package tui

import "github.com/Veraticus/digitpad/internal/model"

// Pipeline output, pulled from the ChanSink.
type predictionMsg struct {
	prediction model.Prediction
}

type inferenceErrorMsg struct {
	err error
}

// sinkClosedMsg stops the pull loop.
type sinkClosedMsg struct{}

// modelLoadedMsg reports the result of the startup Load.
type modelLoadedMsg struct {
	err error
}

// Error handling.
type errorMsg struct {
	err     error
	context string
}
