package model

import (
	"strconv"
	"time"
)

// UnknownLabel marks a prediction that carries no digit.
const UnknownLabel = -1

// Trigger records why an inference run happened.
type Trigger string

// Trigger constants.
const (
	TriggerDebounce  Trigger = "debounce"
	TriggerStrokeEnd Trigger = "stroke_end"
	TriggerManual    Trigger = "manual"
	TriggerReset     Trigger = "reset"
)

// ClassScores are the raw logits returned by a classifier, one per class.
type ClassScores []float32

// Prediction is the decoded classifier output shown to the user.
type Prediction struct {
	At            time.Time
	Trigger       Trigger
	Probabilities []float64
	Confidence    float64
	Label         int
}

// UnknownPrediction returns the placeholder shown before any run completes.
func UnknownPrediction(trigger Trigger) Prediction {
	return Prediction{
		Label:   UnknownLabel,
		Trigger: trigger,
		At:      time.Now(),
	}
}

// Known reports whether the prediction names a digit.
func (p Prediction) Known() bool {
	return p.Label >= 0
}

// String renders the label, or "?" when unknown.
func (p Prediction) String() string {
	if !p.Known() {
		return "?"
	}
	return strconv.Itoa(p.Label)
}
