package inference

import (
	"context"
	"sync"

	"github.com/Veraticus/digitpad/internal/model"
)

// MockClassifier is a test implementation of service.Classifier.
// It returns fixed scores and records every call.
type MockClassifier struct {
	LoadErr error
	RunErr  error
	// Gate, when set, blocks each Run until a value is received or the
	// context ends.
	Gate   chan struct{}
	Scores []float32
	calls  []MockRunCall
	loads  []string
	mu     sync.Mutex
}

// MockRunCall records one Run invocation.
type MockRunCall struct {
	Input []float32
	Shape []int64
}

// NewMockClassifier creates a mock that answers every run with scores.
func NewMockClassifier(scores ...float32) *MockClassifier {
	if len(scores) == 0 {
		scores = make([]float32, model.NumClasses)
	}
	return &MockClassifier{Scores: scores}
}

// Load records the path and returns LoadErr.
func (m *MockClassifier) Load(_ context.Context, modelPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, modelPath)
	return m.LoadErr
}

// Run records the call and returns a copy of Scores, or RunErr.
func (m *MockClassifier) Run(ctx context.Context, input []float32, shape []int64) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockRunCall{
		Input: append([]float32(nil), input...),
		Shape: append([]int64(nil), shape...),
	})
	gate := m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RunErr != nil {
		return nil, m.RunErr
	}
	return append([]float32(nil), m.Scores...), nil
}

// Close does nothing.
func (m *MockClassifier) Close() error {
	return nil
}

// SetScores replaces the scores returned by later runs.
func (m *MockClassifier) SetScores(scores ...float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scores = scores
}

// SetRunErr replaces the error returned by later runs.
func (m *MockClassifier) SetRunErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunErr = err
}

// RunCount returns the number of Run calls.
func (m *MockClassifier) RunCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded Run calls.
func (m *MockClassifier) Calls() []MockRunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRunCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Loads returns the paths passed to Load.
func (m *MockClassifier) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}
