package inference

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Publish(model.Prediction{Label: 4, Confidence: 0.9, Trigger: model.TriggerDebounce})
	sink.Report(errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "label=4")
	assert.Contains(t, out, "trigger=debounce")
	assert.Contains(t, out, "error=boom")
}

func TestMultiSink(t *testing.T) {
	first, second := &recordingSink{}, &recordingSink{}
	sink := MultiSink{first, second}

	sink.Publish(model.UnknownPrediction(model.TriggerReset))
	sink.Report(errors.New("x"))

	for _, s := range []*recordingSink{first, second} {
		assert.Len(t, s.Predictions(), 1)
		assert.Len(t, s.Errors(), 1)
	}
}

func TestFuncSink(t *testing.T) {
	var got []int
	sink := FuncSink{OnPrediction: func(p model.Prediction) { got = append(got, p.Label) }}

	sink.Publish(model.Prediction{Label: 2})
	sink.Report(errors.New("ignored"))
	assert.Equal(t, []int{2}, got)
}

func TestChanSink(t *testing.T) {
	sink := NewChanSink(1)

	sink.Publish(model.Prediction{Label: 6})
	sink.Report(errors.New("first"))
	sink.Report(errors.New("dropped"))

	p := <-sink.Predictions
	assert.Equal(t, 6, p.Label)
	err := <-sink.Errors
	require.Error(t, err)
	assert.Equal(t, "first", err.Error())

	sink.Close()
	sink.Close()
	_, open := <-sink.Predictions
	assert.False(t, open)
}

func TestChanSinkKeepsNewestWhenFull(t *testing.T) {
	sink := NewChanSink(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for label := range 5 {
			sink.Publish(model.Prediction{Label: label})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}

	require.Len(t, sink.Predictions, 2)
	assert.Equal(t, 3, (<-sink.Predictions).Label)
	assert.Equal(t, 4, (<-sink.Predictions).Label)
}

func TestChanSinkNeverBlocksReset(t *testing.T) {
	sink := NewChanSink(0)
	p := New(&countingSampler{}, NewMockClassifier(), sink, WithLogger(common.DiscardLogger()))
	require.NoError(t, p.Load(context.Background(), "m"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 20 {
			p.RunInference()
			p.Reset()
		}
		p.Wait()
		p.Close()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline blocked on an unread sink")
	}

	require.Len(t, sink.Predictions, 1)
	last := <-sink.Predictions
	assert.Equal(t, model.TriggerReset, last.Trigger, "the final reset is what remains")
}
