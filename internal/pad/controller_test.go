package pad

import (
	"testing"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) StrokeExtended() {
	m.Called()
}

func (m *mockPipeline) StrokeEnded() {
	m.Called()
}

func (m *mockPipeline) RunInference() {
	m.Called()
}

func (m *mockPipeline) Reset() {
	m.Called()
}

func newTestController(t *testing.T) (*Controller, *surface.Surface, *mockPipeline) {
	t.Helper()
	s, err := surface.New(280, 280)
	require.NoError(t, err)

	p := &mockPipeline{}
	brush := config.BrushConfig{Width: 20, Min: 2, Max: 30}
	return NewController(s, p, brush, common.DiscardLogger()), s, p
}

func TestControllerStroke(t *testing.T) {
	c, s, p := newTestController(t)
	p.On("StrokeExtended").Return().Times(3)
	p.On("StrokeEnded").Return().Once()

	require.NoError(t, c.Press(model.Point{X: 40, Y: 140}))
	assert.True(t, c.Drawing())
	assert.True(t, s.Active())

	for _, x := range []float64{100, 160, 240} {
		require.NoError(t, c.Move(model.Point{X: x, Y: 140}))
	}
	assert.True(t, c.Release())
	assert.False(t, c.Drawing())
	assert.False(t, s.Active())

	raster, err := s.SampleDownscaled(model.InputWidth, model.InputHeight)
	require.NoError(t, err)
	assert.Greater(t, raster.At(14, 14), float32(0))

	p.AssertExpectations(t)
}

func TestControllerMoveWithoutPressIsNoop(t *testing.T) {
	c, s, p := newTestController(t)

	require.NoError(t, c.Move(model.Point{X: 10, Y: 10}))
	assert.False(t, c.Release())

	raster, err := s.SampleDownscaled(model.InputWidth, model.InputHeight)
	require.NoError(t, err)
	assert.True(t, raster.IsBlank())
	p.AssertNotCalled(t, "StrokeExtended")
	p.AssertNotCalled(t, "StrokeEnded")
}

func TestControllerRejectsMalformedPoint(t *testing.T) {
	c, _, p := newTestController(t)
	p.On("StrokeExtended").Return()

	err := c.Press(model.Point{X: nan(), Y: 1})
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.False(t, c.Drawing())

	require.NoError(t, c.Press(model.Point{X: 1, Y: 1}))
	err = c.Move(model.Point{X: 1, Y: nan()})
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	p.AssertNotCalled(t, "StrokeExtended")
}

func TestControllerWidthSteps(t *testing.T) {
	c, s, _ := newTestController(t)

	w, err := c.Wider()
	require.NoError(t, err)
	assert.InDelta(t, 22, w, 1e-9)

	for i := 0; i < 10; i++ {
		_, err = c.Wider()
		require.NoError(t, err)
	}
	assert.InDelta(t, 30, s.StrokeWidth(), 1e-9)

	for i := 0; i < 30; i++ {
		_, err = c.Narrower()
		require.NoError(t, err)
	}
	assert.InDelta(t, 2, s.StrokeWidth(), 1e-9)
}

func TestControllerToolClearAndClassify(t *testing.T) {
	c, s, p := newTestController(t)
	p.On("Reset").Return().Once()
	p.On("RunInference").Return().Once()

	require.NoError(t, c.SetTool(model.ToolErase))
	assert.Equal(t, model.ToolErase, s.Tool())
	require.ErrorIs(t, c.SetTool(model.Tool(7)), common.ErrInvalidArgument)

	c.Clear()
	c.Classify()
	p.AssertExpectations(t)
}

func TestControllerSetWidthClamps(t *testing.T) {
	c, s, _ := newTestController(t)

	w, err := c.SetWidth(12)
	require.NoError(t, err)
	assert.InDelta(t, 12, w, 1e-9)

	w, err = c.SetWidth(500)
	require.NoError(t, err)
	assert.InDelta(t, 30, w, 1e-9)
	assert.InDelta(t, 30, s.StrokeWidth(), 1e-9)
}
