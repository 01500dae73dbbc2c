package surface

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSurface(t *testing.T, opts ...Option) *Surface {
	t.Helper()
	s, err := New(280, 280, opts...)
	require.NoError(t, err)
	return s
}

func drawPolyline(t *testing.T, s *Surface, points ...model.Point) {
	t.Helper()
	require.NoError(t, s.BeginStroke(points[0]))
	for _, p := range points[1:] {
		require.NoError(t, s.ExtendStroke(p))
	}
	s.EndStroke()
}

func TestNewSurface(t *testing.T) {
	s := newTestSurface(t)

	w, h := s.Bounds()
	assert.Equal(t, 280, w)
	assert.Equal(t, 280, h)
	assert.Equal(t, DefaultStrokeWidth, s.StrokeWidth())
	assert.Equal(t, model.ToolInk, s.Tool())
	assert.False(t, s.Active())

	sample, err := s.SampleDownscaled(model.InputWidth, model.InputHeight)
	require.NoError(t, err)
	assert.True(t, sample.IsBlank(), "a new surface has no ink")

	_, err = New(0, 10)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = New(10, 10, WithStrokeWidth(-2))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = New(10, 10, WithResampler("nearest"))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestStrokeSession(t *testing.T) {
	s := newTestSurface(t)

	t.Run("extend without begin is a no-op", func(t *testing.T) {
		require.NoError(t, s.ExtendStroke(model.Point{X: 100, Y: 100}))
		sample, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		assert.True(t, sample.IsBlank())
	})

	t.Run("begin alone draws nothing", func(t *testing.T) {
		require.NoError(t, s.BeginStroke(model.Point{X: 50, Y: 50}))
		assert.True(t, s.Active())
		sample, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		assert.True(t, sample.IsBlank())
	})

	t.Run("repeated identical points are legal", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, s.ExtendStroke(model.Point{X: 50, Y: 50}))
		}
		sample, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		assert.True(t, sample.IsBlank())
	})

	t.Run("extend draws a segment", func(t *testing.T) {
		require.NoError(t, s.ExtendStroke(model.Point{X: 150, Y: 50}))
		sample, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		assert.Greater(t, sample.At(10, 5), float32(0.5))
	})

	t.Run("end deactivates", func(t *testing.T) {
		s.EndStroke()
		assert.False(t, s.Active())
		before, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		require.NoError(t, s.ExtendStroke(model.Point{X: 150, Y: 250}))
		after, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		assert.Equal(t, before.Pix, after.Pix)
	})
}

func TestMalformedPointsAreRejected(t *testing.T) {
	s := newTestSurface(t)
	drawPolyline(t, s, model.Point{X: 20, Y: 20}, model.Point{X: 200, Y: 20})
	before := s.Snapshot()

	err := s.BeginStroke(model.Point{X: math.NaN(), Y: 3})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.False(t, s.Active())

	require.NoError(t, s.BeginStroke(model.Point{X: 20, Y: 100}))
	err = s.ExtendStroke(model.Point{X: math.Inf(1), Y: 100})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.True(t, s.Active(), "a rejected point leaves the session alone")

	assert.Equal(t, before.Pix, s.Snapshot().Pix)
}

func TestSetStrokeWidth(t *testing.T) {
	s := newTestSurface(t)

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := s.SetStrokeWidth(bad)
		assert.ErrorIs(t, err, common.ErrInvalidArgument, "width %v", bad)
	}
	assert.Equal(t, DefaultStrokeWidth, s.StrokeWidth(), "rejected widths leave the width unchanged")

	require.NoError(t, s.SetStrokeWidth(4))
	assert.Equal(t, 4.0, s.StrokeWidth())

	thin := newTestSurface(t, WithStrokeWidth(4))
	thick := newTestSurface(t, WithStrokeWidth(30))
	line := []model.Point{{X: 40, Y: 140}, {X: 240, Y: 140}}
	drawPolyline(t, thin, line...)
	drawPolyline(t, thick, line...)

	thinSample, err := thin.SampleDownscaled(28, 28)
	require.NoError(t, err)
	thickSample, err := thick.SampleDownscaled(28, 28)
	require.NoError(t, err)
	assert.Greater(t, thickSample.Sum(), thinSample.Sum()*3)
}

func TestEraseTool(t *testing.T) {
	s := newTestSurface(t)
	drawPolyline(t, s, model.Point{X: 40, Y: 140}, model.Point{X: 240, Y: 140})

	inked, err := s.SampleDownscaled(28, 28)
	require.NoError(t, err)

	require.NoError(t, s.SetTool(model.ToolErase))
	assert.ErrorIs(t, s.SetTool(model.Tool(9)), common.ErrInvalidArgument)
	assert.Equal(t, model.ToolErase, s.Tool())

	// Existing ink is untouched until an eraser stroke crosses it.
	unchanged, err := s.SampleDownscaled(28, 28)
	require.NoError(t, err)
	assert.Equal(t, inked.Pix, unchanged.Pix)

	require.NoError(t, s.SetStrokeWidth(40))
	drawPolyline(t, s, model.Point{X: 20, Y: 140}, model.Point{X: 260, Y: 140})

	erased, err := s.SampleDownscaled(28, 28)
	require.NoError(t, err)
	assert.True(t, erased.IsBlank())
}

func TestClear(t *testing.T) {
	s := newTestSurface(t)
	drawPolyline(t, s,
		model.Point{X: 30, Y: 30},
		model.Point{X: 250, Y: 250},
		model.Point{X: 30, Y: 250},
	)
	require.NoError(t, s.BeginStroke(model.Point{X: 10, Y: 10}))

	s.Clear()

	sample, err := s.SampleDownscaled(model.InputWidth, model.InputHeight)
	require.NoError(t, err)
	require.Len(t, sample.Pix, model.InputSize)
	for i, v := range sample.Pix {
		require.Zerof(t, v, "cell %d not background after clear", i)
	}
	assert.True(t, s.Active(), "clear does not end the stroke")
}

func TestIncrementalStrokeMatchesOneShot(t *testing.T) {
	oneShot := newTestSurface(t)
	drawPolyline(t, oneShot, model.Point{X: 40, Y: 100}, model.Point{X: 240, Y: 100})

	incremental := newTestSurface(t)
	drawPolyline(t, incremental,
		model.Point{X: 40, Y: 100},
		model.Point{X: 90, Y: 100},
		model.Point{X: 140, Y: 100},
		model.Point{X: 140, Y: 100},
		model.Point{X: 240, Y: 100},
	)

	reversed := newTestSurface(t)
	drawPolyline(t, reversed,
		model.Point{X: 240, Y: 100},
		model.Point{X: 170, Y: 100},
		model.Point{X: 40, Y: 100},
	)

	want, err := oneShot.SampleDownscaled(28, 28)
	require.NoError(t, err)

	for name, s := range map[string]*Surface{"incremental": incremental, "reversed": reversed} {
		got, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		for i := range want.Pix {
			assert.InDeltaf(t, want.Pix[i], got.Pix[i], 0.02, "%s: cell %d differs", name, i)
		}
	}
}

func TestSampleDownscaledKeepsStrokes(t *testing.T) {
	t.Run("10px horizontal stroke keeps every crossed column", func(t *testing.T) {
		s := newTestSurface(t, WithStrokeWidth(10))
		drawPolyline(t, s, model.Point{X: 20, Y: 140}, model.Point{X: 260, Y: 140})

		sample, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)

		middle := sample.Row(14)
		for col := 2; col <= 25; col++ {
			assert.Greaterf(t, middle[col], float32(0), "column %d lost the stroke", col)
		}
		assert.Zero(t, sample.At(14, 0), "far rows stay background")
	})

	for _, r := range []Resampler{ResampleBilinear, ResampleCatmullRom, ResampleLanczos, ResampleArea} {
		t.Run("1px line survives with "+string(r), func(t *testing.T) {
			s := newTestSurface(t, WithStrokeWidth(1), WithResampler(r))
			drawPolyline(t, s, model.Point{X: 20, Y: 145}, model.Point{X: 260, Y: 145})

			sample, err := s.SampleDownscaled(28, 28)
			require.NoError(t, err)

			middle := sample.Row(14)
			for col := 3; col <= 24; col++ {
				assert.Greaterf(t, middle[col], float32(0), "column %d lost the line", col)
			}
			for _, v := range sample.Pix {
				require.GreaterOrEqual(t, v, float32(0))
				require.LessOrEqual(t, v, float32(1))
			}
		})
	}

	t.Run("invalid size", func(t *testing.T) {
		s := newTestSurface(t)
		_, err := s.SampleDownscaled(0, 28)
		assert.ErrorIs(t, err, common.ErrInvalidArgument)
	})

	t.Run("same size is a straight copy", func(t *testing.T) {
		s, err := New(28, 28, WithStrokeWidth(2))
		require.NoError(t, err)
		drawPolyline(t, s, model.Point{X: 0, Y: 14}, model.Point{X: 28, Y: 14})
		sample, err := s.SampleDownscaled(28, 28)
		require.NoError(t, err)
		assert.Equal(t, float32(1), sample.At(10, 13))
	})
}

func TestSampleIsACopy(t *testing.T) {
	s := newTestSurface(t)
	first, err := s.SampleDownscaled(28, 28)
	require.NoError(t, err)

	drawPolyline(t, s, model.Point{X: 40, Y: 140}, model.Point{X: 240, Y: 140})

	assert.True(t, first.IsBlank(), "samples do not follow later strokes")
	snap := s.Snapshot()
	snap.Pix[0] = 0xff
	again := s.Snapshot()
	assert.NotEqual(t, snap.Pix[0], again.Pix[0])
}

func TestLoadImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 56, 56))
	for y := 0; y < 56; y++ {
		for x := 0; x < 56; x++ {
			src.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for x := 10; x < 46; x++ {
		for y := 26; y < 30; y++ {
			src.SetGray(x, y, color.Gray{Y: 0})
		}
	}

	s := newTestSurface(t)
	require.NoError(t, s.BeginStroke(model.Point{X: 1, Y: 1}))
	s.LoadImage(src, true)
	assert.False(t, s.Active())

	sample, err := s.SampleDownscaled(28, 28)
	require.NoError(t, err)
	assert.Greater(t, sample.At(14, 14), float32(0.5), "dark ink on paper becomes bright")
	assert.Less(t, sample.At(14, 2), float32(0.05), "paper becomes background")

	// The pen survives a reload.
	drawPolyline(t, s, model.Point{X: 140, Y: 20}, model.Point{X: 140, Y: 60})
	after, err := s.SampleDownscaled(28, 28)
	require.NoError(t, err)
	assert.Greater(t, after.At(14, 3), float32(0.5))
}

func TestParseResampler(t *testing.T) {
	r, err := ParseResampler("")
	require.NoError(t, err)
	assert.Equal(t, ResampleBilinear, r)

	r, err = ParseResampler(" Lanczos ")
	require.NoError(t, err)
	assert.Equal(t, ResampleLanczos, r)

	_, err = ParseResampler("nearest")
	assert.Error(t, err)
}
