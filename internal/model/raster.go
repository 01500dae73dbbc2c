package model

import "math"

// Model input geometry expected by the digit classifier.
const (
	InputWidth  = 28
	InputHeight = 28
	InputSize   = InputWidth * InputHeight
	NumClasses  = 10
)

// InputShape is the NCHW tensor shape handed to the classifier.
var InputShape = []int64{1, 1, InputHeight, InputWidth}

// Raster is a row-major grid of ink intensities in [0, 1].
// Zero is background.
type Raster struct {
	Pix    []float32
	Width  int
	Height int
}

// NewRaster allocates a blank raster.
func NewRaster(width, height int) Raster {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Raster{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// At returns the intensity at (x, y), or 0 outside the grid.
func (r Raster) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return 0
	}
	return r.Pix[y*r.Width+x]
}

// Set stores v at (x, y), clamped to [0, 1]. Out of range writes are dropped.
func (r Raster) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return
	}
	switch {
	case math.IsNaN(float64(v)) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	r.Pix[y*r.Width+x] = v
}

// Flatten returns a row-major copy suitable as classifier input.
func (r Raster) Flatten() []float32 {
	out := make([]float32, len(r.Pix))
	copy(out, r.Pix)
	return out
}

// Sum returns the total ink in the raster.
func (r Raster) Sum() float64 {
	var total float64
	for _, v := range r.Pix {
		total += float64(v)
	}
	return total
}

// IsBlank reports whether no cell carries ink.
func (r Raster) IsBlank() bool {
	for _, v := range r.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// Row returns a copy of row y.
func (r Raster) Row(y int) []float32 {
	if y < 0 || y >= r.Height {
		return nil
	}
	out := make([]float32, r.Width)
	copy(out, r.Pix[y*r.Width:(y+1)*r.Width])
	return out
}
