package surface

import (
	"fmt"
	"image"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Resampler names a downscaling kernel.
//
// All kernels widen their support by the shrink factor, so every source pixel
// contributes to some destination cell and a one pixel stroke survives a 10x
// reduction as a faint but nonzero line.
type Resampler string

// Available resamplers.
const (
	ResampleBilinear   Resampler = "bilinear"
	ResampleCatmullRom Resampler = "catmullrom"
	ResampleLanczos    Resampler = "lanczos"
	ResampleArea       Resampler = "area"
)

// ParseResampler validates a resampler name. Empty selects bilinear.
func ParseResampler(name string) (Resampler, error) {
	switch r := Resampler(strings.ToLower(strings.TrimSpace(name))); r {
	case "":
		return ResampleBilinear, nil
	case ResampleBilinear, ResampleCatmullRom, ResampleLanczos, ResampleArea:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resampler %q", name)
	}
}

// Scale resizes src to width x height.
func (r Resampler) Scale(src image.Image, width, height int) image.Image {
	switch r {
	case ResampleLanczos:
		return resize.Resize(uint(width), uint(height), src, resize.Lanczos3)
	case ResampleArea:
		return resize.Resize(uint(width), uint(height), src, resize.Bilinear)
	case ResampleCatmullRom:
		return scaleWith(draw.CatmullRom, src, width, height)
	default:
		return scaleWith(draw.BiLinear, src, width, height)
	}
}

func scaleWith(kernel *draw.Kernel, src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
