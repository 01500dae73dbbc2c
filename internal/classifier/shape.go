package classifier

import (
	"fmt"

	"github.com/Veraticus/digitpad/internal/common"
)

// checkShape verifies that input holds exactly the elements shape describes.
func checkShape(input []float32, shape []int64) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: empty shape", common.ErrShapeMismatch)
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return fmt.Errorf("%w: non-positive dimension in %v", common.ErrShapeMismatch, shape)
		}
		n *= d
	}
	if int64(len(input)) != n {
		return fmt.Errorf("%w: shape %v needs %d values, got %d", common.ErrShapeMismatch, shape, n, len(input))
	}
	return nil
}
