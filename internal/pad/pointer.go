package pad

import "github.com/Veraticus/digitpad/internal/model"

// PointerState is one polled sample of a pointing device in surface
// coordinates.
type PointerState struct {
	X    float64
	Y    float64
	Down bool
}

// Touch is one active touch point in surface coordinates.
type Touch struct {
	ID int
	X  float64
	Y  float64
}

// PointerSelector merges the mouse and touches into a single pointer. The
// first touch to land is followed until it lifts; other touches are ignored.
// While no touch is tracked the mouse is used.
type PointerSelector struct {
	touchID  int
	touching bool
}

// Select returns the pointer state for this frame.
func (s *PointerSelector) Select(mouse PointerState, touches []Touch) PointerState {
	if s.touching {
		for _, t := range touches {
			if t.ID == s.touchID {
				return PointerState{X: t.X, Y: t.Y, Down: true}
			}
		}
		s.touching = false
		return PointerState{Down: false}
	}

	if len(touches) > 0 {
		s.touchID = touches[0].ID
		s.touching = true
		return PointerState{X: touches[0].X, Y: touches[0].Y, Down: true}
	}
	return mouse
}

// Poll feeds one polled pointer sample into the controller, turning edges
// into press and release and position changes into moves. Presses outside
// the surface are ignored; a held pointer may leave and re-enter.
func (c *Controller) Poll(state PointerState) error {
	p := model.Point{X: state.X, Y: state.Y}

	switch {
	case state.Down && !c.drawing:
		if !c.inside(p) {
			return nil
		}
		c.last = p
		return c.Press(p)

	case state.Down && c.drawing:
		if p == c.last {
			return nil
		}
		c.last = p
		return c.Move(p)

	case !state.Down && c.drawing:
		c.Release()
	}
	return nil
}

func (c *Controller) inside(p model.Point) bool {
	w, h := c.surface.Bounds()
	return p.X >= 0 && p.Y >= 0 && p.X < float64(w) && p.Y < float64(h)
}
