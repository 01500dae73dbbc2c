// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Point is a surface-local coordinate in pixels, origin at the top-left.
type Point struct {
	X float64
	Y float64
}

// Valid reports whether both coordinates are finite.
func (p Point) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Tool selects what a stroke deposits on the surface.
type Tool int

// Tool constants.
const (
	ToolInk Tool = iota
	ToolErase
)

// Intensity returns the raster value the tool paints with.
func (t Tool) Intensity() float64 {
	if t == ToolErase {
		return 0.0
	}
	return 1.0
}

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	return t == ToolInk || t == ToolErase
}

func (t Tool) String() string {
	switch t {
	case ToolInk:
		return "ink"
	case ToolErase:
		return "erase"
	default:
		return fmt.Sprintf("tool(%d)", int(t))
	}
}

// ParseTool accepts the tool names used by the pads and stroke scripts.
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ink", "brush", "pen":
		return ToolInk, nil
	case "erase", "eraser":
		return ToolErase, nil
	default:
		return ToolInk, fmt.Errorf("unknown tool %q", s)
	}
}
