// Package layout converts pointer gestures into grid sizes and reflows
// widgets on the dashboard grid. Every function is pure.
package layout

import (
	"fmt"
	"math"

	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// Size bounds of a widget, in grid cells.
const (
	MinWidth  = 1
	MaxWidth  = 8
	MinHeight = 1
	MaxHeight = 6
)

// Direction is the compass handle a resize gesture is dragged from.
type Direction string

const (
	North     Direction = "n"
	South     Direction = "s"
	East      Direction = "e"
	West      Direction = "w"
	NorthEast Direction = "ne"
	NorthWest Direction = "nw"
	SouthEast Direction = "se"
	SouthWest Direction = "sw"
)

// ParseDirection accepts the short compass names.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	switch d {
	case North, South, East, West, NorthEast, NorthWest, SouthEast, SouthWest:
		return d, nil
	}
	return "", fmt.Errorf("unknown resize direction %q", s)
}

// ClampSize clamps width to [1,8] and height to [1,6].
func ClampSize(width, height int) (int, int) {
	return clamp(width, MinWidth, MaxWidth), clamp(height, MinHeight, MaxHeight)
}

// ApplyDirectionalResize converts the pointer delta of a resize gesture into
// a new widget size. The result depends only on the arguments, so the size
// previewed during a drag equals the size committed at its end.
func ApplyDirectionalResize(dir Direction, deltaX, deltaY float64, startWidth, startHeight int, gridSize, sensitivity float64) (int, int) {
	dw := gridUnits(deltaX, gridSize, sensitivity)
	dh := gridUnits(deltaY, gridSize, sensitivity)

	width, height := startWidth, startHeight
	switch dir {
	case East:
		width += dw
	case West:
		width -= dw
	case South:
		height += dh
	case North:
		height -= dh
	case SouthEast:
		width += dw
		height += dh
	case SouthWest:
		width -= dw
		height += dh
	case NorthEast:
		width += dw
		height -= dh
	case NorthWest:
		width -= dw
		height -= dh
	}
	return ClampSize(width, height)
}

// ResetLayout returns a copy of widgets placed row-major on a grid with the
// given number of columns, keeping their order.
func ResetLayout(widgets []widget.Widget, columns int) []widget.Widget {
	if columns < 1 {
		columns = 1
	}
	out := make([]widget.Widget, len(widgets))
	for i, w := range widgets {
		w = w.Clone()
		w.PositionX = i % columns
		w.PositionY = i / columns
		out[i] = w
	}
	return out
}

// Normalize clamps w's size and floors negative coordinates at zero.
func Normalize(w *widget.Widget) {
	w.Width, w.Height = ClampSize(w.Width, w.Height)
	w.PositionX = max(w.PositionX, 0)
	w.PositionY = max(w.PositionY, 0)
}

func gridUnits(delta, gridSize, sensitivity float64) int {
	if gridSize <= 0 {
		return 0
	}
	return int(math.Round(delta * sensitivity / gridSize))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
