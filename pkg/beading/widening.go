package beading

import (
	"fmt"

	"github.com/chazu/beadwork/pkg/geom"
)

// Widening wraps another strategy to keep very thin pieces printable: any
// thickness of at least MinInputWidth gets a single bead of at least
// MinOutputWidth, over-extruding rather than leaving a gap. Thinner pieces
// are dropped entirely.
type Widening struct {
	Parent         Strategy
	MinInputWidth  geom.Coord
	MinOutputWidth geom.Coord
}

// NewWidening wraps parent with thin-piece handling.
func NewWidening(parent Strategy, minInput, minOutput geom.Coord) *Widening {
	return &Widening{Parent: parent, MinInputWidth: minInput, MinOutputWidth: minOutput}
}

func (w *Widening) String() string {
	return fmt.Sprintf("widening(%s)", w.Parent)
}

func (w *Widening) Compute(thickness geom.Coord, beadCount int) Beading {
	if thickness < w.Parent.OptimalThickness(1) {
		ret := Beading{TotalThickness: thickness}
		if thickness >= w.MinInputWidth {
			width := thickness
			if width < w.MinOutputWidth {
				width = w.MinOutputWidth
			}
			ret.BeadWidths = []geom.Coord{width}
			ret.ToolpathLocations = []geom.Coord{thickness / 2}
		} else {
			ret.LeftOver = thickness
		}
		return ret
	}
	return w.Parent.Compute(thickness, beadCount)
}

func (w *Widening) OptimalThickness(beadCount int) geom.Coord {
	return w.Parent.OptimalThickness(beadCount)
}

func (w *Widening) TransitionThickness(lowerBeadCount int) geom.Coord {
	if lowerBeadCount == 0 {
		return w.MinInputWidth
	}
	return w.Parent.TransitionThickness(lowerBeadCount)
}

func (w *Widening) OptimalBeadCount(thickness geom.Coord) int {
	if thickness < w.MinInputWidth {
		return 0
	}
	count := w.Parent.OptimalBeadCount(thickness)
	if count < 1 {
		count = 1
	}
	return count
}

func (w *Widening) TransitioningLength(lowerBeadCount int) geom.Coord {
	return w.Parent.TransitioningLength(lowerBeadCount)
}

func (w *Widening) TransitionAnchorPos(lowerBeadCount int) float64 {
	return w.Parent.TransitionAnchorPos(lowerBeadCount)
}

// NonlinearThicknesses adds the widening clamp as an extra support point
// on top of the parent's.
func (w *Widening) NonlinearThicknesses(lowerBeadCount int) []geom.Coord {
	ret := []geom.Coord{w.MinOutputWidth}
	return append(ret, w.Parent.NonlinearThicknesses(lowerBeadCount)...)
}
