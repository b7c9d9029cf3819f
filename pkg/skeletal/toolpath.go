package skeletal

import (
	"github.com/chazu/beadwork/pkg/geom"
)

// ExtrusionJunction is one vertex of a variable-width toolpath: where the
// line passes, how wide it is there, and which perimeter it belongs to.
type ExtrusionJunction struct {
	P geom.Point
	// W is the line width at this junction.
	W geom.Coord
	// PerimeterIndex counts perimeters inward from the outline, 0 being
	// the outermost.
	PerimeterIndex int
}

// ExtrusionLine is a polyline of junctions with a width at each vertex.
// Odd lines are the single center beads of locally odd bead counts; they
// are printed once rather than as a closed loop.
type ExtrusionLine struct {
	Inset     int
	IsOdd     bool
	Junctions []ExtrusionJunction
}

// Length is the total polyline length.
func (l *ExtrusionLine) Length() geom.Coord {
	var total geom.Coord
	for i := 1; i < len(l.Junctions); i++ {
		total += l.Junctions[i].P.Sub(l.Junctions[i-1].P).Size()
	}
	return total
}

// VariableWidthLines groups the extrusion lines of one perimeter index.
type VariableWidthLines []ExtrusionLine
