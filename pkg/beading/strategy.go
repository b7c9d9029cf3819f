// Package beading decides how many extrusion beads fill a local part
// thickness and how wide each bead is.
//
// A Strategy maps a thickness to a bead count and a Beading, the concrete
// widths and center locations of each bead. Strategies also describe how
// the bead count may change along a part: the thickness at which a count
// transition happens, how long the transition zone is, and where in the
// zone the count switches.
package beading

import (
	"github.com/chazu/beadwork/pkg/geom"
)

// Beading is the cross-sectional fill of one local thickness: the widths
// of the beads and the positions of their centerlines, both measured from
// one side of the part across to the other.
type Beading struct {
	// TotalThickness is the diameter this beading was computed for.
	TotalThickness geom.Coord
	// BeadWidths holds one width per bead, innermost last.
	BeadWidths []geom.Coord
	// ToolpathLocations holds the distance of each bead's centerline from
	// the boundary, aligned with BeadWidths.
	ToolpathLocations []geom.Coord
	// LeftOver is thickness the strategy chose not to cover with any bead.
	LeftOver geom.Coord
}

// Strategy decides bead counts and widths. Thicknesses are diameters: the
// full local width of the part, twice the distance to the boundary.
type Strategy interface {
	// Compute fills a thickness with the given number of beads.
	Compute(thickness geom.Coord, beadCount int) Beading

	// OptimalThickness is the thickness best filled by beadCount beads.
	OptimalThickness(beadCount int) geom.Coord

	// TransitionThickness is the thickness at which the optimal count
	// steps from lowerBeadCount to one more.
	TransitionThickness(lowerBeadCount int) geom.Coord

	// OptimalBeadCount is the preferred number of beads for a thickness.
	OptimalBeadCount(thickness geom.Coord) int

	// TransitioningLength is the length over which a transition between
	// lowerBeadCount and lowerBeadCount+1 beads is spread.
	TransitioningLength(lowerBeadCount int) geom.Coord

	// TransitionAnchorPos is where in the transition zone the bead count
	// actually switches, as a fraction of TransitioningLength measured
	// from the thin end.
	TransitionAnchorPos(lowerBeadCount int) float64

	// NonlinearThicknesses lists thicknesses in the transition range at
	// which bead widths or locations change non-linearly, as extra
	// support positions for discretization.
	NonlinearThicknesses(lowerBeadCount int) []geom.Coord

	// String names the strategy for logs.
	String() string
}

// anchorPos is the shared anchor computation: the fraction of the
// transition at which the thickness passes the transition point, measured
// back from the thick end.
func anchorPos(s Strategy, lowerBeadCount int) float64 {
	lower := s.OptimalThickness(lowerBeadCount)
	upper := s.OptimalThickness(lowerBeadCount + 1)
	transition := s.TransitionThickness(lowerBeadCount)
	if upper == lower {
		return 0.5
	}
	return 1.0 - float64(transition-lower)/float64(upper-lower)
}
