package beading

import (
	"fmt"
	"math"

	"github.com/chazu/beadwork/pkg/geom"
)

// Distributed fills a thickness with beads close to an optimal width,
// spreading the surplus or deficit over the beads with a weight that
// favors the innermost ones.
type Distributed struct {
	// OptimalWidth is the preferred bead width.
	OptimalWidth geom.Coord
	// WallSplitMiddleThreshold is the fraction of OptimalWidth the middle
	// bead must reach before an odd count splits into an even one.
	WallSplitMiddleThreshold float64
	// WallAddMiddleThreshold is the fraction of OptimalWidth a new middle
	// bead must reach before it is added to an even count.
	WallAddMiddleThreshold float64
	// TransitioningLength is the distance over which a bead-count change
	// is spread.
	TransitionLength geom.Coord
	// oneOverDistributionRadius2 weights how far from the middle bead the
	// width surplus is still distributed.
	oneOverDistributionRadius2 float64
}

// NewDistributed builds the default strategy. distributionRadius is in
// beads: how many beads around the middle absorb a width surplus.
func NewDistributed(optimalWidth, transitionLength geom.Coord, splitThreshold, addThreshold, distributionRadius float64) *Distributed {
	d := &Distributed{
		OptimalWidth:             optimalWidth,
		WallSplitMiddleThreshold: splitThreshold,
		WallAddMiddleThreshold:   addThreshold,
		TransitionLength:         transitionLength,
	}
	if distributionRadius < 0.5 {
		distributionRadius = 0.5
	}
	d.oneOverDistributionRadius2 = 1.0 / (distributionRadius * distributionRadius)
	return d
}

func (d *Distributed) String() string {
	return fmt.Sprintf("distributed(w=%d)", d.OptimalWidth)
}

// OptimalThickness is simply count times the optimal width.
func (d *Distributed) OptimalThickness(beadCount int) geom.Coord {
	return geom.Coord(beadCount) * d.OptimalWidth
}

// TransitionThickness applies the split threshold when the lower count is
// odd (the middle bead splits in two) and the add threshold when it is
// even (a new middle bead appears).
func (d *Distributed) TransitionThickness(lowerBeadCount int) geom.Coord {
	threshold := d.WallAddMiddleThreshold
	if lowerBeadCount%2 == 1 {
		threshold = d.WallSplitMiddleThreshold
	}
	return d.OptimalThickness(lowerBeadCount) + geom.Coord(math.Round(threshold*float64(d.OptimalWidth)))
}

func (d *Distributed) OptimalBeadCount(thickness geom.Coord) int {
	if thickness <= 0 {
		return 0
	}
	naive := thickness / d.OptimalWidth
	remainder := thickness - naive*d.OptimalWidth
	threshold := d.WallAddMiddleThreshold
	if naive%2 == 1 {
		threshold = d.WallSplitMiddleThreshold
	}
	if float64(remainder) > threshold*float64(d.OptimalWidth) {
		naive++
	}
	return int(naive)
}

func (d *Distributed) TransitioningLength(lowerBeadCount int) geom.Coord {
	if lowerBeadCount == 0 {
		// Going to or from nothing happens over next to no length.
		return 10
	}
	return d.TransitionLength
}

func (d *Distributed) TransitionAnchorPos(lowerBeadCount int) float64 {
	return anchorPos(d, lowerBeadCount)
}

func (d *Distributed) NonlinearThicknesses(lowerBeadCount int) []geom.Coord {
	return nil
}

func (d *Distributed) Compute(thickness geom.Coord, beadCount int) Beading {
	ret := Beading{TotalThickness: thickness}
	switch {
	case beadCount > 2:
		toBeDivided := thickness - geom.Coord(beadCount)*d.OptimalWidth
		middle := float64(beadCount-1) / 2

		weight := func(beadIdx int) float64 {
			dev := float64(beadIdx) - middle
			return math.Max(0, 1.0-d.oneOverDistributionRadius2*dev*dev)
		}
		var weightSum float64
		for i := 0; i < beadCount; i++ {
			weightSum += weight(i)
		}

		ret.BeadWidths = make([]geom.Coord, beadCount)
		ret.ToolpathLocations = make([]geom.Coord, 0, beadCount)
		for i := 0; i < beadCount; i++ {
			splitup := weight(i) / weightSum
			ret.BeadWidths[i] = d.OptimalWidth + geom.Coord(math.Round(splitup*float64(toBeDivided)))
		}
		x := geom.Coord(0)
		for i := 0; i < beadCount; i++ {
			ret.ToolpathLocations = append(ret.ToolpathLocations, x+ret.BeadWidths[i]/2)
			x += ret.BeadWidths[i]
		}
	case beadCount == 2:
		width := thickness / 2
		ret.BeadWidths = []geom.Coord{width, width}
		ret.ToolpathLocations = []geom.Coord{width / 2, thickness - width/2}
	case beadCount == 1:
		ret.BeadWidths = []geom.Coord{thickness}
		ret.ToolpathLocations = []geom.Coord{thickness / 2}
	default:
		ret.LeftOver = thickness
	}
	return ret
}
