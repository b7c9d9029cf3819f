package skeletal

import (
	"io"
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/beadwork/pkg/beading"
	"github.com/chazu/beadwork/pkg/geom"
	"github.com/chazu/beadwork/pkg/graph"
	"github.com/chazu/beadwork/pkg/voronoi"
)

// Params are the tuning knobs of the generator. There are no defaults; the
// caller decides every one of them, typically from print settings.
type Params struct {
	// TransitioningAngle is the opening angle, in radians, below which a
	// wedge region still counts as central.
	TransitioningAngle float64
	// DiscretizationStepSize is the sampling step for curved skeleton
	// edges and for extra support ribs.
	DiscretizationStepSize geom.Coord
	// TransitionFilterDist is how far apart two opposite bead-count
	// transitions may sit and still cancel each other out.
	TransitionFilterDist geom.Coord
	// AllowedFilterDeviation caps the width deviation such a cancellation
	// may introduce.
	AllowedFilterDeviation geom.Coord
	// BeadingPropagationTransitionDist is the distance over which beadings
	// propagated from above blend with the local ones.
	BeadingPropagationTransitionDist geom.Coord
}

// Distances and caps fixed by the algorithm rather than by print settings.
const (
	// centralFilterDist is the max length of a central dead-end branch
	// that gets dissolved.
	centralFilterDist = geom.Coord(20)
	// snapDist is how close to an existing node a transition end must be
	// to snap onto it instead of splitting the edge.
	snapDist = geom.Coord(20)
	// noncentralRegionFilterDist bounds the upward walk when re-marking
	// filtered noncentral pockets.
	noncentralRegionFilterDist = geom.Coord(400)
	// nearbyBeadingDist bounds the search for a neighbouring node's
	// beading when a node has none of its own.
	nearbyBeadingDist = geom.Coord(100)
	// beadSearchMax caps that search's iteration count.
	beadSearchMax = 1000
	// traversalStepCap caps every other graph walk so a malformed graph
	// cannot hang the pipeline.
	traversalStepCap = 1000
)

const maxCoord = geom.Coord(math.MaxInt64)

// transitionMiddle is the point along an edge where the optimal bead count
// steps from lowerBeadCount to one more.
type transitionMiddle struct {
	pos            geom.Coord // distance from the edge's From node
	lowerBeadCount int
	// featureRadius is the boundary distance at which this transition
	// takes place, for deviation checks when filtering.
	featureRadius geom.Coord
}

// transitionEnd is one endpoint of a stretched-out transition zone.
type transitionEnd struct {
	pos            geom.Coord // distance from the (upward) edge's From node
	lowerBeadCount int
	isLowerEnd     bool // the end closer to the thin side
}

// beadingPropagation is a node's beading plus how far it has traveled from
// where it was computed, so blends can be weighted by distance.
type beadingPropagation struct {
	beading              beading.Beading
	distToBottomSource   geom.Coord
	distFromTopSource    geom.Coord
	upwardPropagatedOnly bool
}

// Generator turns a shape into variable-width toolpaths: it builds the
// skeletal trapezoidation of the outline, classifies its central skeleton,
// spreads bead-count transitions out along it and extracts one toolpath
// junction per bead per rib.
type Generator struct {
	strategy beading.Strategy
	params   Params
	log      *slog.Logger

	graph *graph.Graph

	// transitions and transitionEnds live on the upward half of each edge
	// pair, ordered by position along the edge. An edge never carries both
	// at the same time.
	transitions    map[*graph.Edge][]transitionMiddle
	transitionEnds map[*graph.Edge][]transitionEnd
	junctions      map[*graph.Edge][]ExtrusionJunction
	beadings       map[*graph.Node]*beadingPropagation

	toolpaths []VariableWidthLines
}

// New constructs the trapezoidation graph for the shape. The outer contour
// winds counter-clockwise, holes clockwise. A nil logger discards.
func New(polys geom.Polygons, strategy beading.Strategy, params Params, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	g := &Generator{
		strategy:       strategy,
		params:         params,
		log:            logger,
		graph:          &graph.Graph{},
		transitions:    make(map[*graph.Edge][]transitionMiddle),
		transitionEnds: make(map[*graph.Edge][]transitionEnd),
		junctions:      make(map[*graph.Edge][]ExtrusionJunction),
		beadings:       make(map[*graph.Node]*beadingPropagation),
	}
	diagram, err := voronoi.Construct(polys)
	if err != nil {
		return nil, errors.Wrap(err, "voronoi construction")
	}
	if err := g.constructFromVoronoi(diagram); err != nil {
		return nil, err
	}
	return g, nil
}

// GenerateToolpaths runs the full pipeline and returns the toolpaths
// grouped by perimeter index. With filterOutermostCentral set, central
// skeleton bits bordering the outline directly are dropped, for use when
// the outermost wall is printed at fixed width anyway.
func (g *Generator) GenerateToolpaths(filterOutermostCentral bool) ([]VariableWidthLines, error) {
	g.updateIsCentral()
	g.filterCentral(centralFilterDist)
	if filterOutermostCentral {
		g.filterOuterCentral()
	}
	g.updateBeadCount()
	g.filterNoncentralRegions()

	if err := g.generateTransitioningRibs(); err != nil {
		return nil, err
	}
	g.generateExtraRibs()
	g.generateSegments()
	return g.toolpaths, nil
}
