package skeletal

import (
	"math"

	"github.com/pkg/errors"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/beadwork/pkg/geom"
	"github.com/chazu/beadwork/pkg/graph"
	"github.com/chazu/beadwork/pkg/voronoi"
)

// vdBuilder transfers the interior part of the Voronoi diagram into the
// trapezoidation graph, cell by cell. Twins are discovered lazily: the
// first cell to walk a bisector creates unpaired half-edges, the
// neighbouring cell pairs them up.
type vdBuilder struct {
	g     *graph.Graph
	nodes map[*voronoi.Vertex]*graph.Node
	edges map[*voronoi.Edge]*graph.Edge
}

// constructFromVoronoi builds the half-edge graph with boundary ribs from
// the diagram and annotates every node's distance to the boundary.
func (g *Generator) constructFromVoronoi(d *voronoi.Diagram) error {
	b := &vdBuilder{
		g:     g.graph,
		nodes: make(map[*voronoi.Vertex]*graph.Node),
		edges: make(map[*voronoi.Edge]*graph.Edge),
	}

	for _, cell := range d.Cells() {
		if cell.IncidentEdge() == nil {
			continue
		}
		var startSrc, endSrc geom.Point
		var startEdge, endEdge *voronoi.Edge
		if cell.ContainsPoint() {
			keepGoing := computePointCellRange(cell, &startSrc, &endSrc, &startEdge, &endEdge)
			if !keepGoing {
				continue
			}
		} else {
			computeSegmentCellRange(cell, &startSrc, &endSrc, &startEdge, &endEdge)
		}
		if startEdge == nil || endEdge == nil {
			return errors.Errorf("cell at %v does not start and end in a polygon vertex", cell.SourceSegment().From())
		}

		var prev *graph.Edge
		b.transferEdge(g, startSrc, startEdge.Vertex1().P, startEdge, &prev, startSrc, endSrc)
		if prev == nil {
			return errors.Errorf("cell at %v produced no edges", startSrc)
		}
		if starting := b.nodes[startEdge.Vertex0()]; starting != nil {
			starting.DistanceToBoundary = 0
		}
		b.makeRib(&prev, startSrc, endSrc)
		for vd := startEdge.Next(); vd != endEdge; vd = vd.Next() {
			b.transferEdge(g, vd.Vertex0().P, vd.Vertex1().P, vd, &prev, startSrc, endSrc)
			b.makeRib(&prev, startSrc, endSrc)
		}
		b.transferEdge(g, endEdge.Vertex0().P, endSrc, endEdge, &prev, startSrc, endSrc)
		prev.To.DistanceToBoundary = 0
	}

	g.graph.SeparatePointyQuadEndNodes()
	g.graph.CollapseSmallEdges(5)

	// Let every quad be reachable from its start node.
	for _, e := range g.graph.Edges {
		if e.Prev == nil {
			e.From.IncidentEdge = e
		}
	}

	return errors.Wrap(g.graph.Validate(), "trapezoidation construction")
}

// computePointCellRange selects the part of a polygon vertex's cell that
// lies inside the shape. It reports false when the whole cell is outside.
func computePointCellRange(cell *voronoi.Cell, startSrc, endSrc *geom.Point, startEdge, endEdge **voronoi.Edge) bool {
	if cell.HasInfiniteEdge() {
		return false
	}
	sourcePoint := cell.SourcePoint()
	sourceIdx := cell.SourcePointIndex()
	somePoint := cell.IncidentEdge().Vertex0().P
	if somePoint == sourcePoint {
		somePoint = cell.IncidentEdge().Vertex1().P
	}
	// An edge entering the shape at a vertex must come from inside the
	// corner the boundary makes there.
	if !geom.InsideCorner(sourceIdx.Prev().P(), sourceIdx.P(), sourceIdx.Next().P(), somePoint) {
		return false
	}
	vd := cell.IncidentEdge()
	for {
		if vd.Vertex1().P == sourcePoint {
			*startSrc = sourcePoint
			*endSrc = sourcePoint
			*startEdge = vd.Next()
			*endEdge = vd
		}
		vd = vd.Next()
		if vd == cell.IncidentEdge() {
			break
		}
	}
	return true
}

// computeSegmentCellRange selects the inside part of a boundary segment's
// cell. The walk runs from the segment's far end back to its near end.
func computeSegmentCellRange(cell *voronoi.Cell, startSrc, endSrc *geom.Point, startEdge, endEdge **voronoi.Edge) {
	seg := cell.SourceSegment()
	from, to := seg.From(), seg.To()

	seenPossibleStart := false
	afterStart := false
	endSetBeforeStart := false
	vd := cell.IncidentEdge()
	for {
		if !vd.IsFinite() {
			vd = vd.Next()
			if vd == cell.IncidentEdge() {
				break
			}
			continue
		}
		v0, v1 := vd.Vertex0().P, vd.Vertex1().P
		if v0 == to && !afterStart { // use the last edge starting at the far end
			*startEdge = vd
			seenPossibleStart = true
		} else if seenPossibleStart {
			afterStart = true
		}
		if v1 == from && (*endEdge == nil || endSetBeforeStart) {
			endSetBeforeStart = !afterStart
			*endEdge = vd
		}
		vd = vd.Next()
		if vd == cell.IncidentEdge() {
			break
		}
	}
	*startSrc = to
	*endSrc = from
}

// transferEdge copies one Voronoi edge, discretized where it curves, into
// the graph and advances *prev to the last half-edge created.
func (b *vdBuilder) transferEdge(gen *Generator, from, to geom.Point, vdEdge *voronoi.Edge, prev **graph.Edge, startSrc, endSrc geom.Point) {
	if sourceTwin, ok := b.edges[vdEdge.Twin()]; ok {
		// The neighbouring cell already walked this bisector; mirror its
		// chain of discretized pieces, stepping over the ribs in between.
		endNode := b.nodes[vdEdge.Vertex1()]
		for twin := sourceTwin; ; twin = twin.Prev.Twin.Prev {
			edge := b.g.AddTwinFor(twin)
			if *prev != nil {
				edge.Prev = *prev
				(*prev).Next = edge
			}
			*prev = edge
			if edge.To == endNode {
				return
			}
			if twin.Prev == nil || twin.Prev.Twin == nil || twin.Prev.Twin.Prev == nil {
				gen.log.Warn("discretized bisector chain ends early",
					"from", from, "to", to)
				return
			}
			b.makeRib(prev, startSrc, endSrc)
		}
	}

	discretized := gen.discretize(vdEdge)
	if len(discretized) < 2 {
		gen.log.Warn("discretized edge degenerated", "from", from, "to", to)
		return
	}
	var v0 *graph.Node
	if *prev != nil {
		v0 = (*prev).To
	} else {
		v0 = b.makeNode(vdEdge.Vertex0(), from)
	}
	for i := 1; i < len(discretized); i++ {
		last := i == len(discretized)-1
		var v1 *graph.Node
		if last {
			v1 = b.makeNode(vdEdge.Vertex1(), to)
		} else {
			v1 = b.g.AddNode(discretized[i])
		}
		edge := b.g.AddHalfEdge(v0, v1, graph.EdgeNormal)
		if *prev != nil {
			edge.Prev = *prev
			(*prev).Next = edge
		}
		*prev = edge
		v0 = v1
		if !last {
			b.makeRib(prev, startSrc, endSrc)
		}
	}
	b.edges[vdEdge] = *prev
}

// makeNode returns the graph node for a Voronoi vertex, creating it at the
// snapped position p on first use.
func (b *vdBuilder) makeNode(vert *voronoi.Vertex, p geom.Point) *graph.Node {
	if n, ok := b.nodes[vert]; ok {
		return n
	}
	n := b.g.AddNode(p)
	b.nodes[vert] = n
	return n
}

// makeRib drops a rib from the end of *prev straight down to the nearest
// point of the cell's source segment, fixing the node's boundary distance,
// and advances *prev past the rib so the next skeleton edge chains after it.
func (b *vdBuilder) makeRib(prev **graph.Edge, startSrc, endSrc geom.Point) {
	p := geom.ClosestOnLineSegment((*prev).To.P, startSrc, endSrc)
	(*prev).To.DistanceToBoundary = (*prev).To.P.Sub(p).Size()

	n := b.g.AddNode(p)
	n.DistanceToBoundary = 0
	forth, back := b.g.AddEdgePair((*prev).To, n, graph.EdgeExtraRib)
	(*prev).Next = forth
	forth.Prev = *prev
	n.IncidentEdge = back
	*prev = back
}

// discretize samples a Voronoi edge into a polyline. Straight bisectors
// between two segments stay two points; bisectors involving a point site
// curve (or pinch) and are sampled at the discretization step, with extra
// vertices exactly where the transitioning angle is reached.
func (g *Generator) discretize(vdEdge *voronoi.Edge) []geom.Point {
	leftCell := vdEdge.Cell()
	rightCell := vdEdge.Twin().Cell()
	start := vdEdge.Vertex0().P
	end := vdEdge.Vertex1().P

	pointLeft := leftCell.ContainsPoint()
	pointRight := rightCell.ContainsPoint()
	if (!pointLeft && !pointRight) || vdEdge.IsSecondary() {
		return []geom.Point{start, end}
	}
	if pointLeft != pointRight {
		pointCell, segmentCell := leftCell, rightCell
		if pointRight {
			pointCell, segmentCell = rightCell, leftCell
		}
		return g.discretizeParabola(pointCell.SourcePoint(), segmentCell.SourceSegment(), start, end)
	}

	// Straight edge between two point sites. The part still narrows
	// toward the middle, so it is sampled like a curve, with markings
	// where the pinch angle passes the transitioning angle.
	leftPoint := leftCell.SourcePoint()
	rightPoint := rightCell.SourcePoint()
	d := rightPoint.Sub(leftPoint).Size()
	middle := leftPoint.Add(rightPoint).Div(2)
	xAxisDir := geom.Turn90CCW(rightPoint.Sub(leftPoint))
	xAxisLength := xAxisDir.Size()
	if xAxisLength == 0 {
		return []geom.Point{start, end}
	}
	projectedX := func(from geom.Point) geom.Coord {
		return geom.Dot(from.Sub(middle), xAxisDir) / xAxisLength
	}

	startX := projectedX(start)
	endX := projectedX(end)

	bound := 0.5 / math.Tan((math.Pi-g.params.TransitioningAngle)*0.5)
	markingStartX := geom.Coord(-float64(d) * bound)
	markingEndX := geom.Coord(float64(d) * bound)
	markingStart := middle.Add(xAxisDir.Mul(markingStartX).Div(xAxisLength))
	markingEnd := middle.Add(xAxisDir.Mul(markingEndX).Div(xAxisLength))
	dir := geom.Coord(1)
	if startX > endX {
		dir = -1
		markingStart, markingEnd = markingEnd, markingStart
		markingStartX, markingEndX = markingEndX, markingStartX
	}

	ret := []geom.Point{start}
	addMarkingStart := markingStartX*dir > startX*dir
	addMarkingEnd := markingEndX*dir > startX*dir

	ab := end.Sub(start)
	abSize := ab.Size()
	stepCount := (abSize + g.params.DiscretizationStepSize/2) / g.params.DiscretizationStepSize
	if stepCount%2 == 1 {
		stepCount++ // always sample the middle of the edge
	}
	for step := geom.Coord(1); step < stepCount; step++ {
		here := start.Add(ab.Mul(step).Div(stepCount))
		xHere := projectedX(here)
		if addMarkingStart && markingStartX*dir < xHere*dir {
			ret = append(ret, markingStart)
			addMarkingStart = false
		}
		if addMarkingEnd && markingEndX*dir < xHere*dir {
			ret = append(ret, markingEnd)
			addMarkingEnd = false
		}
		ret = append(ret, here)
	}
	if addMarkingEnd && markingEndX*dir < endX*dir {
		ret = append(ret, markingEnd)
	}
	ret = append(ret, end)
	return dedupAdjacent(ret)
}

// discretizeParabola samples the parabolic bisector between a point site
// and a segment site from start to end.
func (g *Generator) discretizeParabola(p geom.Point, seg geom.Segment, start, end geom.Point) []geom.Point {
	a, bp := seg.From(), seg.To()
	ab := bp.Sub(a)
	abSize := ab.Size()
	if abSize == 0 {
		return []geom.Point{start, end}
	}
	sx := geom.Dot(start.Sub(a), ab) / abSize
	ex := geom.Dot(end.Sub(a), ab) / abSize
	px := geom.Dot(p.Sub(a), ab) / abSize

	pxx := geom.ClosestOnLineSegment(p, a, bp)
	ppxx := pxx.Sub(p)
	d := ppxx.Size()
	if d == 0 {
		return []geom.Point{start, end}
	}

	// Local frame at the parabola's focus projection: x runs along the
	// segment, y away from it toward the point site's side.
	yDir := v2.Vec{X: float64(ppxx.X) / float64(d), Y: float64(ppxx.Y) / float64(d)}
	xDir := v2.Vec{X: -yDir.Y, Y: yDir.X}
	unapply := func(x, y geom.Coord) geom.Point {
		w := xDir.MulScalar(float64(x)).Add(yDir.MulScalar(float64(y)))
		return pxx.Add(geom.FromF(w))
	}

	markingBound := math.Atan(g.params.TransitioningAngle * 0.5)
	markingDist := geom.Coord(markingBound * float64(d))
	msx := -markingDist
	mex := markingDist
	markingH := msx*msx/(2*d) + d/2
	markingStart := unapply(msx, markingH)
	markingEnd := unapply(mex, markingH)
	dir := geom.Coord(1)
	if sx > ex {
		dir = -1
		markingStart, markingEnd = markingEnd, markingStart
		msx, mex = mex, msx
	}

	addMarkingStart := msx*dir > (sx-px)*dir && msx*dir < (ex-px)*dir
	addMarkingEnd := mex*dir > (sx-px)*dir && mex*dir < (ex-px)*dir
	apex := unapply(0, d/2)
	addApex := (sx-px)*dir < 0 && (ex-px)*dir > 0

	stepCount := geom.Coord(math.Abs(float64(ex-sx))/float64(g.params.DiscretizationStepSize) + 0.5)

	ret := []geom.Point{start}
	for step := geom.Coord(1); step < stepCount; step++ {
		x := sx + (ex-sx)*step/stepCount - px
		y := x*x/(2*d) + d/2
		if addMarkingStart && msx*dir < x*dir {
			ret = append(ret, markingStart)
			addMarkingStart = false
		}
		if addApex && x*dir > 0 {
			ret = append(ret, apex)
			addApex = false
		}
		if addMarkingEnd && mex*dir < x*dir {
			ret = append(ret, markingEnd)
			addMarkingEnd = false
		}
		ret = append(ret, unapply(x, y))
	}
	if addApex {
		ret = append(ret, apex)
	}
	if addMarkingEnd {
		ret = append(ret, markingEnd)
	}
	ret = append(ret, end)
	return dedupAdjacent(ret)
}

func dedupAdjacent(pts []geom.Point) []geom.Point {
	kept := pts[:1]
	for _, p := range pts[1:] {
		if p != kept[len(kept)-1] {
			kept = append(kept, p)
		}
	}
	return kept
}
