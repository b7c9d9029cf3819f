package skeletal

import (
	"math"
	"sort"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/chazu/beadwork/pkg/beading"
	"github.com/chazu/beadwork/pkg/geom"
	"github.com/chazu/beadwork/pkg/graph"
)

// generateSegments is the extraction phase: every node gets a beading,
// beadings flow along the skeleton into nodes that have none of their own,
// junction points are dropped along the downhill edges and finally
// connected across each quad into toolpath polylines.
func (g *Generator) generateSegments() {
	var upwardQuadMids []*graph.Edge
	for _, edge := range g.graph.Edges {
		if edge.Prev != nil && edge.Next != nil && edge.IsUpward() {
			upwardQuadMids = append(upwardQuadMids, edge)
		}
	}
	sort.SliceStable(upwardQuadMids, func(i, j int) bool {
		a, b := upwardQuadMids[i], upwardQuadMids[j]
		if a.To.DistanceToBoundary == b.To.DistanceToBoundary {
			// Ordering between two equally-high mids matters when one of
			// them is flat and feeds the other.
			aFlat := a.From.DistanceToBoundary == a.To.DistanceToBoundary
			bFlat := b.From.DistanceToBoundary == b.To.DistanceToBoundary
			if aFlat && bFlat {
				return distFromUp(a) < distFromUp(b)
			}
			if aFlat {
				return true
			}
			if bFlat {
				return false
			}
		}
		return a.To.DistanceToBoundary > b.To.DistanceToBoundary
	})

	for _, node := range g.graph.Nodes {
		if node.BeadCount <= 0 {
			continue
		}
		if node.TransitionRatio == 0 {
			g.beadings[node] = &beadingPropagation{
				beading: g.strategy.Compute(node.DistanceToBoundary*2, node.BeadCount),
			}
		} else {
			low := g.strategy.Compute(node.DistanceToBoundary*2, node.BeadCount)
			high := g.strategy.Compute(node.DistanceToBoundary*2, node.BeadCount+1)
			g.beadings[node] = &beadingPropagation{
				beading: interpolateBeadings(low, 1.0-node.TransitionRatio, high),
			}
		}
	}

	g.propagateBeadingsUpward(upwardQuadMids)
	g.propagateBeadingsDownward(upwardQuadMids)
	g.generateJunctions()
	g.connectJunctions()
	g.generateLocalMaximaSingleBeads()
}

// distFromUp orders flat plateau mids by how far their edge sits from a
// way up.
func distFromUp(e *graph.Edge) geom.Coord {
	up := e.DistToGoUp()
	if up < 0 {
		up = maxCoord
	}
	twinUp := e.Twin.DistToGoUp()
	if twinUp < 0 {
		twinUp = maxCoord
	}
	return min(up, twinUp) - e.Length()
}

// propagateBeadingsUpward hands beadings from transition ends up into the
// bead-countless upper skeleton, so the shallow side of a transition knows
// what it is transitioning from.
func (g *Generator) propagateBeadingsUpward(upwardQuadMids []*graph.Edge) {
	for i := len(upwardQuadMids) - 1; i >= 0; i-- {
		upward := upwardQuadMids[i]
		if upward.To.BeadCount >= 0 {
			continue // don't override local beading
		}
		lower, ok := g.beadings[upward.From]
		if !ok {
			continue // nothing to propagate
		}
		if _, ok := g.beadings[upward.To]; ok {
			continue // only propagate into empty places
		}
		upper := &beadingPropagation{
			beading:              cloneBeading(lower.beading),
			distToBottomSource:   lower.distToBottomSource + upward.Length(),
			distFromTopSource:    lower.distFromTopSource,
			upwardPropagatedOnly: true,
		}
		g.beadings[upward.To] = upper
	}
}

// propagateBeadingsDownward pushes each peak's beading down both sides of
// its quads, blending with whatever beading the lower node already has.
func (g *Generator) propagateBeadingsDownward(upwardQuadMids []*graph.Edge) {
	for _, mid := range upwardQuadMids {
		if mid.IsCentral() {
			continue
		}
		// On an equidistant mid, propagate from the side that has a
		// beading toward the side that doesn't.
		if mid.From.DistanceToBoundary == mid.To.DistanceToBoundary {
			_, fromHas := g.beadings[mid.From]
			_, toHas := g.beadings[mid.To]
			if fromHas && !toHas {
				g.propagateBeadingDown(mid.Twin)
				continue
			}
		}
		g.propagateBeadingDown(mid)
	}
}

func (g *Generator) propagateBeadingDown(edgeToPeak *graph.Edge) {
	length := edgeToPeak.Length()
	top := g.getOrCreateBeading(edgeToPeak.To)
	if top.beading.TotalThickness < edgeToPeak.To.DistanceToBoundary*2 {
		g.log.Warn("top bead is beyond the center of the total width", "at", edgeToPeak.To.P)
	}

	bottom, ok := g.beadings[edgeToPeak.From]
	if !ok {
		g.beadings[edgeToPeak.From] = &beadingPropagation{
			beading:            cloneBeading(top.beading),
			distToBottomSource: top.distToBottomSource,
			distFromTopSource:  top.distFromTopSource + length,
		}
		return
	}
	totalDist := top.distFromTopSource + length + bottom.distToBottomSource
	ratioOfTop := float64(bottom.distToBottomSource) / float64(min(totalDist, g.params.BeadingPropagationTransitionDist))
	if ratioOfTop < 0 {
		ratioOfTop = 0
	}
	if ratioOfTop >= 1.0 {
		*bottom = beadingPropagation{
			beading:            cloneBeading(top.beading),
			distToBottomSource: top.distToBottomSource,
			distFromTopSource:  top.distFromTopSource + length,
		}
		return
	}
	merged := g.interpolateSwitching(top.beading, ratioOfTop, bottom.beading, edgeToPeak.From.DistanceToBoundary)
	*bottom = beadingPropagation{beading: merged}
}

// interpolateSwitching blends two beadings, then checks whether the blend
// made the inset that should switch at switchingRadius land beyond it; if
// so the blend is redone with just enough extra weight on the right side.
func (g *Generator) interpolateSwitching(left beading.Beading, ratioLeft float64, right beading.Beading, switchingRadius geom.Coord) beading.Beading {
	ret := interpolateBeadings(left, ratioLeft, right)

	nextInsetIdx := len(left.ToolpathLocations) - 1
	for ; nextInsetIdx >= 0; nextInsetIdx-- {
		if switchingRadius > left.ToolpathLocations[nextInsetIdx] {
			break
		}
	}
	if nextInsetIdx < 0 {
		return ret // there is no next inset, because there is only one
	}
	if nextInsetIdx+1 == len(left.ToolpathLocations) {
		return ret
	}
	if ret.ToolpathLocations[nextInsetIdx] > switchingRadius {
		// An inset disappeared between left and the blend; solve the blend
		// weight that puts it exactly at the switching radius and nudge a
		// bit further.
		l := left.ToolpathLocations[nextInsetIdx]
		r := right.ToolpathLocations[nextInsetIdx]
		if l == r {
			return ret
		}
		newRatio := float64(switchingRadius-r) / float64(l-r)
		newRatio = math.Min(1.0, newRatio+0.1)
		return interpolateBeadings(left, newRatio, right)
	}
	return ret
}

// interpolateBeadings is the plain weighted blend. The result keeps the
// thicker side's shape; shared insets get blended widths and locations,
// except zero-width marker beads which stay zero.
func interpolateBeadings(left beading.Beading, ratioLeft float64, right beading.Beading) beading.Beading {
	ratioRight := 1.0 - ratioLeft
	src := right
	if left.TotalThickness > right.TotalThickness {
		src = left
	}
	ret := cloneBeading(src)
	n := min(len(left.BeadWidths), len(right.BeadWidths))
	for i := 0; i < n; i++ {
		if left.BeadWidths[i] == 0 || right.BeadWidths[i] == 0 {
			ret.BeadWidths[i] = 0
		} else {
			ret.BeadWidths[i] = geom.Coord(ratioLeft*float64(left.BeadWidths[i]) + ratioRight*float64(right.BeadWidths[i]))
		}
		ret.ToolpathLocations[i] = geom.Coord(ratioLeft*float64(left.ToolpathLocations[i]) + ratioRight*float64(right.ToolpathLocations[i]))
	}
	return ret
}

func cloneBeading(b beading.Beading) beading.Beading {
	b.BeadWidths = append([]geom.Coord(nil), b.BeadWidths...)
	b.ToolpathLocations = append([]geom.Coord(nil), b.ToolpathLocations...)
	return b
}

// getOrCreateBeading returns the node's beading, deriving a bead count
// from nearby nodes first when the node never got one (too-small central
// edges can leave such nodes behind).
func (g *Generator) getOrCreateBeading(node *graph.Node) *beadingPropagation {
	if bp, ok := g.beadings[node]; ok {
		return bp
	}
	if node.BeadCount == -1 {
		if nearest := g.getNearestBeading(node, nearbyBeadingDist); nearest != nil {
			return nearest
		}
		hasCentral := false
		dist := maxCoord
		node.EachOutgoing(func(e *graph.Edge) bool {
			if e.IsCentral() {
				hasCentral = true
			}
			if d := e.To.DistanceToBoundary + e.Length(); d < dist {
				dist = d
			}
			return true
		})
		if !hasCentral {
			g.log.Error("unknown beading for non-central node", "at", node.P)
		}
		node.BeadCount = g.strategy.OptimalBeadCount(dist * 2)
	}
	bp := &beadingPropagation{
		beading: g.strategy.Compute(node.DistanceToBoundary*2, node.BeadCount),
	}
	g.beadings[node] = bp
	return bp
}

// getNearestBeading searches outward from node, nearest first, for any
// node that already has a beading within maxDist.
func (g *Generator) getNearestBeading(node *graph.Node, maxDist geom.Coord) *beadingPropagation {
	type distEdge struct {
		edge *graph.Edge
		dist geom.Coord
	}
	heap := binaryheap.NewWith(func(x, y interface{}) int {
		a, b := x.(distEdge), y.(distEdge)
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return 0
		}
	})
	node.EachOutgoing(func(e *graph.Edge) bool {
		heap.Push(distEdge{e, e.Length()})
		return true
	})
	for counter := 0; counter < beadSearchMax; counter++ {
		v, ok := heap.Pop()
		if !ok {
			return nil
		}
		here := v.(distEdge)
		if here.dist > maxDist {
			return nil
		}
		if bp, ok := g.beadings[here.edge.To]; ok {
			return bp
		}
		for further := here.edge.Next; further != nil && further != here.edge.Twin; further = further.Twin.Next {
			heap.Push(distEdge{further, here.dist + further.Length()})
		}
	}
	return nil
}

// generateJunctions drops the toolpath junction points along every
// downhill edge: one per bead radius of the upper node's beading that
// falls inside the edge's radius range, ordered high R to low R.
func (g *Generator) generateJunctions() {
	for _, edge := range g.graph.Edges {
		if edge.From.DistanceToBoundary > edge.To.DistanceToBoundary {
			continue // only the upward half carries the junctions
		}
		startR := edge.To.DistanceToBoundary // higher R
		endR := edge.From.DistanceToBoundary // lower R
		if (edge.From.BeadCount == edge.To.BeadCount && edge.From.BeadCount >= 0) || endR >= startR {
			continue // no beads to generate
		}

		b := g.getOrCreateBeading(edge.To).beading
		if b.TotalThickness < edge.To.DistanceToBoundary*2 {
			g.log.Warn("junction beading is beyond the center of total width", "at", edge.To.P)
		}

		a := edge.To.P
		ab := edge.From.P.Sub(a)

		numJunctions := len(b.ToolpathLocations)
		// Start from the middle bead and walk outward until the first
		// junction at or inside the start radius; +1 absorbs rounding so
		// the center bead is never skipped.
		idx := (max(1, numJunctions) - 1) / 2
		for ; idx >= 0 && idx < numJunctions; idx-- {
			if b.ToolpathLocations[idx] <= startR+1 {
				break
			}
		}
		// idx can be -1 here when even the innermost bead lies outside the
		// start radius; the bump below then admits bead 0 after all.
		if idx+1 < numJunctions && b.ToolpathLocations[idx+1] <= startR+5 && b.TotalThickness < startR+5 {
			idx++
		}

		var ret []ExtrusionJunction
		for ; idx >= 0 && idx < numJunctions; idx-- {
			beadR := b.ToolpathLocations[idx]
			if beadR < endR {
				break // a junction on the node itself belongs to the next segment
			}
			junction := a.Add(ab.Mul(beadR - startR).Div(endR - startR))
			if beadR > startR-5 {
				// Snap onto the node so 3-way intersections stay visible.
				junction = a
			}
			ret = append(ret, ExtrusionJunction{P: junction, W: b.BeadWidths[idx], PerimeterIndex: idx})
		}
		g.junctions[edge] = ret
	}
}

// quadMaxREdgeTo returns the edge of a quad whose far node is the quad's
// peak. Flat-topped quads use the edge before the flat top.
func quadMaxREdgeTo(quadStart *graph.Edge) *graph.Edge {
	maxR := geom.Coord(-1)
	var ret *graph.Edge
	for e := quadStart; e != nil; e = e.Next {
		if r := e.To.DistanceToBoundary; r > maxR {
			maxR = r
			ret = e
		}
	}
	if ret != nil && ret.Next == nil && ret.To.DistanceToBoundary-5 < ret.From.DistanceToBoundary {
		ret = ret.Prev
	}
	return ret
}

// connectJunctions walks every quad of every polygon domain and connects
// the junctions on its two downhill sides into extrusion lines.
func (g *Generator) connectJunctions() {
	unprocessed := make(map[*graph.Edge]bool)
	for _, edge := range g.graph.Edges {
		if edge.Prev == nil {
			unprocessed[edge] = true
		}
	}
	passedOdd := make(map[*graph.Edge]bool)

	for _, start := range g.graph.Edges { // deterministic domain order
		if !unprocessed[start] {
			continue
		}
		domainStart := start
		quadStart := domainStart
		newDomainStart := true
		for {
			quadEnd := quadStart
			for quadEnd.Next != nil {
				quadEnd = quadEnd.Next
			}
			edgeToPeak := quadMaxREdgeTo(quadStart)
			if edgeToPeak == nil || edgeToPeak.Next == nil {
				g.log.Warn("quad without a peak edge", "at", quadStart.From.P)
				delete(unprocessed, quadStart)
			} else {
				g.connectQuad(quadStart, quadEnd, edgeToPeak, newDomainStart, passedOdd)
				delete(unprocessed, quadStart)
			}
			quadStart = nextUnconnected(quadStart)
			if quadStart == domainStart {
				break
			}
			newDomainStart = false
		}
	}
}

// nextUnconnected hops from one quad to the neighbouring quad that shares
// its end rib.
func nextUnconnected(quadStart *graph.Edge) *graph.Edge {
	e := quadStart
	for e.Next != nil {
		e = e.Next
	}
	return e.Twin
}

func (g *Generator) connectQuad(quadStart, quadEnd, edgeToPeak *graph.Edge, newDomainStart bool, passedOdd map[*graph.Edge]bool) {
	edgeFromPeak := edgeToPeak.Next

	fromJunctions := append([]ExtrusionJunction(nil), g.junctions[edgeToPeak]...)
	toJunctions := append([]ExtrusionJunction(nil), g.junctions[edgeFromPeak.Twin]...)
	if edgeToPeak.Prev != nil {
		fromPrev := g.junctions[edgeToPeak.Prev]
		for len(fromJunctions) > 0 && len(fromPrev) > 0 &&
			fromJunctions[len(fromJunctions)-1].PerimeterIndex <= fromPrev[0].PerimeterIndex {
			fromJunctions = fromJunctions[:len(fromJunctions)-1]
		}
		fromJunctions = append(fromJunctions, fromPrev...)
	}
	if edgeFromPeak.Next != nil {
		toNext := g.junctions[edgeFromPeak.Next.Twin]
		for len(toJunctions) > 0 && len(toNext) > 0 &&
			toJunctions[len(toJunctions)-1].PerimeterIndex <= toNext[0].PerimeterIndex {
			toJunctions = toJunctions[:len(toJunctions)-1]
		}
		toJunctions = append(toJunctions, toNext...)
	}
	if abs(len(fromJunctions)-len(toJunctions)) > 1 {
		g.log.Warn("bead counts across a quad differ by more than one",
			"from", len(fromJunctions), "to", len(toJunctions))
	}

	segmentCount := min(len(fromJunctions), len(toJunctions))
	for revIdx := 0; revIdx < segmentCount; revIdx++ {
		from := fromJunctions[len(fromJunctions)-1-revIdx]
		to := toJunctions[len(toJunctions)-1-revIdx]
		if from.PerimeterIndex != to.PerimeterIndex {
			g.log.Warn("connecting junctions of different perimeters",
				"from", from.PerimeterIndex, "to", to.PerimeterIndex)
		}
		fromIsOdd := quadStart.To.BeadCount > 0 && quadStart.To.BeadCount%2 == 1 &&
			quadStart.To.TransitionRatio == 0 &&
			revIdx == segmentCount-1 &&
			from.P.Sub(quadStart.To.P).ShorterThan(5)
		toIsOdd := quadEnd.From.BeadCount > 0 && quadEnd.From.BeadCount%2 == 1 &&
			quadEnd.From.TransitionRatio == 0 &&
			revIdx == segmentCount-1 &&
			to.P.Sub(quadEnd.From.P).ShorterThan(5)
		isOdd := fromIsOdd && toIsOdd

		if isOdd && passedOdd[quadStart.Next.Twin] {
			continue // the single center bead is shared with the twin quad
		}
		fromIs3way := fromIsOdd && quadStart.To.IsMultiIntersection()
		toIs3way := toIsOdd && quadEnd.From.IsMultiIntersection()
		passedOdd[quadStart.Next] = true

		g.addToolpathSegment(from, to, isOdd, newDomainStart, fromIs3way, toIs3way)
	}
}

// addToolpathSegment appends one junction-to-junction segment, extending
// the current line of its inset when the segment continues where the line
// left off (within 10 units of position and width).
func (g *Generator) addToolpathSegment(from, to ExtrusionJunction, isOdd, forceNewPath, fromIs3way, toIs3way bool) {
	if from == to {
		return
	}
	inset := from.PerimeterIndex
	for len(g.toolpaths) <= inset {
		g.toolpaths = append(g.toolpaths, VariableWidthLines{})
	}
	lines := g.toolpaths[inset]
	if len(lines) == 0 || lines[len(lines)-1].IsOdd != isOdd ||
		lines[len(lines)-1].Junctions[len(lines[len(lines)-1].Junctions)-1].PerimeterIndex != inset {
		forceNewPath = true
	}
	if !forceNewPath {
		last := &g.toolpaths[inset][len(lines)-1]
		lastJunction := last.Junctions[len(last.Junctions)-1]
		if lastJunction.P.Sub(from.P).ShorterThan(10) && coordAbs(lastJunction.W-from.W) < 10 && !fromIs3way {
			last.Junctions = append(last.Junctions, to)
			return
		}
		if lastJunction.P.Sub(to.P).ShorterThan(10) && coordAbs(lastJunction.W-to.W) < 10 && !toIs3way {
			if !isOdd {
				g.log.Error("reversing an even wall line flips its winding", "at", to.P)
			}
			last.Junctions = append(last.Junctions, from)
			return
		}
	}
	g.toolpaths[inset] = append(g.toolpaths[inset], ExtrusionLine{
		Inset:     inset,
		IsOdd:     isOdd,
		Junctions: []ExtrusionJunction{from, to},
	})
}

func coordAbs(c geom.Coord) geom.Coord {
	if c < 0 {
		return -c
	}
	return c
}

// generateLocalMaximaSingleBeads emits tiny filler circles for isolated
// single-bead local maxima no central region absorbed, so point-like
// features don't go unfilled.
func (g *Generator) generateLocalMaximaSingleBeads() {
	addCircle := func(center geom.Point, width geom.Coord, inset int) {
		for len(g.toolpaths) <= inset {
			g.toolpaths = append(g.toolpaths, VariableWidthLines{})
		}
		// The gap holds an extruded area of pi*(w/2)^2; a circle printed
		// at width w covers that with radius w/8.
		r := width / 8
		line := ExtrusionLine{Inset: inset, IsOdd: true}
		const nSegments = 7 // closed hexagon
		for i := 0; i < nSegments; i++ {
			angle := 2 * math.Pi * float64(i%6) / 6
			p := center.Add(geom.Point{
				X: geom.Coord(math.Round(float64(r) * math.Cos(angle))),
				Y: geom.Coord(math.Round(float64(r) * math.Sin(angle))),
			})
			line.Junctions = append(line.Junctions, ExtrusionJunction{P: p, W: width, PerimeterIndex: inset})
		}
		g.toolpaths[inset] = append(g.toolpaths[inset], line)
	}

	var centroid geom.Point
	var widthSum geom.Coord
	count := 0
	for _, node := range g.graph.Nodes {
		bp, ok := g.beadings[node]
		if !ok {
			continue
		}
		if len(bp.beading.BeadWidths)%2 != 1 || !node.IsLocalMaximum(true) {
			continue
		}
		inset := len(bp.beading.BeadWidths) / 2
		width := bp.beading.BeadWidths[inset]
		centroid = centroid.Add(node.P)
		widthSum += width
		count++
		if !node.IsCentral() {
			addCircle(node.P, width, inset)
		}
	}
	if count == 0 {
		return
	}

	replace := len(g.toolpaths) == 0 || len(g.toolpaths[0]) == 0
	if !replace {
		var totalLength geom.Coord
		minWidth := maxCoord
		for i := range g.toolpaths[0] {
			line := &g.toolpaths[0][i]
			totalLength += line.Length()
			for _, j := range line.Junctions {
				if j.W < minWidth {
					minWidth = j.W
				}
			}
		}
		replace = totalLength <= minWidth/2
	}
	if replace {
		width := widthSum / geom.Coord(count)
		center := centroid.Div(geom.Coord(count))
		if len(g.toolpaths) == 0 {
			g.toolpaths = append(g.toolpaths, VariableWidthLines{})
		} else {
			g.toolpaths[0] = g.toolpaths[0][:0]
		}
		addCircle(center, width, 0)
	}
}
