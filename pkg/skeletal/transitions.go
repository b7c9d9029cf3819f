package skeletal

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/chazu/beadwork/pkg/geom"
	"github.com/chazu/beadwork/pkg/graph"
)

// generateTransitioningRibs turns every bead-count step along the central
// skeleton into a stretched-out transition: mid points first, then the two
// ends of each, then actual graph nodes at the end positions.
func (g *Generator) generateTransitioningRibs() error {
	if err := g.generateTransitionMids(); err != nil {
		return err
	}
	for _, edge := range g.graph.Edges {
		if edge.IsCentral() && edge.From.BeadCount != edge.To.BeadCount &&
			len(g.transitions[edge]) == 0 && len(g.transitions[edge.Twin]) == 0 {
			g.log.Warn("central edge with differing bead counts has no transition",
				"from", edge.From.P, "to", edge.To.P)
		}
	}
	g.filterTransitionMids()
	g.generateAllTransitionEnds()
	g.applyTransitions()
	g.transitions = make(map[*graph.Edge][]transitionMiddle)
	g.transitionEnds = make(map[*graph.Edge][]transitionEnd)
	return nil
}

// generateTransitionMids finds, per upward central edge, the positions
// where the optimal bead count steps. Stored on the upward half only.
func (g *Generator) generateTransitionMids() error {
	for _, edge := range g.graph.Edges {
		if !edge.IsCentral() {
			continue
		}
		startR := edge.From.DistanceToBoundary
		endR := edge.To.DistanceToBoundary
		startCount := edge.From.BeadCount
		endCount := edge.To.BeadCount

		if startR == endR {
			if startCount != endCount {
				g.log.Warn("bead count differs across a level edge",
					"from", startCount, "to", endCount, "at", edge.From.P)
			}
			continue
		}
		if startR > endR {
			continue // only the upward half carries the transitions
		}
		if startCount == endCount {
			continue
		}

		edgeSize := edge.Length()
		for lower := startCount; lower < endCount; lower++ {
			midR := g.strategy.TransitionThickness(lower) / 2
			// The strategy may place the step slightly outside the edge's
			// radius range when bead counts were forced; clamp to the edge.
			if midR > endR {
				midR = endR
			}
			if midR < startR {
				midR = startR
			}
			midPos := edgeSize * (midR - startR) / (endR - startR)
			if midPos < 0 || midPos > edgeSize {
				return errors.Errorf("transition at radius %d lies outside its edge %v-%v", midR, edge.From.P, edge.To.P)
			}
			if trans := g.transitions[edge]; len(trans) > 0 && midPos < trans[len(trans)-1].pos {
				return errors.Errorf("transition positions decrease along edge %v-%v", edge.From.P, edge.To.P)
			}
			g.transitions[edge] = append(g.transitions[edge], transitionMiddle{
				pos:            midPos,
				lowerBeadCount: lower,
				featureRadius:  midR,
			})
		}
	}
	return nil
}

// transitionRef addresses one stored transition mid for deferred removal.
type transitionRef struct {
	edge  *graph.Edge
	index int
}

// filterTransitionMids drops transitions that would be geometrically
// meaningless: ones canceling against a nearby opposite transition of the
// same step, and ones too close to the end of their central region.
func (g *Generator) filterTransitionMids() {
	for _, edge := range g.graph.Edges {
		trans := g.transitions[edge]
		if len(trans) == 0 {
			continue
		}
		abSize := edge.Length()

		back := trans[len(trans)-1]
		toDissolve := g.dissolveNearbyTransitions(edge, back, abSize-back.pos, g.params.TransitionFilterDist, true)
		shouldDissolveBack := len(toDissolve) > 0
		for range toDissolve {
			g.dissolveBeadCountRegion(edge, back.lowerBeadCount+1, back.lowerBeadCount)
		}
		g.eraseTransitions(toDissolve)

		upperHalf := geom.Coord((1.0 - g.strategy.TransitionAnchorPos(back.lowerBeadCount)) *
			float64(g.strategy.TransitioningLength(back.lowerBeadCount)))
		shouldDissolveBack = g.filterEndOfCentralTransition(edge, abSize-back.pos, upperHalf, back.lowerBeadCount) || shouldDissolveBack

		if shouldDissolveBack {
			g.popTransition(edge, len(g.transitions[edge])-1)
		}
		trans = g.transitions[edge]
		if len(trans) == 0 {
			continue
		}

		front := trans[0]
		toDissolve = g.dissolveNearbyTransitions(edge.Twin, front, front.pos, g.params.TransitionFilterDist, false)
		shouldDissolveFront := len(toDissolve) > 0
		for range toDissolve {
			g.dissolveBeadCountRegion(edge.Twin, front.lowerBeadCount, front.lowerBeadCount+1)
		}
		g.eraseTransitions(toDissolve)

		lowerHalf := geom.Coord(g.strategy.TransitionAnchorPos(front.lowerBeadCount) *
			float64(g.strategy.TransitioningLength(front.lowerBeadCount)))
		shouldDissolveFront = g.filterEndOfCentralTransition(edge.Twin, front.pos, lowerHalf, front.lowerBeadCount+1) || shouldDissolveFront

		if shouldDissolveFront {
			g.popTransition(edge, 0)
		}
	}
}

func (g *Generator) popTransition(edge *graph.Edge, index int) {
	trans := g.transitions[edge]
	if index < 0 || index >= len(trans) {
		return
	}
	trans = append(trans[:index], trans[index+1:]...)
	if len(trans) == 0 {
		delete(g.transitions, edge)
	} else {
		g.transitions[edge] = trans
	}
}

// eraseTransitions removes the referenced mids, per edge in descending
// index order so earlier removals don't shift later references.
func (g *Generator) eraseTransitions(refs []transitionRef) {
	byEdge := make(map[*graph.Edge][]int)
	for _, ref := range refs {
		byEdge[ref.edge] = append(byEdge[ref.edge], ref.index)
	}
	for edge, indices := range byEdge {
		sort.Sort(sort.Reverse(sort.IntSlice(indices)))
		for _, i := range indices {
			g.popTransition(edge, i)
		}
	}
}

// dissolveNearbyTransitions searches the central region around the origin
// transition for other transitions of the same bead-count step within
// maxDist. All-or-nothing: a branch that runs too far, a branch that ends
// without any matching transition, or a width deviation beyond the allowed
// filter deviation, each cancels the whole dissolve.
func (g *Generator) dissolveNearbyTransitions(start *graph.Edge, origin transitionMiddle, traveled, maxDist geom.Coord, goingUp bool) []transitionRef {
	if traveled > maxDist {
		return nil
	}
	type frame struct {
		edge        *graph.Edge
		traveled    geom.Coord
		children    []*graph.Edge
		child       int
		subtreeRefs int
		entered     bool
	}
	var found []transitionRef
	stack := []*frame{{edge: start, traveled: traveled}}
	steps := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if !f.entered {
			f.entered = true
			if len(stack) > 1 && f.traveled > maxDist {
				return nil // this branch is too long to dissolve across
			}
			for out := f.edge.Next; out != nil && out != f.edge.Twin; out = out.Twin.Next {
				if out.IsCentral() {
					f.children = append(f.children, out)
				}
			}
		}
		if f.child < len(f.children) {
			edge := f.children[f.child]
			f.child++
			if steps++; steps > traversalStepCap {
				return nil
			}
			abSize := edge.Length()
			isAligned := edge.IsUpward()
			aligned := edge
			if !isAligned {
				aligned = edge.Twin
			}

			// The dissolve moves the origin's bead-count step here; check
			// how much line width that distorts.
			radiusHere := edge.From.DistanceToBoundary
			dissolveResultIsOdd := (origin.lowerBeadCount%2 == 1) == goingUp
			widthDeviation := (origin.featureRadius - radiusHere) * 2
			if widthDeviation < 0 {
				widthDeviation = -widthDeviation
			}
			lineWidthDeviation := widthDeviation
			if !dissolveResultIsOdd {
				lineWidthDeviation = widthDeviation / 2
			}
			if lineWidthDeviation > g.params.AllowedFilterDeviation {
				return nil
			}

			seenHere := 0
			for i, mid := range g.transitions[aligned] {
				pos := mid.pos
				if !isAligned {
					pos = abSize - pos
				}
				if f.traveled+pos < maxDist && mid.lowerBeadCount == origin.lowerBeadCount {
					found = append(found, transitionRef{aligned, i})
					seenHere++
				}
			}
			if seenHere > 0 {
				f.subtreeRefs += seenHere
				continue
			}
			stack = append(stack, &frame{edge: edge, traveled: f.traveled + abSize})
			continue
		}
		if f.subtreeRefs == 0 {
			return nil // a dead branch means nothing to merge with here
		}
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			stack[len(stack)-1].subtreeRefs += f.subtreeRefs
		}
	}
	return found
}

// dissolveBeadCountRegion flood-fills the central region beyond start,
// rewriting fromCount bead counts to toCount.
func (g *Generator) dissolveBeadCountRegion(start *graph.Edge, fromCount, toCount int) {
	if start.To.BeadCount != fromCount {
		return
	}
	start.To.BeadCount = toCount
	stack := []*graph.Edge{start}
	steps := 0
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for out := e.Next; out != nil && out != e.Twin; out = out.Twin.Next {
			if steps++; steps > traversalStepCap {
				return
			}
			if !out.IsCentral() || out.To.BeadCount != fromCount {
				continue
			}
			out.To.BeadCount = toCount
			stack = append(stack, out)
		}
	}
}

// filterEndOfCentralTransition reports whether the central region beyond
// start ends within maxDist in at least one direction; if so, the bead
// counts on the dissolved part are replaced outright.
func (g *Generator) filterEndOfCentralTransition(start *graph.Edge, traveled, maxDist geom.Coord, replacingBeadCount int) bool {
	type frame struct {
		edge     *graph.Edge
		traveled geom.Coord
		children []*graph.Edge
		child    int
		isEnd    bool
		dissolve bool
		entered  bool
	}
	stack := []*frame{{edge: start, traveled: traveled}}
	result := false
	propagate := false
	steps := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if propagate {
			f.dissolve = f.dissolve || result
			propagate = false
		}
		if !f.entered {
			f.entered = true
			if f.traveled > maxDist {
				result, propagate = false, true
				stack = stack[:len(stack)-1]
				continue
			}
			f.isEnd = true
			for out := f.edge.Next; out != nil && out != f.edge.Twin; out = out.Twin.Next {
				if out.IsCentral() {
					f.children = append(f.children, out)
					f.isEnd = false
				}
			}
		}
		if f.child < len(f.children) && steps < traversalStepCap {
			c := f.children[f.child]
			f.child++
			steps++
			stack = append(stack, &frame{edge: c, traveled: f.traveled + c.Length()})
			continue
		}
		if f.isEnd && f.traveled < maxDist {
			f.dissolve = true
		}
		if f.dissolve {
			f.edge.To.BeadCount = replacingBeadCount
		}
		result, propagate = f.dissolve, true
		stack = stack[:len(stack)-1]
	}
	return result
}

// generateAllTransitionEnds expands every surviving transition mid into its
// two ends.
func (g *Generator) generateAllTransitionEnds() {
	for _, edge := range g.graph.Edges {
		for _, mid := range g.transitions[edge] {
			g.generateTransitionEnds(edge, mid.pos, mid.lowerBeadCount)
		}
	}
}

// generateTransitionEnds places the lower and upper end of one transition,
// splitting the transitioning length at the strategy's anchor position.
func (g *Generator) generateTransitionEnds(edge *graph.Edge, midPos geom.Coord, lowerBeadCount int) {
	abSize := edge.Length()
	transitionLength := g.strategy.TransitioningLength(lowerBeadCount)
	anchor := g.strategy.TransitionAnchorPos(lowerBeadCount)

	midRest := anchor
	const endRest = 1.0

	// Lower end, walking back toward the thin side.
	lowerHalf := geom.Coord(anchor * float64(transitionLength))
	startPos := abSize - midPos
	g.generateTransitionEnd(edge.Twin, startPos, startPos+lowerHalf, lowerHalf, midRest, 0.0, lowerBeadCount)

	// Upper end, onward toward the thick side.
	upperHalf := geom.Coord((1.0 - anchor) * float64(transitionLength))
	g.generateTransitionEnd(edge, midPos, midPos+upperHalf, upperHalf, midRest, endRest, lowerBeadCount)
}

// generateTransitionEnd places one transition end at endPos along edge, or
// recurses onto the edges beyond when endPos overshoots. The recursion
// terminates because endPos shrinks by a full edge length per step. It
// reports whether every direction beyond turned out to be going down in
// bead count.
func (g *Generator) generateTransitionEnd(edge *graph.Edge, startPos, endPos, halfLength geom.Coord, startRest, endRest float64, lowerBeadCount int) bool {
	abSize := edge.Length()
	if startPos > abSize {
		g.log.Warn("transition end starts beyond its edge", "at", edge.From.P)
	}
	goingUp := endRest > startRest
	if !edge.IsCentral() {
		g.log.Warn("transition end runs into a non-central region", "at", edge.From.P)
		return false
	}

	if endPos > abSize {
		// The end lies beyond this edge; hand the remainder to whatever
		// central edges continue at the far node.
		rest := endRest - (startRest-endRest)*float64(endPos-abSize)/float64(startPos-endPos)

		centralCount := 0
		for out := edge.Next; out != nil && out != edge.Twin; out = out.Twin.Next {
			if out.IsCentral() {
				centralCount++
			}
		}

		isOnlyGoingDown := true
		hasRecursed := false
		for out := edge.Next; out != nil && out != edge.Twin; {
			next := out.Twin.Next // recursion may split out
			if !out.IsCentral() {
				out = next
				continue
			}
			if centralCount > 1 && goingUp && g.isGoingDown(out, 0, endPos-abSize+halfLength, lowerBeadCount) {
				// At an all-central junction, skip the downward branch;
				// the transition continues up the other one.
				out = next
				continue
			}
			isGoingDown := g.generateTransitionEnd(out, 0, endPos-abSize, halfLength, rest, endRest, lowerBeadCount)
			isOnlyGoingDown = isOnlyGoingDown && isGoingDown
			out = next
			hasRecursed = true
		}
		if !goingUp || (hasRecursed && !isOnlyGoingDown) {
			edge.To.TransitionRatio = rest
			edge.To.BeadCount = lowerBeadCount
		}
		return isOnlyGoingDown
	}

	// The end lands on this edge.
	isLowerEnd := endRest == 0
	var upward *graph.Edge
	var pos geom.Coord
	if edge.IsUpward() {
		upward, pos = edge, endPos
	} else {
		upward, pos = edge.Twin, abSize-endPos
	}
	end := transitionEnd{pos: pos, lowerBeadCount: lowerBeadCount, isLowerEnd: isLowerEnd}
	ends := g.transitionEnds[upward]
	if len(ends) == 0 || pos < ends[0].pos {
		g.transitionEnds[upward] = append([]transitionEnd{end}, ends...)
	} else {
		g.transitionEnds[upward] = append(ends, end)
	}
	return false
}

// isGoingDown reports whether the central skeleton beyond outgoing heads
// toward a lower bead count within maxDist: either the boundary, a node
// already at or below lowerBeadCount, or a matching transition mid.
func (g *Generator) isGoingDown(start *graph.Edge, traveled, maxDist geom.Coord, lowerBeadCount int) bool {
	type frame struct {
		edge          *graph.Edge
		traveled      geom.Coord
		children      []*graph.Edge
		child         int
		childTraveled geom.Coord
		onlyDown      bool
		recursed      bool
		entered       bool
	}
	stack := []*frame{{edge: start, traveled: traveled}}
	result := false
	propagate := false
	steps := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if propagate {
			f.onlyDown = f.onlyDown && result
			f.recursed = true
			propagate = false
		}
		if !f.entered {
			f.entered = true
			if decided, down := g.goingDownHere(f.edge, f.traveled, maxDist, lowerBeadCount); decided {
				result, propagate = down, true
				stack = stack[:len(stack)-1]
				continue
			}
			f.onlyDown = true
			f.childTraveled = f.traveled + f.edge.Length()
			for out := f.edge.Next; out != nil && out != f.edge.Twin; out = out.Twin.Next {
				if out.IsCentral() {
					f.children = append(f.children, out)
				}
			}
		}
		if f.child < len(f.children) && steps < traversalStepCap {
			c := f.children[f.child]
			f.child++
			steps++
			stack = append(stack, &frame{edge: c, traveled: f.childTraveled})
			continue
		}
		result, propagate = f.recursed && f.onlyDown, true
		stack = stack[:len(stack)-1]
	}
	return result
}

// goingDownHere gives the immediate verdict for one edge of the walk, or
// decided=false when the verdict depends on the edges beyond it.
func (g *Generator) goingDownHere(outgoing *graph.Edge, traveled, maxDist geom.Coord, lowerBeadCount int) (decided, down bool) {
	if outgoing.To.DistanceToBoundary == 0 {
		return true, true
	}
	isUpward := outgoing.To.DistanceToBoundary >= outgoing.From.DistanceToBoundary
	upward := outgoing
	if !isUpward {
		upward = outgoing.Twin
	}
	if outgoing.To.BeadCount > lowerBeadCount+1 {
		if len(g.transitions[upward]) == 0 {
			g.log.Warn("bead count steps without a transition mid", "at", outgoing.To.P)
		}
		return true, false
	}
	length := outgoing.Length()
	if mids := g.transitions[upward]; len(mids) > 0 {
		mid := mids[0]
		if !isUpward {
			mid = mids[len(mids)-1]
		}
		if mid.lowerBeadCount == lowerBeadCount &&
			((isUpward && mid.pos+traveled < maxDist) || (!isUpward && length-mid.pos+traveled < maxDist)) {
			return true, true
		}
	}
	if traveled+length > maxDist {
		return true, false
	}
	if outgoing.To.BeadCount <= lowerBeadCount &&
		!(outgoing.To.BeadCount == lowerBeadCount && outgoing.To.TransitionRatio > 0.0) {
		return true, true
	}
	return false, false
}

// applyTransitions materializes every transition end as a graph node. Twin
// lists are folded into the forward edge first, re-expressed as length-pos.
func (g *Generator) applyTransitions() {
	for _, edge := range g.graph.Edges {
		twinEnds := g.transitionEnds[edge.Twin]
		if len(twinEnds) == 0 {
			continue
		}
		length := edge.Length()
		for _, end := range twinEnds {
			g.transitionEnds[edge] = append(g.transitionEnds[edge], transitionEnd{
				pos:            length - end.pos,
				lowerBeadCount: end.lowerBeadCount,
				isLowerEnd:     end.isLowerEnd,
			})
		}
		delete(g.transitionEnds, edge.Twin)
	}

	edges := g.graph.Edges // insertions below append; only walk the originals
	for _, edge := range edges {
		ends := g.transitionEnds[edge]
		if len(ends) == 0 {
			continue
		}
		sort.SliceStable(ends, func(i, j int) bool { return ends[i].pos < ends[j].pos })

		from, to := edge.From, edge.To
		a, b := from.P, to.P
		ab := b.Sub(a)
		abSize := ab.Size()

		last := edge
		for _, end := range ends {
			newBeadCount := end.lowerBeadCount
			if !end.isLowerEnd {
				newBeadCount++
			}
			endPos := end.pos
			closeNode := to
			if endPos < abSize/2 {
				closeNode = from
			}
			if (endPos < snapDist || endPos > abSize-snapDist) && closeNode.BeadCount == newBeadCount {
				closeNode.TransitionRatio = 0
				continue
			}
			mid := a.Add(ab.Resized(endPos))
			last = g.insertNodeWithRibs(last, mid, newBeadCount)
		}
	}
}

// insertNodeWithRibs splits edge at mid and drops a rib from the new node
// to the boundary on both sides, so the node gets a distance to boundary
// and the quads on either side stay proper trapezoids.
func (g *Generator) insertNodeWithRibs(edge *graph.Edge, mid geom.Point, beadCount int) *graph.Edge {
	n, cont := g.graph.InsertNode(edge, mid, beadCount)
	n.TransitionRatio = 0
	g.insertRib(edge)
	g.insertRib(cont.Twin)
	return cont
}

// insertRib wedges a rib between before and before.Next, running from
// before's far node down to the source segment of before's quad.
func (g *Generator) insertRib(before *graph.Edge) {
	srcFrom, srcTo := quadSource(before)
	n := before.To
	px := geom.ClosestOnLineSegment(n.P, srcFrom, srcTo)
	n.DistanceToBoundary = n.P.Sub(px).Size()

	bnode := g.graph.AddNode(px)
	bnode.DistanceToBoundary = 0
	after := before.Next
	forth, back := g.graph.AddEdgePair(n, bnode, graph.EdgeExtraRib)
	forth.SetCentral(false)
	back.SetCentral(false)
	before.Next = forth
	forth.Prev = before
	back.Next = after
	if after != nil {
		after.Prev = back
	}
	bnode.IncidentEdge = back
}

// quadSource returns the boundary segment a quad rests on: the positions
// of its start and end nodes, which both lie on the outline.
func quadSource(e *graph.Edge) (geom.Point, geom.Point) {
	from := e
	for from.Prev != nil {
		from = from.Prev
	}
	to := e
	for to.Next != nil {
		to = to.Next
	}
	return from.From.P, to.To.P
}

// generateExtraRibs inserts additional nodes along central edges at the
// strategy's nonlinear thicknesses, purely as extra interpolation samples.
func (g *Generator) generateExtraRibs() {
	edges := g.graph.Edges // insertions append; only walk the originals
	for _, edge := range edges {
		if !edge.IsCentral() || edge.Length() < g.params.DiscretizationStepSize ||
			edge.From.DistanceToBoundary >= edge.To.DistanceToBoundary {
			continue
		}
		thicknesses := g.strategy.NonlinearThicknesses(edge.From.BeadCount)
		if len(thicknesses) == 0 {
			continue
		}

		from, to := edge.From, edge.To
		a, b := from.P, to.P
		ab := b.Sub(a)
		abSize := ab.Size()
		aR := from.DistanceToBoundary
		bR := to.DistanceToBoundary

		last := edge
		for _, t := range thicknesses {
			if t/2 <= aR {
				continue
			}
			if t/2 >= bR {
				break
			}
			newBeadCount := min(from.BeadCount, to.BeadCount)
			endPos := abSize * (t/2 - aR) / (bR - aR)
			closeNode := to
			if endPos < abSize/2 {
				closeNode = from
			}
			if (endPos < snapDist || endPos > abSize-snapDist) && closeNode.BeadCount == newBeadCount {
				closeNode.TransitionRatio = 0
				continue
			}
			mid := a.Add(ab.Resized(endPos))
			last = g.insertNodeWithRibs(last, mid, newBeadCount)
		}
	}
}
