package skeletal

import (
	"math"

	"github.com/chazu/beadwork/pkg/geom"
	"github.com/chazu/beadwork/pkg/graph"
)

// updateIsCentral classifies every edge. An edge is central when the part's
// diameter changes fast enough across it that the bead count decision
// matters there: |dR| < |AB| * sin(transitioning_angle / 2). Edges thinner
// than the first transition thickness never are, and ribs never are.
func (g *Generator) updateIsCentral() {
	outerEdgeFilterLength := g.strategy.TransitionThickness(0) / 2
	cap := math.Sin(g.params.TransitioningAngle * 0.5)
	for _, edge := range g.graph.Edges {
		switch {
		case edge.Twin.CentralKnown():
			edge.SetCentral(edge.Twin.IsCentral())
		case edge.Type == graph.EdgeExtraRib:
			edge.SetCentral(false)
		case max(edge.From.DistanceToBoundary, edge.To.DistanceToBoundary) < outerEdgeFilterLength:
			edge.SetCentral(false)
		default:
			dR := edge.To.DistanceToBoundary - edge.From.DistanceToBoundary
			if dR < 0 {
				dR = -dR
			}
			dD := edge.Length()
			edge.SetCentral(float64(dR) < float64(dD)*cap)
		}
	}
}

// isEndOfCentral reports whether the central skeleton dead-ends at e's far
// node: e is central and nothing central continues from there.
func (g *Generator) isEndOfCentral(e *graph.Edge) bool {
	if !e.IsCentral() {
		return false
	}
	if e.Next == nil {
		return true
	}
	for out := e.Next; out != nil && out != e.Twin; out = out.Twin.Next {
		if out.IsCentral() {
			return false
		}
	}
	return true
}

// filterCentral dissolves central dead-end branches shorter than maxLength,
// except branches that terminate in a local maximum of boundary distance.
func (g *Generator) filterCentral(maxLength geom.Coord) {
	for _, edge := range g.graph.Edges {
		if g.isEndOfCentral(edge) && !edge.To.IsLocalMaximum(false) {
			g.filterCentralBranch(edge.Twin, maxLength)
		}
	}
}

// filterCentralBranch walks the central subtree hanging off start with an
// explicit stack, unmarking every edge of a subtree that is entirely
// shorter than maxLength and free of local maxima.
func (g *Generator) filterCentralBranch(start *graph.Edge, maxLength geom.Coord) bool {
	type frame struct {
		edge     *graph.Edge
		traveled geom.Coord
		children []*graph.Edge
		child    int
		dissolve bool
		entered  bool
	}
	stack := []*frame{{edge: start}}
	result := false
	propagate := false
	steps := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if propagate {
			f.dissolve = f.dissolve && result
			propagate = false
		}
		if !f.entered {
			f.entered = true
			if f.traveled+f.edge.Length() > maxLength {
				result, propagate = false, true
				stack = stack[:len(stack)-1]
				continue
			}
			f.dissolve = true
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
			stack = append(stack, &frame{edge: c, traveled: f.traveled + f.edge.Length()})
			continue
		}
		f.dissolve = f.dissolve && !f.edge.To.IsLocalMaximum(false)
		if f.dissolve {
			f.edge.SetCentral(false)
			f.edge.Twin.SetCentral(false)
		}
		result, propagate = f.dissolve, true
		stack = stack[:len(stack)-1]
	}
	return result
}

// filterOuterCentral unmarks central edges that border the outline
// directly, for when the outermost wall is printed at fixed width.
func (g *Generator) filterOuterCentral() {
	for _, edge := range g.graph.Edges {
		if edge.Prev == nil {
			edge.SetCentral(false)
			edge.Twin.SetCentral(false)
		}
	}
}

// updateBeadCount decides the bead count at every central node from its
// local diameter. Local maxima get theirs fixed unconditionally: a peak
// must anchor its own count independent of its neighbours.
func (g *Generator) updateBeadCount() {
	for _, edge := range g.graph.Edges {
		if edge.IsCentral() {
			edge.To.BeadCount = g.strategy.OptimalBeadCount(edge.To.DistanceToBoundary * 2)
		}
	}
	for _, node := range g.graph.Nodes {
		if !node.IsLocalMaximum(false) {
			continue
		}
		if node.DistanceToBoundary < 0 {
			g.log.Warn("distance to boundary not yet computed for local maximum", "at", node.P)
			node.DistanceToBoundary = maxCoord
			node.EachOutgoing(func(e *graph.Edge) bool {
				if d := e.To.DistanceToBoundary + e.Length(); d < node.DistanceToBoundary {
					node.DistanceToBoundary = d
				}
				return true
			})
		}
		node.BeadCount = g.strategy.OptimalBeadCount(node.DistanceToBoundary * 2)
	}
}

// filterNoncentralRegions re-marks short noncentral gaps between central
// regions whose bead counts agree (or differ by one within the transition
// distance), so a transition can run straight through instead of both
// regions ending separately.
func (g *Generator) filterNoncentralRegions() {
	for _, edge := range g.graph.Edges {
		if !g.isEndOfCentral(edge) {
			continue
		}
		if edge.To.BeadCount < 0 && edge.To.DistanceToBoundary != 0 {
			g.log.Warn("uninitialized bead count at central dead end", "at", edge.To.P)
		}
		g.filterNoncentralWalk(edge, edge.To.BeadCount, noncentralRegionFilterDist)
	}
}

// filterNoncentralWalk follows the single upward path out of a central dead
// end. When it reaches a node with a decided bead count the whole walked
// chain is re-marked central if the counts are compatible. There is never
// more than one way up, so this is a plain loop rather than a search.
func (g *Generator) filterNoncentralWalk(toEdge *graph.Edge, beadCount int, maxDist geom.Coord) {
	var chain []*graph.Edge
	traveled := geom.Coord(0)
	dissolve := false
	for steps := 0; steps < traversalStepCap; steps++ {
		r := toEdge.To.DistanceToBoundary
		next := toEdge.Next
		for ; next != nil && next != toEdge.Twin; next = next.Twin.Next {
			if next.To.DistanceToBoundary >= r || next.To.P.Sub(next.From.P).ShorterThan(10) {
				break
			}
		}
		if next == nil || next == toEdge.Twin {
			return
		}
		length := next.Length()
		chain = append(chain, next)
		if next.To.BeadCount == beadCount {
			dissolve = true
		} else if next.To.BeadCount < 0 {
			traveled += length
			toEdge = next
			continue
		} else {
			dissolve = traveled+length < maxDist && abs(next.To.BeadCount-beadCount) == 1
		}
		break
	}
	if !dissolve {
		return
	}
	for _, e := range chain {
		e.SetCentral(true)
		e.Twin.SetCentral(true)
		e.To.BeadCount = g.strategy.OptimalBeadCount(e.To.DistanceToBoundary * 2)
		e.To.TransitionRatio = 0
	}
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
