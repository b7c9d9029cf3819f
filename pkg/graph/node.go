package graph

import (
	"github.com/chazu/beadwork/pkg/geom"
)

// Node is a vertex of the trapezoidation graph: a point either on the
// polygon boundary or on the medial axis, annotated with the scalar fields
// the beading phases fill in.
type Node struct {
	// P is the node position.
	P geom.Point
	// IncidentEdge is one outgoing edge; the others follow via Twin.Next.
	IncidentEdge *Edge
	// DistanceToBoundary is the radius of the largest inscribed circle
	// centered here, or -1 while not yet computed.
	DistanceToBoundary geom.Coord
	// BeadCount is the number of beads meeting here, or -1 while unknown.
	BeadCount int
	// TransitionRatio is how far this node is into a bead-count transition
	// toward BeadCount+1, in [0,1).
	TransitionRatio float64

	// seq is the insertion order within the graph. Duplicated nodes share a
	// position, so ordering needs an identity independent of P.
	seq int
}

// EachOutgoing calls fn for every edge leaving n, in order around the node.
// Iteration stops early when fn returns false.
func (n *Node) EachOutgoing(fn func(*Edge) bool) {
	e := n.IncidentEdge
	if e == nil {
		return
	}
	for {
		if !fn(e) {
			return
		}
		if e.Twin == nil || e.Twin.Next == nil {
			return
		}
		e = e.Twin.Next
		if e == n.IncidentEdge {
			return
		}
	}
}

// IsCentral reports whether any edge at this node is part of the central
// skeleton.
func (n *Node) IsCentral() bool {
	central := false
	n.EachOutgoing(func(e *Edge) bool {
		if e.CentralKnown() && e.IsCentral() {
			central = true
			return false
		}
		return true
	})
	return central
}

// IsMultiIntersection reports whether more than two central skeleton paths
// meet at this node.
func (n *Node) IsMultiIntersection() bool {
	paths := 0
	n.EachOutgoing(func(e *Edge) bool {
		if e.CentralKnown() && e.IsCentral() {
			paths++
		}
		return true
	})
	return paths > 2
}

// IsLocalMaximum reports whether no edge at this node leads to a larger
// distance to the boundary. With strict set, plateaus do not count as a
// way up.
func (n *Node) IsLocalMaximum(strict bool) bool {
	if n.DistanceToBoundary == 0 {
		return false
	}
	max := true
	n.EachOutgoing(func(e *Edge) bool {
		if e.CanGoUp(strict) {
			max = false
			return false
		}
		return true
	})
	return max
}
