package graph

import (
	"github.com/chazu/beadwork/pkg/geom"
)

// EdgeType distinguishes how an edge came to be in the graph.
type EdgeType int

const (
	// EdgeNormal is an edge of the underlying skeleton or one of its ribs.
	EdgeNormal EdgeType = iota
	// EdgeExtraRib is a rib inserted afterwards to support discretization.
	EdgeExtraRib
	// EdgeTransitionEnd is a skeleton piece between a transition end and
	// the next node, where the bead count has already switched.
	EdgeTransitionEnd
)

func (t EdgeType) String() string {
	switch t {
	case EdgeNormal:
		return "normal"
	case EdgeExtraRib:
		return "extra-rib"
	case EdgeTransitionEnd:
		return "transition-end"
	default:
		return "unknown"
	}
}

const (
	centralUnknown int8 = -1
	centralNo      int8 = 0
	centralYes     int8 = 1
)

// Edge is a directed half-edge. Every edge has a Twin running the other
// way; Next and Prev chain the edges bounding one trapezoid cell.
type Edge struct {
	From, To *Node
	Twin     *Edge
	Next     *Edge
	Prev     *Edge
	Type     EdgeType

	central int8
}

// IsCentral reports whether this edge is part of the central skeleton.
// Only meaningful once CentralKnown.
func (e *Edge) IsCentral() bool {
	return e.central == centralYes
}

// CentralKnown reports whether the central classification has been made.
func (e *Edge) CentralKnown() bool {
	return e.central != centralUnknown
}

// SetCentral classifies the edge. The twin is not touched; classification
// runs over both halves.
func (e *Edge) SetCentral(central bool) {
	if central {
		e.central = centralYes
	} else {
		e.central = centralNo
	}
}

// Length is the Euclidean length of the edge.
func (e *Edge) Length() geom.Coord {
	return e.To.P.Sub(e.From.P).Size()
}

// CanGoUp reports whether following this edge eventually leads to a
// strictly larger distance to the boundary. Plateau edges recurse through
// the far node unless strict is set.
func (e *Edge) CanGoUp(strict bool) bool {
	if e.To.DistanceToBoundary > e.From.DistanceToBoundary {
		return true
	}
	if e.To.DistanceToBoundary < e.From.DistanceToBoundary || strict {
		return false
	}
	// Plateau: try all other edges out of the far node.
	for out := e.Next; out != nil && out != e.Twin; {
		if out.CanGoUp(false) {
			return true
		}
		if out.Twin == nil {
			break
		}
		out = out.Twin.Next
	}
	return false
}

// DistToGoUp is the plateau distance to travel from this edge before the
// distance to the boundary first increases, or -1 when every path leads
// down.
func (e *Edge) DistToGoUp() geom.Coord {
	if e.To.DistanceToBoundary > e.From.DistanceToBoundary {
		return 0
	}
	if e.To.DistanceToBoundary < e.From.DistanceToBoundary {
		return -1
	}
	ret := geom.Coord(-1)
	length := e.Length()
	for out := e.Next; out != nil && out != e.Twin; {
		if d := out.DistToGoUp(); d >= 0 && (ret < 0 || d+length < ret) {
			ret = d + length
		}
		if out.Twin == nil {
			break
		}
		out = out.Twin.Next
	}
	return ret
}

// IsUpward reports whether the edge points toward a larger distance to the
// boundary. Plateau edges between equidistant nodes break the tie by which
// end is closer to a way up, and as a last resort by pointer identity so a
// twin pair always disagrees.
func (e *Edge) IsUpward() bool {
	if e.To.DistanceToBoundary > e.From.DistanceToBoundary {
		return true
	}
	if e.To.DistanceToBoundary < e.From.DistanceToBoundary {
		return false
	}
	up := e.DistToGoUp()
	down := e.Twin.DistToGoUp()
	switch {
	case up >= 0 && down < 0:
		return true
	case down >= 0 && up < 0:
		return false
	case up != down:
		return up < down
	}
	return edgeLess(e, e.Twin)
}

// edgeLess orders a twin pair deterministically. Separated quad end nodes
// can leave both halves between coincident points, so after the endpoint
// order the node insertion order settles it.
func edgeLess(a, b *Edge) bool {
	if a.From.P != b.From.P {
		return pointLess(a.From.P, b.From.P)
	}
	if a.To.P != b.To.P {
		return pointLess(a.To.P, b.To.P)
	}
	if a.From != b.From {
		return a.From.seq < b.From.seq
	}
	return a.To.seq < b.To.seq
}

func pointLess(p, q geom.Point) bool {
	if p.X != q.X {
		return p.X < q.X
	}
	return p.Y < q.Y
}
