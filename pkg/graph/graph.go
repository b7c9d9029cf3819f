package graph

import (
	"github.com/pkg/errors"

	"github.com/chazu/beadwork/pkg/geom"
)

// Validation errors. The graph is never repaired in place; a broken
// invariant here means the construction that produced it is at fault.
var (
	// ErrMissingTwin means a half-edge has no twin or an asymmetric one.
	ErrMissingTwin = errors.New("half-edge without a matching twin")
	// ErrBrokenChain means Next/Prev links of a cell boundary disagree.
	ErrBrokenChain = errors.New("broken next/prev chain")
)

// Graph owns the nodes and half-edges of the trapezoidation.
type Graph struct {
	Nodes []*Node
	Edges []*Edge

	nextSeq int
}

// AddNode appends a fresh node with unset annotations.
func (g *Graph) AddNode(p geom.Point) *Node {
	n := &Node{P: p, DistanceToBoundary: -1, BeadCount: -1, seq: g.nextSeq}
	g.nextSeq++
	g.Nodes = append(g.Nodes, n)
	return n
}

// AddEdgePair creates a twinned pair of half-edges between from and to and
// returns the forward half first. Next/Prev wiring is up to the caller.
func (g *Graph) AddEdgePair(from, to *Node, typ EdgeType) (*Edge, *Edge) {
	fwd := &Edge{From: from, To: to, Type: typ, central: centralUnknown}
	back := &Edge{From: to, To: from, Type: typ, central: centralUnknown}
	fwd.Twin, back.Twin = back, fwd
	if from.IncidentEdge == nil {
		from.IncidentEdge = fwd
	}
	if to.IncidentEdge == nil {
		to.IncidentEdge = back
	}
	g.Edges = append(g.Edges, fwd, back)
	return fwd, back
}

// AddHalfEdge creates a single half-edge without a twin. The construction
// discovers twins cell by cell; AddTwinFor pairs them up once the other
// cell is walked. The new edge becomes the incident edge of its origin.
func (g *Graph) AddHalfEdge(from, to *Node, typ EdgeType) *Edge {
	e := &Edge{From: from, To: to, Type: typ, central: centralUnknown}
	from.IncidentEdge = e
	g.Edges = append(g.Edges, e)
	return e
}

// AddTwinFor creates the mirror half of an existing unpaired edge and links
// the two as twins.
func (g *Graph) AddTwinFor(half *Edge) *Edge {
	e := &Edge{From: half.To, To: half.From, Type: half.Type, central: centralUnknown}
	e.Twin, half.Twin = half, e
	e.From.IncidentEdge = e
	g.Edges = append(g.Edges, e)
	return e
}

// InsertNode splits edge and its twin at p. The two new halves inherit the
// type and central classification of the halves they extend. The returned
// edge is the continuation of edge beyond the new node, so a caller
// walking the edge while inserting can keep going from there.
func (g *Graph) InsertNode(edge *Edge, p geom.Point, beadCount int) (*Node, *Edge) {
	n := g.AddNode(p)
	n.BeadCount = beadCount
	twin := edge.Twin

	fwd := &Edge{From: n, To: edge.To, Type: edge.Type, central: edge.central}
	back := &Edge{From: n, To: twin.To, Type: twin.Type, central: twin.central}

	fwd.Twin, twin.Twin = twin, fwd
	back.Twin, edge.Twin = edge, back

	fwd.Next = edge.Next
	if fwd.Next != nil {
		fwd.Next.Prev = fwd
	}
	fwd.Prev, edge.Next = edge, fwd

	back.Next = twin.Next
	if back.Next != nil {
		back.Next.Prev = back
	}
	back.Prev, twin.Next = twin, back

	edge.To, twin.To = n, n
	n.IncidentEdge = fwd
	g.Edges = append(g.Edges, fwd, back)
	return n, fwd
}

// CollapseSmallEdges merges away skeleton edges shorter than snapDist.
// The far node of each collapsed edge is folded into the near one;
// boundary nodes are never merged so the outline keeps its corners.
func (g *Graph) CollapseSmallEdges(snapDist geom.Coord) {
	removed := make(map[*Edge]bool)
	dead := make(map[*Node]bool)
	for _, e := range g.Edges {
		if removed[e] || e.Twin == nil {
			continue
		}
		if e.From.DistanceToBoundary == 0 || e.To.DistanceToBoundary == 0 {
			continue
		}
		if e.From == e.To || !e.To.P.Sub(e.From.P).ShorterThan(snapDist) {
			continue
		}
		from, to := e.From, e.To

		to.EachOutgoing(func(out *Edge) bool {
			out.From = from
			if out.Twin != nil {
				out.Twin.To = from
			}
			return true
		})
		for _, half := range []*Edge{e, e.Twin} {
			if half.Prev != nil {
				half.Prev.Next = half.Next
			}
			if half.Next != nil {
				half.Next.Prev = half.Prev
			}
		}
		removed[e], removed[e.Twin] = true, true
		dead[to] = true

		if from.IncidentEdge == e || from.IncidentEdge == e.Twin || removed[from.IncidentEdge] {
			from.IncidentEdge = nil
			for _, cand := range []*Edge{e.Next, e.Twin.Next} {
				if cand != nil && !removed[cand] {
					from.IncidentEdge = cand
					break
				}
			}
		}
	}
	if len(removed) == 0 {
		return
	}
	g.Edges = filterEdges(g.Edges, removed)
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if !dead[n] {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes
}

func filterEdges(edges []*Edge, removed map[*Edge]bool) []*Edge {
	kept := edges[:0]
	for _, e := range edges {
		if !removed[e] {
			kept = append(kept, e)
		}
	}
	return kept
}

// SeparatePointyQuadEndNodes gives each quad its own copy of a pointy end
// node shared with another quad, so a transition applied along one quad
// cannot leak into its neighbor through the shared node.
func (g *Graph) SeparatePointyQuadEndNodes() {
	seen := make(map[*Node]bool)
	for _, e := range g.Edges {
		if e.Prev != nil {
			continue // only quad start halves
		}
		if !seen[e.From] {
			seen[e.From] = true
			continue
		}
		dup := g.AddNode(e.From.P)
		dup.DistanceToBoundary = e.From.DistanceToBoundary
		dup.BeadCount = e.From.BeadCount
		dup.IncidentEdge = e
		e.From = dup
		if e.Twin != nil {
			e.Twin.To = dup
		}
	}
}

// Validate checks the structural invariants every later phase relies on.
// It returns the first violation found.
func (g *Graph) Validate() error {
	for _, e := range g.Edges {
		if e.Twin == nil || e.Twin.Twin != e {
			return errors.Wrapf(ErrMissingTwin, "edge %v-%v", e.From.P, e.To.P)
		}
		if e.Twin.From != e.To || e.Twin.To != e.From {
			return errors.Wrapf(ErrMissingTwin, "edge %v-%v: twin endpoints do not mirror", e.From.P, e.To.P)
		}
		if e.Next != nil && e.Next.Prev != e {
			return errors.Wrapf(ErrBrokenChain, "edge %v-%v", e.From.P, e.To.P)
		}
		if e.Prev != nil && e.Prev.Next != e {
			return errors.Wrapf(ErrBrokenChain, "edge %v-%v", e.From.P, e.To.P)
		}
		if e.Next != nil && e.Next.From != e.To {
			return errors.Wrapf(ErrBrokenChain, "edge %v-%v: next does not continue at %v", e.From.P, e.To.P, e.To.P)
		}
	}
	for _, n := range g.Nodes {
		if n.IncidentEdge != nil && n.IncidentEdge.From != n {
			return errors.Wrapf(ErrBrokenChain, "node %v: incident edge starts elsewhere", n.P)
		}
	}
	return nil
}
