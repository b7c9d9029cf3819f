package voronoi

import (
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/beadwork/pkg/geom"
)

// Vertex is a Voronoi vertex. Coordinates are kept in float64 for
// discretization and also rounded to micrometers; vertices closer together
// than a micrometer merge into one object, so consumers can compare
// vertices by identity or by rounded point.
type Vertex struct {
	V v2.Vec
	P geom.Point

	seq int
}

// Edge is one directed half-edge of the diagram. Its twin runs the same
// boundary in the opposite direction for the neighbouring cell. Edges are
// ordered counter-clockwise around their cell: the cell's region is to the
// left of the edge direction.
type Edge struct {
	cell      *Cell
	vertex0   *Vertex
	vertex1   *Vertex
	twin      *Edge
	next      *Edge
	prev      *Edge
	secondary bool
}

// Cell returns the cell this half-edge borders.
func (e *Edge) Cell() *Cell { return e.cell }

// Twin returns the opposite half-edge.
func (e *Edge) Twin() *Edge { return e.twin }

// Next returns the following half-edge counter-clockwise around the cell.
func (e *Edge) Next() *Edge { return e.next }

// Prev returns the preceding half-edge around the cell.
func (e *Edge) Prev() *Edge { return e.prev }

// Vertex0 returns the edge's start vertex, or nil when the edge comes in
// from infinity.
func (e *Edge) Vertex0() *Vertex { return e.vertex0 }

// Vertex1 returns the edge's end vertex, or nil when the edge runs off to
// infinity.
func (e *Edge) Vertex1() *Vertex { return e.vertex1 }

// IsFinite reports whether both endpoints of the edge exist.
func (e *Edge) IsFinite() bool {
	return e.vertex0 != nil && e.vertex1 != nil
}

// IsSecondary reports whether the edge separates a segment cell from the
// cell of one of that segment's own endpoints.
func (e *Edge) IsSecondary() bool { return e.secondary }

// IsPrimary reports whether the edge is a genuine bisector between two
// distinct boundary features.
func (e *Edge) IsPrimary() bool { return !e.secondary }

// Cell is the Voronoi region of one input site, either a boundary vertex
// or a boundary segment.
type Cell struct {
	site     *site
	incident *Edge
}

// ContainsPoint reports whether the cell's site is a boundary vertex.
func (c *Cell) ContainsPoint() bool { return c.site.kind == pointSite }

// ContainsSegment reports whether the cell's site is a boundary segment.
func (c *Cell) ContainsSegment() bool { return c.site.kind == segmentSite }

// SourcePoint returns the vertex site of a point cell.
func (c *Cell) SourcePoint() geom.Point { return c.site.vertex.P() }

// SourcePointIndex returns the polygon index of a point cell's vertex.
func (c *Cell) SourcePointIndex() geom.PointIndex { return c.site.vertex }

// SourceSegment returns the segment site of a segment cell.
func (c *Cell) SourceSegment() geom.Segment { return c.site.segment }

// IncidentEdge returns one half-edge of the cell's boundary cycle, or nil
// for a cell that owns no interior area (a convex boundary vertex).
func (c *Cell) IncidentEdge() *Edge { return c.incident }

// HasInfiniteEdge reports whether any edge of the cell's cycle runs to
// infinity, meaning the cell is unbounded.
func (c *Cell) HasInfiniteEdge() bool {
	e := c.incident
	if e == nil {
		return true
	}
	for {
		if !e.IsFinite() {
			return true
		}
		e = e.next
		if e == c.incident {
			return false
		}
	}
}

// Diagram is the assembled Voronoi diagram of a shape boundary.
type Diagram struct {
	cells    []*Cell
	vertices []*Vertex
	edges    []*Edge
}

// Cells returns all cells, one per input site.
func (d *Diagram) Cells() []*Cell { return d.cells }

// Vertices returns all diagram vertices.
func (d *Diagram) Vertices() []*Vertex { return d.vertices }

// Edges returns all half-edges.
func (d *Diagram) Edges() []*Edge { return d.edges }
