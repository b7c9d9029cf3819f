package geom

// Polygon is one closed loop of points. The closing segment from the last
// point back to the first is implicit.
type Polygon []Point

// Polygons is a shape: one outer contour optionally followed by hole
// contours. By convention the outer contour winds counter-clockwise and
// holes wind clockwise, so the filled interior is always to the left of
// every directed boundary segment.
type Polygons []Polygon

// Area2 returns twice the signed area of the loop. Positive for
// counter-clockwise winding.
func (p Polygon) Area2() Coord {
	var total Coord
	for i, pt := range p {
		next := p[(i+1)%len(p)]
		total += Cross(pt, next)
	}
	return total
}

// PointIndex addresses one vertex of one loop in a shape. The segment
// "at" a point index runs from that vertex to the next one along the loop.
type PointIndex struct {
	Polys Polygons
	Poly  int
	Point int
}

// P returns the vertex itself.
func (idx PointIndex) P() Point {
	return idx.Polys[idx.Poly][idx.Point]
}

// Next returns the index of the following vertex on the same loop.
func (idx PointIndex) Next() PointIndex {
	idx.Point = (idx.Point + 1) % len(idx.Polys[idx.Poly])
	return idx
}

// Prev returns the index of the preceding vertex on the same loop.
func (idx PointIndex) Prev() PointIndex {
	idx.Point = (idx.Point + len(idx.Polys[idx.Poly]) - 1) % len(idx.Polys[idx.Poly])
	return idx
}

// Segment is one directed boundary segment of a shape, used as a Voronoi
// input site. It runs from Start.P() to Start.Next().P().
type Segment struct {
	Start PointIndex
}

// From returns the segment's start vertex.
func (s Segment) From() Point {
	return s.Start.P()
}

// To returns the segment's end vertex.
func (s Segment) To() Point {
	return s.Start.Next().P()
}
