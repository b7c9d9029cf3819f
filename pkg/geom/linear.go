package geom

// PointIsLeftOfLine reports on which side of the directed line from a to b
// the query point lies. Positive means left, zero means on the line.
func PointIsLeftOfLine(query, a, b Point) Coord {
	return Cross(b.Sub(a), query.Sub(a))
}

// ClosestOnLineSegment returns the point on segment a-b closest to p.
func ClosestOnLineSegment(p, a, b Point) Point {
	ab := b.Sub(a)
	ap := p.Sub(a)
	ab2 := Dot(ab, ab)
	if ab2 <= 0 {
		return a
	}
	t := Dot(ap, ab)
	if t <= 0 {
		return a
	}
	if t >= ab2 {
		return b
	}
	return a.Add(ab.Mul(t).Div(ab2))
}

// InsideCorner reports whether the query point lies inside the corner
// formed at vertex b between the incoming boundary segment a->b and the
// outgoing segment b->c. The boundary winds with the interior on its left,
// so for a convex corner the query must be left of both segments, while
// for a reflex corner being left of either suffices. Points exactly on a
// boundary ray count as inside.
func InsideCorner(a, b, c, query Point) bool {
	// Normalize the leg directions so the convexity cross product cannot
	// overflow for far-apart vertices.
	const legLength = 10000
	ba := a.Sub(b).Resized(legLength)
	bc := c.Sub(b).Resized(legLength)

	leftOfIncoming := PointIsLeftOfLine(query, a, b) >= 0
	leftOfOutgoing := PointIsLeftOfLine(query, b, c) >= 0

	if Cross(ba.Mul(-1), bc) >= 0 {
		// Convex corner: the interior wedge is the intersection.
		return leftOfIncoming && leftOfOutgoing
	}
	// Reflex corner: the interior wedge is the union.
	return leftOfIncoming || leftOfOutgoing
}
