package voronoi

import (
	"errors"
	"testing"

	"github.com/chazu/beadwork/pkg/geom"
)

func square(size geom.Coord) geom.Polygons {
	return geom.Polygons{{
		{X: 0, Y: 0},
		{X: size, Y: 0},
		{X: size, Y: size},
		{X: 0, Y: size},
	}}
}

func rectangle(w, h geom.Coord) geom.Polygons {
	return geom.Polygons{{
		{X: 0, Y: 0},
		{X: w, Y: 0},
		{X: w, Y: h},
		{X: 0, Y: h},
	}}
}

func hasVertex(d *Diagram, p geom.Point) bool {
	for _, v := range d.Vertices() {
		if v.P == p {
			return true
		}
	}
	return false
}

// cellCycle walks the cell boundary from the incident edge and returns the
// edges of the cycle. It fails the test if the cycle does not close.
func cellCycle(t *testing.T, c *Cell) []*Edge {
	t.Helper()
	var cycle []*Edge
	e := c.IncidentEdge()
	if e == nil {
		return nil
	}
	for {
		cycle = append(cycle, e)
		e = e.Next()
		if e == nil {
			t.Fatalf("cell boundary chain broken after %d edges", len(cycle))
		}
		if e == c.IncidentEdge() {
			return cycle
		}
		if len(cycle) > 1000 {
			t.Fatalf("cell boundary does not close")
		}
	}
}

func TestSquareDiagram(t *testing.T) {
	d, err := Construct(square(10000))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if !hasVertex(d, geom.Point{X: 5000, Y: 5000}) {
		t.Errorf("missing center vertex of the square's medial axis")
	}
	for _, corner := range square(10000)[0] {
		if !hasVertex(d, corner) {
			t.Errorf("missing corner vertex %v", corner)
		}
	}
}

func TestSquareSegmentCells(t *testing.T) {
	d, err := Construct(square(10000))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	for _, c := range d.Cells() {
		if !c.ContainsSegment() {
			continue
		}
		seg := c.SourceSegment()
		var foundStart, foundEnd bool
		for _, e := range cellCycle(t, c) {
			if e.Vertex0() != nil && e.Vertex0().P == seg.To() {
				foundStart = true
			}
			if e.Vertex1() != nil && e.Vertex1().P == seg.From() {
				foundEnd = true
			}
		}
		if !foundStart || !foundEnd {
			t.Errorf("segment cell %v-%v: interior chain endpoints not found (start=%v end=%v)",
				seg.From(), seg.To(), foundStart, foundEnd)
		}
	}
}

func TestTwinSymmetry(t *testing.T) {
	d, err := Construct(rectangle(20000, 10000))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	for _, e := range d.Edges() {
		if e.Twin() == nil {
			t.Fatalf("edge without twin")
		}
		if e.Twin().Twin() != e {
			t.Fatalf("twin relation not symmetric")
		}
		if e.Vertex1() != e.Twin().Vertex0() {
			t.Fatalf("edge end does not match twin start")
		}
	}
}

func TestRectangleMedialAxis(t *testing.T) {
	d, err := Construct(rectangle(20000, 10000))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	// The medial axis of a 20x10 rectangle has branch vertices 5mm in
	// from each short side.
	for _, p := range []geom.Point{{X: 5000, Y: 5000}, {X: 15000, Y: 5000}} {
		if !hasVertex(d, p) {
			t.Errorf("missing medial branch vertex %v", p)
		}
	}
}

func TestConvexCornerPointCellsDiscardable(t *testing.T) {
	d, err := Construct(square(10000))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	for _, c := range d.Cells() {
		if !c.ContainsPoint() {
			continue
		}
		// Every corner of a convex shape owns only exterior area, so its
		// cell must be recognizably unbounded.
		if c.IncidentEdge() != nil && !c.HasInfiniteEdge() {
			t.Errorf("corner cell %v should be unbounded", c.SourcePoint())
		}
	}
}

func TestDegenerateInput(t *testing.T) {
	_, err := Construct(geom.Polygons{{{X: 0, Y: 0}, {X: 100, Y: 100}}})
	if !errors.Is(err, ErrDegenerateShape) {
		t.Fatalf("want ErrDegenerateShape, got %v", err)
	}
}

func squareWithHole(outer, inset geom.Coord) geom.Polygons {
	return geom.Polygons{
		{{X: 0, Y: 0}, {X: outer, Y: 0}, {X: outer, Y: outer}, {X: 0, Y: outer}},
		{{X: inset, Y: inset}, {X: inset, Y: outer - inset},
			{X: outer - inset, Y: outer - inset}, {X: outer - inset, Y: inset}},
	}
}

func TestSquareWithHoleTwinSymmetry(t *testing.T) {
	d, err := Construct(squareWithHole(10000, 3000))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	for _, e := range d.Edges() {
		if e.Twin() == nil {
			t.Fatalf("edge without twin")
		}
		if e.Twin().Twin() != e {
			t.Fatalf("twin relation not symmetric")
		}
		if e.Vertex1() != e.Twin().Vertex0() {
			t.Fatalf("edge end does not match twin start")
		}
	}
}

func TestHoleCornerCellsHaveWedges(t *testing.T) {
	d, err := Construct(squareWithHole(10000, 3000))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	holeCorners := 0
	for _, c := range d.Cells() {
		if !c.ContainsPoint() {
			continue
		}
		src := c.SourcePoint()
		onHole := (src.X == 3000 || src.X == 7000) && (src.Y == 3000 || src.Y == 7000)
		if !onHole {
			if c.IncidentEdge() != nil {
				t.Errorf("outer corner %v should own no edges", src)
			}
			continue
		}
		holeCorners++
		if c.IncidentEdge() == nil {
			t.Fatalf("hole corner %v owns interior area but has no edges", src)
		}
		var secondaries, touching int
		for _, e := range cellCycle(t, c) {
			if e.Cell() != c {
				t.Fatalf("hole corner %v: cycle strays into another cell", src)
			}
			if !e.IsFinite() {
				t.Fatalf("hole corner %v: unbounded edge in a bounded wedge", src)
			}
			if e.IsSecondary() {
				secondaries++
			}
			if e.Vertex0().P == src || e.Vertex1().P == src {
				touching++
			}
		}
		if secondaries != 2 || touching != 2 {
			t.Errorf("hole corner %v: want 2 secondary edges touching the corner, got %d secondary, %d touching",
				src, secondaries, touching)
		}
	}
	if holeCorners != 4 {
		t.Fatalf("expected 4 hole corner cells, found %d", holeCorners)
	}
}
