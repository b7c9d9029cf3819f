package skeletal

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/chazu/beadwork/pkg/beading"
	"github.com/chazu/beadwork/pkg/geom"
	"github.com/chazu/beadwork/pkg/graph"
	"github.com/chazu/beadwork/pkg/voronoi"
)

func testParams() Params {
	return Params{
		TransitioningAngle:               0.5,
		DiscretizationStepSize:           200,
		TransitionFilterDist:             1000,
		AllowedFilterDeviation:           100,
		BeadingPropagationTransitionDist: 400,
	}
}

func testStrategy() beading.Strategy {
	return beading.NewDistributed(400, 400, 0.5, 0.75, 2)
}

func rect(x0, y0, x1, y1 geom.Coord) geom.Polygon {
	return geom.Polygon{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// dumbbell is two 10mm squares joined by a 1mm wide, 4mm long neck.
func dumbbell() geom.Polygons {
	return geom.Polygons{{
		{X: 0, Y: 0}, {X: 10000, Y: 0}, {X: 10000, Y: 4500},
		{X: 14000, Y: 4500}, {X: 14000, Y: 0}, {X: 24000, Y: 0},
		{X: 24000, Y: 10000}, {X: 14000, Y: 10000}, {X: 14000, Y: 5500},
		{X: 10000, Y: 5500}, {X: 10000, Y: 10000}, {X: 0, Y: 10000},
	}}
}

func flatten(toolpaths []VariableWidthLines) []ExtrusionLine {
	var ret []ExtrusionLine
	for _, lines := range toolpaths {
		ret = append(ret, lines...)
	}
	return ret
}

func TestSquareGeneratesToolpaths(t *testing.T) {
	g, err := New(geom.Polygons{rect(0, 0, 10000, 10000)}, testStrategy(), testParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	toolpaths, err := g.GenerateToolpaths(false)
	if err != nil {
		t.Fatal(err)
	}
	lines := flatten(toolpaths)
	if len(lines) == 0 {
		t.Fatal("no toolpaths for a 10mm square")
	}
	for _, line := range lines {
		if len(line.Junctions) < 2 {
			t.Fatalf("line with %d junctions", len(line.Junctions))
		}
		for _, j := range line.Junctions {
			if j.W <= 0 || j.W > 1000 {
				t.Errorf("junction width %d out of range at %v", j.W, j.P)
			}
			if j.PerimeterIndex != line.Inset {
				t.Errorf("junction of perimeter %d on inset %d line", j.PerimeterIndex, line.Inset)
			}
		}
	}

	var apex *graph.Node
	for _, n := range g.graph.Nodes {
		if apex == nil || n.DistanceToBoundary > apex.DistanceToBoundary {
			apex = n
		}
	}
	if apex.DistanceToBoundary < 4990 || apex.DistanceToBoundary > 5010 {
		t.Errorf("deepest node at distance %d, want ~5000", apex.DistanceToBoundary)
	}
	want := testStrategy().OptimalBeadCount(apex.DistanceToBoundary * 2)
	if abs(apex.BeadCount-want) > 1 {
		t.Errorf("apex bead count %d, want %d or a transition neighbour", apex.BeadCount, want)
	}
}

func TestThinSliverDropsEverything(t *testing.T) {
	strategy := beading.NewWidening(testStrategy(), 300, 400)
	g, err := New(geom.Polygons{rect(0, 0, 30000, 200)}, strategy, testParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	toolpaths, err := g.GenerateToolpaths(false)
	if err != nil {
		t.Fatal(err)
	}
	if lines := flatten(toolpaths); len(lines) != 0 {
		t.Fatalf("sliver below the minimum input width produced %d lines", len(lines))
	}
}

func TestGenerateJunctionsEmptyBeading(t *testing.T) {
	strategy := beading.NewWidening(testStrategy(), 300, 400)
	g := &Generator{
		strategy:       strategy,
		params:         testParams(),
		log:            slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		graph:          &graph.Graph{},
		transitions:    make(map[*graph.Edge][]transitionMiddle),
		transitionEnds: make(map[*graph.Edge][]transitionEnd),
		junctions:      make(map[*graph.Edge][]ExtrusionJunction),
		beadings:       make(map[*graph.Node]*beadingPropagation),
	}
	lo := g.graph.AddNode(geom.Point{X: 0, Y: 0})
	hi := g.graph.AddNode(geom.Point{X: 0, Y: 100})
	lo.DistanceToBoundary = 0
	hi.DistanceToBoundary = 100
	hi.BeadCount = 0 // below the minimum input width: zero beads
	up, _ := g.graph.AddEdgePair(lo, hi, graph.EdgeNormal)

	g.generateJunctions()

	if len(g.junctions[up]) != 0 {
		t.Fatalf("zero-bead node yielded %d junctions", len(g.junctions[up]))
	}
}

func TestDumbbellVariesWidth(t *testing.T) {
	g, err := New(dumbbell(), testStrategy(), testParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	toolpaths, err := g.GenerateToolpaths(false)
	if err != nil {
		t.Fatal(err)
	}
	lines := flatten(toolpaths)
	if len(lines) == 0 {
		t.Fatal("no toolpaths for dumbbell")
	}
	widths := make(map[geom.Coord]bool)
	for _, line := range lines {
		for _, j := range line.Junctions {
			if j.W <= 0 || j.W > 1000 {
				t.Errorf("junction width %d out of range at %v", j.W, j.P)
			}
			widths[j.W] = true
		}
	}
	if len(widths) < 2 {
		t.Errorf("expected varying widths across the neck, got %d distinct", len(widths))
	}
}

func TestTinyPartBecomesSingleBeadCircle(t *testing.T) {
	strategy := beading.NewWidening(testStrategy(), 50, 400)
	g, err := New(geom.Polygons{rect(0, 0, 60, 60)}, strategy, testParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	toolpaths, err := g.GenerateToolpaths(false)
	if err != nil {
		t.Fatal(err)
	}
	lines := flatten(toolpaths)
	if len(lines) != 1 {
		t.Fatalf("want one filler line for a sub-bead part, got %d", len(lines))
	}
	line := lines[0]
	if !line.IsOdd {
		t.Error("filler line should be odd")
	}
	if len(line.Junctions) != 7 {
		t.Fatalf("filler circle has %d junctions, want 7", len(line.Junctions))
	}
	if line.Junctions[0].P != line.Junctions[6].P {
		t.Error("filler circle is not closed")
	}
	for _, j := range line.Junctions {
		if j.W < 60 {
			t.Errorf("filler width %d below the part thickness", j.W)
		}
	}
}

func TestHoleGetsToolpaths(t *testing.T) {
	outer := rect(0, 0, 10000, 10000)
	hole := rect(3000, 3000, 7000, 7000)
	// Holes wind clockwise.
	for i, j := 0, len(hole)-1; i < j; i, j = i+1, j-1 {
		hole[i], hole[j] = hole[j], hole[i]
	}
	g, err := New(geom.Polygons{outer, hole}, testStrategy(), testParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	toolpaths, err := g.GenerateToolpaths(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(flatten(toolpaths)) == 0 {
		t.Fatal("no toolpaths for square with hole")
	}
}

func TestFilteringIsIdempotent(t *testing.T) {
	g, err := New(dumbbell(), testStrategy(), testParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	g.updateIsCentral()
	g.filterCentral(centralFilterDist)
	g.updateBeadCount()
	g.filterNoncentralRegions()

	central := make(map[*graph.Edge]bool, len(g.graph.Edges))
	counts := make(map[*graph.Node]int, len(g.graph.Nodes))
	for _, e := range g.graph.Edges {
		central[e] = e.IsCentral()
	}
	for _, n := range g.graph.Nodes {
		counts[n] = n.BeadCount
	}

	g.filterCentral(centralFilterDist)
	g.filterNoncentralRegions()
	for _, e := range g.graph.Edges {
		if central[e] != e.IsCentral() {
			t.Fatalf("central flag changed on second filter pass at %v-%v", e.From.P, e.To.P)
		}
	}
	for _, n := range g.graph.Nodes {
		if counts[n] != n.BeadCount {
			t.Fatalf("bead count changed on second filter pass at %v", n.P)
		}
	}
}

func TestDegenerateShapeErrors(t *testing.T) {
	_, err := New(geom.Polygons{{{X: 0, Y: 0}, {X: 100, Y: 0}}}, testStrategy(), testParams(), nil)
	if !errors.Is(err, voronoi.ErrDegenerateShape) {
		t.Fatalf("want degenerate shape error, got %v", err)
	}
}

func TestInterpolateBeadings(t *testing.T) {
	left := beading.Beading{
		TotalThickness:    1000,
		BeadWidths:        []geom.Coord{400, 0, 400},
		ToolpathLocations: []geom.Coord{200, 500, 800},
	}
	right := beading.Beading{
		TotalThickness:    900,
		BeadWidths:        []geom.Coord{300, 300, 300},
		ToolpathLocations: []geom.Coord{150, 450, 750},
	}
	got := interpolateBeadings(left, 0.5, right)
	if got.TotalThickness != 1000 {
		t.Errorf("blend should keep the thicker side's shape, got %d", got.TotalThickness)
	}
	if got.BeadWidths[1] != 0 {
		t.Errorf("zero-width marker bead must stay zero, got %d", got.BeadWidths[1])
	}
	if got.BeadWidths[0] != 350 {
		t.Errorf("blended width %d, want 350", got.BeadWidths[0])
	}
	if got.ToolpathLocations[1] != 475 {
		t.Errorf("blended location %d, want 475", got.ToolpathLocations[1])
	}
}

func TestAddToolpathSegmentExtendsLines(t *testing.T) {
	g := &Generator{log: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))}
	a := ExtrusionJunction{P: geom.Point{X: 0, Y: 0}, W: 400}
	b := ExtrusionJunction{P: geom.Point{X: 100, Y: 0}, W: 400}
	c := ExtrusionJunction{P: geom.Point{X: 100, Y: 3}, W: 405}
	d := ExtrusionJunction{P: geom.Point{X: 200, Y: 0}, W: 400}

	g.addToolpathSegment(a, b, false, false, false, false)
	g.addToolpathSegment(c, d, false, false, false, false)
	if len(g.toolpaths[0]) != 1 {
		t.Fatalf("continuing segment should extend the line, got %d lines", len(g.toolpaths[0]))
	}
	if n := len(g.toolpaths[0][0].Junctions); n != 3 {
		t.Fatalf("extended line has %d junctions, want 3", n)
	}

	far := ExtrusionJunction{P: geom.Point{X: 5000, Y: 5000}, W: 400}
	g.addToolpathSegment(far, a, false, false, false, false)
	if len(g.toolpaths[0]) != 2 {
		t.Fatalf("disjoint segment should start a new line, got %d lines", len(g.toolpaths[0]))
	}

	g.addToolpathSegment(a, a, false, false, false, false)
	if len(g.toolpaths[0]) != 2 {
		t.Fatal("zero-length segment should be dropped")
	}
}
