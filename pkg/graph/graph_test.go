package graph

import (
	"errors"
	"testing"

	"github.com/chazu/beadwork/pkg/geom"
)

// triangle builds a twinned triangle cycle A(0,0) B(1000,0) C(500,800)
// with both cell chains wired.
func triangle() (*Graph, [3]*Node) {
	g := &Graph{}
	a := g.AddNode(geom.Point{X: 0, Y: 0})
	b := g.AddNode(geom.Point{X: 1000, Y: 0})
	c := g.AddNode(geom.Point{X: 500, Y: 800})
	ab, ba := g.AddEdgePair(a, b, EdgeNormal)
	bc, cb := g.AddEdgePair(b, c, EdgeNormal)
	ca, ac := g.AddEdgePair(c, a, EdgeNormal)
	chain(ab, bc, ca, ab)
	chain(ac, cb, ba, ac)
	return g, [3]*Node{a, b, c}
}

func chain(edges ...*Edge) {
	for i := 0; i+1 < len(edges); i++ {
		edges[i].Next = edges[i+1]
		edges[i+1].Prev = edges[i]
	}
}

func TestValidateTriangle(t *testing.T) {
	g, _ := triangle()
	if err := g.Validate(); err != nil {
		t.Fatalf("valid graph rejected: %v", err)
	}
}

func TestValidateMissingTwin(t *testing.T) {
	g, _ := triangle()
	g.Edges[0].Twin = nil
	if err := g.Validate(); !errors.Is(err, ErrMissingTwin) {
		t.Fatalf("want ErrMissingTwin, got %v", err)
	}
}

func TestInsertNode(t *testing.T) {
	g, nodes := triangle()
	ab := nodes[0].IncidentEdge
	oldTo := ab.To

	n, cont := g.InsertNode(ab, geom.Point{X: 500, Y: 0}, 3)
	if n.BeadCount != 3 {
		t.Errorf("bead count not set on inserted node")
	}
	if ab.To != n || cont.From != n || cont.To != oldTo {
		t.Fatalf("split endpoints wrong")
	}
	if ab.Next != cont || cont.Prev != ab {
		t.Errorf("split halves not chained")
	}
	if ab.Twin.From != n || cont.Twin.To != n {
		t.Errorf("twin halves not split at the new node")
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("graph invalid after insert: %v", err)
	}
}

func TestCanGoUpAndLocalMaximum(t *testing.T) {
	g, nodes := triangle()
	a, b, c := nodes[0], nodes[1], nodes[2]
	a.DistanceToBoundary = 0
	b.DistanceToBoundary = 100
	c.DistanceToBoundary = 150
	_ = g

	ab := a.IncidentEdge
	if !ab.CanGoUp(true) {
		t.Errorf("uphill edge should go up")
	}
	if ab.Twin.CanGoUp(true) {
		t.Errorf("downhill edge should not go up")
	}
	if !ab.IsUpward() || ab.Twin.IsUpward() {
		t.Errorf("upward direction wrong on a slope")
	}
	if !c.IsLocalMaximum(true) {
		t.Errorf("highest node should be a local maximum")
	}
	if b.IsLocalMaximum(false) {
		t.Errorf("mid node is no local maximum")
	}
	if a.IsLocalMaximum(false) {
		t.Errorf("boundary node is never a local maximum")
	}
}

func TestIsUpwardPlateauTwinsDisagree(t *testing.T) {
	g := &Graph{}
	p := g.AddNode(geom.Point{X: 0, Y: 0})
	q := g.AddNode(geom.Point{X: 1000, Y: 0})
	p.DistanceToBoundary = 100
	q.DistanceToBoundary = 100
	pq, qp := g.AddEdgePair(p, q, EdgeNormal)
	if pq.IsUpward() == qp.IsUpward() {
		t.Fatalf("twin halves of a plateau edge must disagree on upward")
	}
}

func TestIsUpwardCoincidentNodesDisagree(t *testing.T) {
	g := &Graph{}
	p := g.AddNode(geom.Point{X: 700, Y: 700})
	q := g.AddNode(geom.Point{X: 700, Y: 700})
	p.DistanceToBoundary = 100
	q.DistanceToBoundary = 100
	pq, qp := g.AddEdgePair(p, q, EdgeNormal)
	if pq.IsUpward() == qp.IsUpward() {
		t.Fatalf("twin halves between coincident nodes must disagree on upward")
	}
}

func TestCollapseSmallEdges(t *testing.T) {
	g := &Graph{}
	p := g.AddNode(geom.Point{X: 0, Y: 0})
	q := g.AddNode(geom.Point{X: 1000, Y: 0})
	r := g.AddNode(geom.Point{X: 1002, Y: 0})
	s := g.AddNode(geom.Point{X: 2000, Y: 0})
	p.DistanceToBoundary = 0
	q.DistanceToBoundary = 50
	r.DistanceToBoundary = 52
	s.DistanceToBoundary = 0
	pq, qp := g.AddEdgePair(p, q, EdgeNormal)
	qr, rq := g.AddEdgePair(q, r, EdgeNormal)
	rs, sr := g.AddEdgePair(r, s, EdgeNormal)
	chain(pq, qr, rs)
	chain(sr, rq, qp)

	g.CollapseSmallEdges(5)

	if len(g.Edges) != 4 {
		t.Fatalf("want 4 half-edges after collapse, got %d", len(g.Edges))
	}
	if rs.From != q || sr.To != q {
		t.Errorf("surviving edge not rehomed onto the kept node")
	}
	if pq.Next != rs || rs.Prev != pq {
		t.Errorf("chain not healed across the collapsed edge")
	}
	for _, n := range g.Nodes {
		if n == r {
			t.Errorf("merged node still listed")
		}
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("graph invalid after collapse: %v", err)
	}
}

func TestSeparatePointyQuadEndNodes(t *testing.T) {
	g := &Graph{}
	x := g.AddNode(geom.Point{X: 0, Y: 0})
	y := g.AddNode(geom.Point{X: 1000, Y: 0})
	z := g.AddNode(geom.Point{X: 0, Y: 1000})
	x.DistanceToBoundary = 0
	xy, _ := g.AddEdgePair(x, y, EdgeNormal)
	xz, _ := g.AddEdgePair(x, z, EdgeNormal)

	g.SeparatePointyQuadEndNodes()

	if xy.From == xz.From {
		t.Fatalf("quads still share their end node")
	}
	if xy.From.P != xz.From.P {
		t.Errorf("duplicated node moved")
	}
	if xz.Twin.To != xz.From {
		t.Errorf("twin not redirected to the duplicate")
	}
	if len(g.Nodes) != 4 {
		t.Errorf("want one duplicated node, got %d total", len(g.Nodes))
	}
}
