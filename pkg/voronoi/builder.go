package voronoi

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/pkg/errors"

	"github.com/chazu/beadwork/pkg/geom"
)

// ErrDegenerateShape is returned when the input boundary cannot seed a
// valid diagram: loops with too few vertices, coincident vertices, zero
// enclosed area, or bisector chains that cannot be paired consistently.
var ErrDegenerateShape = errors.New("voronoi: degenerate boundary shape")

// Construct builds the Voronoi diagram of the shape's boundary, restricted
// to the filled interior. Cells of boundary segments and of reflex
// vertices carry the interior bisector chains; convex vertices own no
// interior area and get a cell without edges.
//
// The diagram is assembled cell by cell. For a segment the interior chain
// is the lower envelope, over all other boundary features, of the height
// at which each feature's bisector crosses the perpendicular ray; for a
// reflex vertex the same threshold is swept over the wedge between the two
// adjacent segment normals. Envelope runs become edges, run boundaries
// become vertices, and the two half-edges neighbouring cells compute for
// the same feature pair are twinned through the shared vertices.
func Construct(polys geom.Polygons) (*Diagram, error) {
	if len(polys) == 0 {
		return nil, errors.Wrap(ErrDegenerateShape, "no boundary sites")
	}
	for _, loop := range polys {
		if len(loop) < 3 {
			return nil, errors.Wrap(ErrDegenerateShape, "loop with fewer than 3 vertices")
		}
		if loop.Area2() == 0 {
			return nil, errors.Wrap(ErrDegenerateShape, "loop encloses no area")
		}
		for i, p := range loop {
			if p == loop[(i+1)%len(loop)] {
				return nil, errors.Wrapf(ErrDegenerateShape, "coincident boundary vertices at %v", p)
			}
		}
	}

	b := &builder{
		d:       &Diagram{},
		byPoint: make(map[geom.Point]*Vertex),
		twins:   make(map[arcKey]*Edge),
	}
	b.collect(polys)
	for _, loop := range b.loops {
		for i, s := range loop.segs {
			if err := b.buildSegmentCell(loop, i, s); err != nil {
				return nil, err
			}
		}
		for i, s := range loop.points {
			if s.feat == nil {
				continue // convex corners own no interior area
			}
			if err := b.buildWedgeCell(loop, i, s); err != nil {
				return nil, err
			}
		}
	}
	if err := b.checkPaired(); err != nil {
		return nil, err
	}
	return b.d, nil
}

type builder struct {
	d     *Diagram
	loops []*loopSites
	feats []*feature

	byPoint map[geom.Point]*Vertex
	twins   map[arcKey]*Edge
	nextIdx int
	nextSeq int
}

// collect builds one point site and one segment site per boundary vertex.
// Every site gets a cell; only segments and reflex vertices get a distance
// feature, so only they can own envelope runs.
func (b *builder) collect(polys geom.Polygons) {
	for polyIdx, poly := range polys {
		loop := &loopSites{}
		for ptIdx := range poly {
			idx := geom.PointIndex{Polys: polys, Poly: polyIdx, Point: ptIdx}
			ps := b.addSite(&site{kind: pointSite, vertex: idx})
			ss := b.addSite(&site{kind: segmentSite, vertex: idx, segment: geom.Segment{Start: idx}})
			loop.points = append(loop.points, ps)
			loop.segs = append(loop.segs, ss)
		}
		b.loops = append(b.loops, loop)
	}
	for _, loop := range b.loops {
		for _, s := range loop.segs {
			s.feat = segmentFeature(s)
			b.feats = append(b.feats, s.feat)
		}
		for _, s := range loop.points {
			if s.reflex() {
				s.feat = pointFeature(s)
				b.feats = append(b.feats, s.feat)
			}
		}
	}
}

func (b *builder) addSite(s *site) *site {
	s.idx = b.nextIdx
	b.nextIdx++
	s.cell = &Cell{site: s}
	b.d.cells = append(b.d.cells, s.cell)
	return s
}

// boundaryVertex returns the diagram vertex sitting exactly on a polygon
// vertex, creating it on first use.
func (b *builder) boundaryVertex(p geom.Point) *Vertex {
	if v, ok := b.byPoint[p]; ok {
		return v
	}
	return b.newVertex(p.F(), p)
}

// vertexAt returns the diagram vertex for a computed breakpoint, merging
// with any existing vertex within vertexSnap. Neighbouring cells compute
// shared breakpoints independently; the merge is what twins their arcs.
func (b *builder) vertexAt(w v2.Vec) *Vertex {
	p := geom.FromF(w)
	for dx := geom.Coord(-1); dx <= 1; dx++ {
		for dy := geom.Coord(-1); dy <= 1; dy++ {
			q := geom.Point{X: p.X + dx, Y: p.Y + dy}
			if v, ok := b.byPoint[q]; ok && math.Hypot(v.V.X-w.X, v.V.Y-w.Y) <= vertexSnap {
				return v
			}
		}
	}
	return b.newVertex(w, p)
}

func (b *builder) newVertex(w v2.Vec, p geom.Point) *Vertex {
	v := &Vertex{V: w, P: p, seq: b.nextSeq}
	b.nextSeq++
	if _, taken := b.byPoint[p]; !taken {
		b.byPoint[p] = v
	}
	b.d.vertices = append(b.d.vertices, v)
	return v
}

// buildSegmentCell assembles the cell of loop.segs[i]. The ring runs
// counter-clockwise with the cell region on the left: along the boundary
// segment, up the far corner where the chain does not reach it, back along
// the envelope chain, and down to the near corner.
func (b *builder) buildSegmentCell(loop *loopSites, i int, s *site) error {
	fs := s.feat
	ray := func(x float64) (v2.Vec, v2.Vec) {
		return fs.a.Add(fs.dir.MulScalar(x)), fs.nrm
	}
	n := sampleCount(fs.l, sampleStep)
	runs, err := lowerEnvelope(b.feats, fs.l, n, ray, func(f *feature) bool { return f == fs })
	if err != nil {
		return errors.Wrapf(err, "segment %v-%v", s.segment.From(), s.segment.To())
	}

	vFrom := b.boundaryVertex(s.segment.From())
	vTo := b.boundaryVertex(s.segment.To())

	chain, err := b.chainVertices(ray, fs.l, runs, vFrom, vTo)
	if err != nil {
		return errors.Wrapf(err, "segment %v-%v", s.segment.From(), s.segment.To())
	}

	m := len(loop.segs)
	ring := []*Edge{b.addBoundary(s, vFrom, vTo)}
	if last := chain[len(chain)-1]; last != vTo {
		ring = append(ring, b.addArc(s, b.cornerPartner(loop, (i+1)%m, (i+1)%m), vTo, last))
	}
	for k := len(runs) - 1; k >= 0; k-- {
		if v0, v1 := chain[k+1], chain[k]; v0 != v1 {
			ring = append(ring, b.addArc(s, runs[k].f.s, v0, v1))
		}
	}
	if first := chain[0]; first != vFrom {
		ring = append(ring, b.addArc(s, b.cornerPartner(loop, i, (i+m-1)%m), first, vFrom))
	}
	if len(ring) < 3 {
		return errors.Wrapf(ErrDegenerateShape,
			"segment %v-%v: empty interior chain", s.segment.From(), s.segment.To())
	}
	b.closeRing(s.cell, ring)
	return nil
}

// cornerPartner is the site across a chain-closing edge at corner vertex
// ptIdx: the corner's own point site when the corner is reflex, otherwise
// the adjacent segment segIdx (a collinear corner, where the closing edge
// separates two segments of the same line).
func (b *builder) cornerPartner(loop *loopSites, ptIdx, segIdx int) *site {
	if p := loop.points[ptIdx]; p.feat != nil {
		return p
	}
	return loop.segs[segIdx]
}

// chainVertices places the diagram vertices of a segment cell's envelope
// chain, left to right along the segment. A chain end whose height reaches
// zero closes onto the polygon corner itself.
func (b *builder) chainVertices(ray func(float64) (v2.Vec, v2.Vec), l float64, runs []envRun, vFrom, vTo *Vertex) ([]*Vertex, error) {
	endVertex := func(x float64, f *feature, corner *Vertex) (*Vertex, error) {
		base, up := ray(x)
		h := threshAlong(base, up, f)
		if math.IsInf(h, 1) {
			return nil, errors.Wrapf(ErrDegenerateShape, "unbounded chain end at (%.0f, %.0f)", base.X, base.Y)
		}
		if h <= cornerSnap {
			return corner, nil
		}
		return b.vertexAt(base.Add(up.MulScalar(h))), nil
	}

	chain := make([]*Vertex, 0, len(runs)+1)
	first, err := endVertex(0, runs[0].f, vFrom)
	if err != nil {
		return nil, err
	}
	chain = append(chain, first)
	for k := 1; k < len(runs); k++ {
		base, up := ray(runs[k].t0)
		h := math.Min(threshAlong(base, up, runs[k-1].f), threshAlong(base, up, runs[k].f))
		chain = append(chain, b.vertexAt(base.Add(up.MulScalar(h))))
	}
	last, err := endVertex(l, runs[len(runs)-1].f, vTo)
	if err != nil {
		return nil, err
	}
	return append(chain, last), nil
}

// buildWedgeCell assembles the cell of a reflex vertex: the wedge between
// the normals of the outgoing and incoming segments, closed by a secondary
// edge against each. The ring runs counter-clockwise, out along the
// outgoing segment's normal, across the envelope, and back to the corner.
func (b *builder) buildWedgeCell(loop *loopSites, i int, s *site) error {
	m := len(loop.segs)
	segIn := loop.segs[(i+m-1)%m]
	segOut := loop.segs[i]
	origin := s.point().F()
	u0, u1 := segOut.feat.nrm, segIn.feat.nrm
	span := math.Atan2(u0.X*u1.Y-u0.Y*u1.X, u0.X*u1.X+u0.Y*u1.Y)
	if span <= 0 {
		span += 2 * math.Pi
	}
	ray := func(phi float64) (v2.Vec, v2.Vec) {
		sin, cos := math.Sincos(phi)
		return origin, v2.Vec{X: u0.X*cos - u0.Y*sin, Y: u0.X*sin + u0.Y*cos}
	}
	skip := func(f *feature) bool {
		return f == s.feat || f == segIn.feat || f == segOut.feat
	}
	runs, err := lowerEnvelope(b.feats, span, sampleCount(span, wedgeStep), ray, skip)
	if err != nil {
		return errors.Wrapf(err, "vertex %v", s.point())
	}

	corner := b.boundaryVertex(s.point())
	chain := make([]*Vertex, 0, len(runs)+1)
	for k := 0; k <= len(runs); k++ {
		var t float64
		var f *feature
		switch k {
		case 0:
			t, f = 0, runs[0].f
		case len(runs):
			t, f = span, runs[len(runs)-1].f
		default:
			t, f = runs[k].t0, runs[k].f
		}
		base, up := ray(t)
		h := threshAlong(base, up, f)
		if k > 0 && k < len(runs) {
			h = math.Min(h, threshAlong(base, up, runs[k-1].f))
		}
		if math.IsInf(h, 1) {
			return errors.Wrapf(ErrDegenerateShape, "unbounded wedge at %v", s.point())
		}
		v := b.vertexAt(base.Add(up.MulScalar(h)))
		if v == corner {
			return errors.Wrapf(ErrDegenerateShape, "pinched wedge at %v", s.point())
		}
		chain = append(chain, v)
	}

	ring := []*Edge{b.addArc(s, segOut, corner, chain[0])}
	for k := 0; k < len(runs); k++ {
		if v0, v1 := chain[k], chain[k+1]; v0 != v1 {
			ring = append(ring, b.addArc(s, runs[k].f.s, v0, v1))
		}
	}
	ring = append(ring, b.addArc(s, segIn, chain[len(chain)-1], corner))
	b.closeRing(s.cell, ring)
	return nil
}

// arcKey identifies a bisector arc by its vertex pair and site pair,
// independent of direction, so the two cells bordering the arc find each
// other's half.
type arcKey struct {
	v0, v1 int
	s0, s1 int
}

func arcKeyOf(v0, v1 *Vertex, a, b *site) arcKey {
	k := arcKey{v0: v0.seq, v1: v1.seq, s0: a.idx, s1: b.idx}
	if k.v0 > k.v1 {
		k.v0, k.v1 = k.v1, k.v0
	}
	if k.s0 > k.s1 {
		k.s0, k.s1 = k.s1, k.s0
	}
	return k
}

// addArc creates the half-edge of cell s along the bisector with partner
// and twins it with the partner cell's half once both exist.
func (b *builder) addArc(s, partner *site, v0, v1 *Vertex) *Edge {
	e := &Edge{cell: s.cell, vertex0: v0, vertex1: v1, secondary: isSecondaryPair(s, partner)}
	b.d.edges = append(b.d.edges, e)
	k := arcKeyOf(v0, v1, s, partner)
	if other, ok := b.twins[k]; ok {
		if other.twin == nil && other.vertex0 == v1 && other.vertex1 == v0 {
			e.twin, other.twin = other, e
		}
	} else {
		b.twins[k] = e
	}
	return e
}

// addBoundary creates the half-edge lying on the input segment itself. Its
// twin faces the exterior and belongs to no cell.
func (b *builder) addBoundary(s *site, v0, v1 *Vertex) *Edge {
	e := &Edge{cell: s.cell, vertex0: v0, vertex1: v1}
	t := &Edge{vertex0: v1, vertex1: v0}
	e.twin, t.twin = t, e
	b.d.edges = append(b.d.edges, e, t)
	return e
}

func (b *builder) closeRing(c *Cell, ring []*Edge) {
	for i, e := range ring {
		next := ring[(i+1)%len(ring)]
		e.next, next.prev = next, e
	}
	c.incident = ring[0]
}

// checkPaired verifies that every bisector found its twin. A miss means
// two cells sampled the same arc inconsistently, which would corrupt any
// structure built on top, so the whole shape is rejected.
func (b *builder) checkPaired() error {
	for _, e := range b.d.edges {
		if e.twin == nil {
			return errors.Wrapf(ErrDegenerateShape,
				"unpaired bisector %v-%v", e.vertex0.P, e.vertex1.P)
		}
	}
	return nil
}

// isSecondaryPair reports whether the two sites are a segment and one of
// its own endpoints. Edges between such a pair delimit the endpoint's
// region rather than bisecting two distinct boundary features.
func isSecondaryPair(a, b *site) bool {
	seg, pt := a, b
	if seg.kind != segmentSite {
		seg, pt = b, a
	}
	if seg.kind != segmentSite || pt.kind != pointSite {
		return false
	}
	p := pt.point()
	return seg.segment.From() == p || seg.segment.To() == p
}
