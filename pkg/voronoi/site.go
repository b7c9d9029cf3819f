package voronoi

import (
	"github.com/chazu/beadwork/pkg/geom"
)

type siteKind uint8

const (
	pointSite siteKind = iota
	segmentSite
)

// site is one input feature of the boundary. Point sites carry the polygon
// vertex index so consumers can recover the adjacent boundary segments.
type site struct {
	kind    siteKind
	idx     int
	vertex  geom.PointIndex // pointSite
	segment geom.Segment    // segmentSite
	cell    *Cell
	feat    *feature
}

func (s *site) point() geom.Point { return s.vertex.P() }

// reflex reports whether the boundary turns away from the interior at this
// point site's vertex. The interior lies to the left of every directed
// boundary segment, so a right turn leaves a wedge of interior area whose
// nearest boundary feature is the vertex itself; only those vertices get a
// cell with edges.
func (s *site) reflex() bool {
	v := s.vertex.P()
	in := v.Sub(s.vertex.Prev().P())
	out := s.vertex.Next().P().Sub(v)
	return geom.Cross(in, out) < 0
}

// loopSites groups the sites of one boundary loop in vertex order:
// points[i] is the vertex starting segment segs[i].
type loopSites struct {
	points []*site
	segs   []*site
}
