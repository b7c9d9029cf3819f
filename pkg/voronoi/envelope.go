package voronoi

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/pkg/errors"
)

// Numeric guards for the envelope kernels. Lengths are float micrometers.
const (
	cornerSnap = 0.75 // chain ends closer to a corner than this join it
	vertexSnap = 0.75 // computed vertices closer than this merge
	footSlack  = 0.01 // tolerance on a perpendicular foot leaving a segment
	sampleStep = 20.0 // target spacing of envelope samples along a segment
	wedgeStep  = 0.01 // target angular spacing of wedge samples, radians
)

// feature is the float-space form of a site used by the distance kernels.
// Segment features carry the endpoints with the interior on the left and a
// unit frame; point features exist only for reflex boundary vertices.
type feature struct {
	s *site

	a, b v2.Vec
	dir  v2.Vec // unit a->b
	nrm  v2.Vec // unit normal into the interior
	l    float64

	p v2.Vec
}

func segmentFeature(s *site) *feature {
	a, b := s.segment.From().F(), s.segment.To().F()
	d := b.Sub(a)
	l := math.Hypot(d.X, d.Y)
	dir := d.MulScalar(1 / l)
	return &feature{
		s: s, a: a, b: b,
		dir: dir,
		nrm: v2.Vec{X: -dir.Y, Y: dir.X},
		l:   l,
	}
}

func pointFeature(s *site) *feature {
	return &feature{s: s, p: s.point().F()}
}

// threshAlong returns how far the ray base+t*up, t >= 0, can go before the
// point at parameter t is no closer to the ray's own site than to f: the
// crossing of t against the distance from the ray point to f. +Inf means f
// never takes over along this ray. up must be a unit vector.
func threshAlong(base, up v2.Vec, f *feature) float64 {
	if f.s.kind == pointSite {
		w := f.p.Sub(base)
		wu := w.X*up.X + w.Y*up.Y
		if wu <= 1e-12 {
			return math.Inf(1)
		}
		return (w.X*w.X + w.Y*w.Y) / (2 * wu)
	}
	// Distance to the segment's line is |alpha + c*t|; solving
	// t = |alpha + c*t| gives one candidate per sign of the inner term,
	// each only valid when the perpendicular foot lands on the segment.
	alpha := (base.X-f.a.X)*f.nrm.X + (base.Y-f.a.Y)*f.nrm.Y
	c := up.X*f.nrm.X + up.Y*f.nrm.Y
	best := math.Inf(1)
	if d := 1 - c; math.Abs(d) > 1e-12 {
		if t := alpha / d; t >= 0 && t < best && footOnSegment(base, up, t, f) {
			best = t
		}
	}
	if d := 1 + c; math.Abs(d) > 1e-12 {
		if t := -alpha / d; t >= 0 && t < best && footOnSegment(base, up, t, f) {
			best = t
		}
	}
	return best
}

func footOnSegment(base, up v2.Vec, t float64, f *feature) bool {
	q := base.Add(up.MulScalar(t))
	along := (q.X-f.a.X)*f.dir.X + (q.Y-f.a.Y)*f.dir.Y
	return along >= -footSlack && along <= f.l+footSlack
}

// envRun is a maximal stretch of ray parameters over which one feature
// owns the lower envelope of the thresholds.
type envRun struct {
	f      *feature
	t0, t1 float64
}

// lowerEnvelope samples the threshold along the ray family ray(t),
// t in (0, tmax), groups consecutive samples by their nearest feature, and
// refines each run boundary by bisection. ray yields the base point and
// unit direction at parameter t; skip excludes the cell's own features.
func lowerEnvelope(feats []*feature, tmax float64, n int, ray func(float64) (v2.Vec, v2.Vec), skip func(*feature) bool) ([]envRun, error) {
	argmin := func(t float64) *feature {
		base, up := ray(t)
		var best *feature
		bestH := math.Inf(1)
		for _, f := range feats {
			if skip(f) {
				continue
			}
			if h := threshAlong(base, up, f); h < bestH {
				best, bestH = f, h
			}
		}
		return best
	}
	at := func(t float64, f *feature) float64 {
		base, up := ray(t)
		return threshAlong(base, up, f)
	}

	var runs []envRun
	var lastT float64
	for i := 0; i < n; i++ {
		t := tmax * (float64(i) + 0.5) / float64(n)
		f := argmin(t)
		if f == nil {
			base, _ := ray(t)
			return nil, errors.Wrapf(ErrDegenerateShape,
				"interior not bounded near (%.0f, %.0f)", base.X, base.Y)
		}
		switch {
		case len(runs) == 0:
			runs = append(runs, envRun{f: f, t0: 0, t1: tmax})
		case runs[len(runs)-1].f == f:
			// run continues
		default:
			prev := &runs[len(runs)-1]
			lo, hi := lastT, t
			for k := 0; k < 60; k++ {
				mid := (lo + hi) / 2
				if at(mid, prev.f) <= at(mid, f) {
					lo = mid
				} else {
					hi = mid
				}
			}
			cut := (lo + hi) / 2
			prev.t1 = cut
			runs = append(runs, envRun{f: f, t0: cut, t1: tmax})
		}
		lastT = t
	}
	return runs, nil
}

func sampleCount(extent, step float64) int {
	n := int(extent/step) + 8
	if n < 48 {
		n = 48
	}
	if n > 4096 {
		n = 4096
	}
	return n
}
